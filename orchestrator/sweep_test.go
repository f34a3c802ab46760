package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/types"
)

func TestSweepDeactivatesDeadHubs(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)

	client.RemoveChannel(hubId)
	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{hubId}, report.MissingHubChannels)

	hubs, err := persister.GetActiveHubs()
	require.NoError(t, err)
	require.Empty(t, hubs)
	require.False(t, m.isHub(hubId))
}

func TestSweepDropsRowsOfVanishedChannels(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	kept := soleRoom(t, persister)

	// a row whose channel never came up, e.g. after a failed rollback
	require.NoError(t, persister.StoreRoom(types.Room{Id: 9999, HubId: hubId, Sequence: 7}))
	require.NoError(t, m.Load(ctx))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{int64(9999)}, report.MissingRoomChannels)

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, kept.Id, rooms[0].Id)
	_, err = client.Channel(ctx, kept.Id)
	require.NoError(t, err)
}

func TestSweepCollapsesEmptyRooms(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)

	// the occupant disconnects without the event ever arriving
	client.DropMember(42)
	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{room.Id}, report.EmptiedRooms)

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
	_, err = client.Channel(ctx, room.Id)
	require.ErrorIs(t, err, platform.ErrNotFound)
}

func TestSweepRemovesOrphanedRooms(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)

	// the hub is deactivated behind the controller's back
	require.NoError(t, persister.DeactivateHub(hubId))
	m.mu.Lock()
	delete(m.hubs, hubId)
	m.mu.Unlock()

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{room.Id}, report.OrphanedRooms)

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
	_, err = client.Channel(ctx, room.Id)
	require.ErrorIs(t, err, platform.ErrNotFound)
}

func TestVerifyIntegrityDoesNotCorrect(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)
	client.DropMember(42)

	report, err := m.VerifyIntegrity(ctx)
	require.NoError(t, err)
	require.False(t, report.Corrected)
	require.Equal(t, []int64{room.Id}, report.EmptiedRooms)
	require.Equal(t, 1, report.ActiveHubsStore)
	require.Equal(t, 1, report.RoomsStore)
	require.NotEmpty(t, report.Id)

	// nothing was touched
	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	_, err = client.Channel(ctx, room.Id)
	require.NoError(t, err)
}
