package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/persistence"
	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/types"
)

func testConfig() *config.Config {
	return &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
		NamingConfig:      config.NamingConfig{FallbackPattern: "{display}'s room"},
	}
}

func newTestManager(t *testing.T) (*Manager, *platform.Memory, persistence.Persister) {
	t.Helper()
	cfg := testConfig()
	persister, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, persister)
	t.Cleanup(func() { persister.Close() })
	client := platform.NewMemory()
	m := NewManager(cfg, persister, client, nil, hclog.NewNullLogger())
	return m, client, persister
}

// stageHub stages a live hub channel and registers it.
func stageHub(t *testing.T, m *Manager, client *platform.Memory) int64 {
	t.Helper()
	hubId := client.AddChannel(platform.Channel{GuildId: 10, ParentId: 500, Type: platform.ChannelVoice, Name: "+ New Room"})
	require.NoError(t, m.AddHub(context.Background(), hubId, 10))
	return hubId
}

func joinHub(t *testing.T, m *Manager, client *platform.Memory, hubId, userId int64, name string) {
	t.Helper()
	client.PlaceMember(userId, hubId)
	m.HandleVoiceStateUpdate(context.Background(), platform.VoiceStateEvent{
		GuildId:     10,
		UserId:      userId,
		UserName:    name,
		ToChannelId: hubId,
	})
}

func soleRoom(t *testing.T, persister persistence.Persister) types.Room {
	t.Helper()
	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	return *rooms[0]
}

func TestCreateRoomOnHubJoin(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	pattern := "Room-{n}"
	require.NoError(t, m.UpdateHubConfig(ctx, hubId, &pattern, nil))

	joinHub(t, m, client, hubId, 42, "alice")

	room := soleRoom(t, persister)
	require.Equal(t, "Room-1", room.Name)
	require.Equal(t, hubId, room.HubId)
	require.Equal(t, int64(42), room.CreatorId)
	require.Equal(t, 1, room.Sequence)

	// the creator was moved out of the hub into the room
	ch, err := client.Channel(ctx, room.Id)
	require.NoError(t, err)
	require.Equal(t, []int64{42}, ch.Occupants)
	hub, err := client.Channel(ctx, hubId)
	require.NoError(t, err)
	require.Empty(t, hub.Occupants)

	// the creator holds the elevated overwrite
	ows, err := client.Overwrites(ctx, room.Id)
	require.NoError(t, err)
	require.NotZero(t, ows[42].Allow&platform.PermManageChannel)

	// the control panel landed in the room itself
	require.NotEmpty(t, client.Messages(room.Id))

	meta, ok := m.Meta(room.Id)
	require.True(t, ok)
	require.Equal(t, types.ModeOpen, meta.Mode)
	require.True(t, m.IsTrackedRoom(ctx, room.Id))
}

func TestCreateRoomSequenceAndNameFallback(t *testing.T) {
	m, client, persister := newTestManager(t)
	hubId := stageHub(t, m, client)

	joinHub(t, m, client, hubId, 42, "alice")
	joinHub(t, m, client, hubId, 43, "bob")

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	names := map[string]int{}
	for _, room := range rooms {
		names[room.Name] = room.Sequence
	}
	// no hub pattern, the configured fallback applies
	require.Equal(t, 1, names["alice's room"])
	require.Equal(t, 2, names["bob's room"])
}

func TestCreateRoomIgnoresStaleTrigger(t *testing.T) {
	m, client, persister := newTestManager(t)
	hubId := stageHub(t, m, client)

	// the member already moved on before the event is handled
	m.HandleVoiceStateUpdate(context.Background(), platform.VoiceStateEvent{
		GuildId:     10,
		UserId:      42,
		UserName:    "alice",
		ToChannelId: hubId,
	})

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestCreateRoomCapacity(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	maxRooms := 1
	require.NoError(t, m.UpdateHubConfig(ctx, hubId, nil, &maxRooms))

	joinHub(t, m, client, hubId, 42, "alice")
	joinHub(t, m, client, hubId, 43, "bob")

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, int64(42), rooms[0].CreatorId)
}

func TestCreateRoomCapacityUnderConcurrency(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	maxRooms := 1
	require.NoError(t, m.UpdateHubConfig(ctx, hubId, nil, &maxRooms))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		userId := int64(100 + i)
		client.PlaceMember(userId, hubId)
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.HandleVoiceStateUpdate(ctx, platform.VoiceStateEvent{
				GuildId:     10,
				UserId:      userId,
				UserName:    fmt.Sprintf("user%d", userId),
				ToChannelId: hubId,
			})
		}()
	}
	wg.Wait()

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
}

type failingRoomStore struct {
	persistence.Persister
}

func (f failingRoomStore) StoreRoom(room types.Room) error {
	return fmt.Errorf("store down")
}

func TestCreateRoomRollsBackChannelOnStoreFailure(t *testing.T) {
	cfg := testConfig()
	persister, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { persister.Close() })
	client := platform.NewMemory()
	m := NewManager(cfg, failingRoomStore{persister}, client, nil, hclog.NewNullLogger())

	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)

	// only the hub channel remains live
	live, err := client.VoiceChannelIds(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1)
	_, ok := live[hubId]
	require.True(t, ok)
}

func TestDeleteRoomWhenEmptied(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)

	// someone else joins, the creator leaves: the room stays
	client.PlaceMember(43, room.Id)
	client.DropMember(42)
	m.HandleVoiceStateUpdate(ctx, platform.VoiceStateEvent{GuildId: 10, UserId: 42, FromChannelId: room.Id})
	require.True(t, m.IsTrackedRoom(ctx, room.Id))

	// the last occupant leaves: the room collapses
	client.DropMember(43)
	m.HandleVoiceStateUpdate(ctx, platform.VoiceStateEvent{GuildId: 10, UserId: 43, FromChannelId: room.Id})

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
	_, err = client.Channel(ctx, room.Id)
	require.ErrorIs(t, err, platform.ErrNotFound)
	_, ok := m.Meta(room.Id)
	require.False(t, ok)
}

func TestHandleChannelDeleteRoom(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)

	client.RemoveChannel(room.Id)
	m.HandleChannelDelete(ctx, platform.ChannelDeleteEvent{GuildId: 10, ChannelId: room.Id})

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
	require.False(t, m.IsTrackedRoom(ctx, room.Id))
}

func TestHandleChannelDeleteHub(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)

	client.RemoveChannel(hubId)
	m.HandleChannelDelete(ctx, platform.ChannelDeleteEvent{GuildId: 10, ChannelId: hubId})

	hubs, err := persister.GetActiveHubs()
	require.NoError(t, err)
	require.Empty(t, hubs)

	// the row survives deactivated, a re-add restores the configuration
	hub := types.Hub{Id: hubId}
	require.NoError(t, persister.GetHub(&hub))
	require.False(t, hub.Active)
}

func TestRemoveHubTearsDownRooms(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)

	require.NoError(t, m.RemoveHub(ctx, hubId))

	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
	_, err = client.Channel(ctx, room.Id)
	require.ErrorIs(t, err, platform.ErrNotFound)

	hubs, err := m.ListHubs(ctx)
	require.NoError(t, err)
	require.Empty(t, hubs)
}

func TestHubLifecycleEndToEnd(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	pattern := "Room-{n}"
	maxRooms := 1
	require.NoError(t, m.UpdateHubConfig(ctx, hubId, &pattern, &maxRooms))

	// first join spawns Room-1
	joinHub(t, m, client, hubId, 42, "alice")
	first := soleRoom(t, persister)
	require.Equal(t, "Room-1", first.Name)
	require.Equal(t, 1, first.Sequence)

	// the hub is at capacity, the second join is refused
	joinHub(t, m, client, hubId, 43, "bob")
	require.Equal(t, first.Id, soleRoom(t, persister).Id)

	// the room empties and collapses
	client.DropMember(42)
	m.HandleVoiceStateUpdate(ctx, platform.VoiceStateEvent{GuildId: 10, UserId: 42, FromChannelId: first.Id})
	rooms, err := persister.GetRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)

	// capacity is free again and sequence 1 is reused
	m.HandleVoiceStateUpdate(ctx, platform.VoiceStateEvent{GuildId: 10, UserId: 43, UserName: "bob", ToChannelId: hubId})
	second := soleRoom(t, persister)
	require.NotEqual(t, first.Id, second.Id)
	require.Equal(t, "Room-1", second.Name)
	require.Equal(t, 1, second.Sequence)
	require.Equal(t, int64(43), second.CreatorId)
}

func TestRediscoveredRoomGetsDefaultMeta(t *testing.T) {
	m, client, persister := newTestManager(t)
	ctx := context.Background()
	hubId := stageHub(t, m, client)
	joinHub(t, m, client, hubId, 42, "alice")
	room := soleRoom(t, persister)
	require.NoError(t, m.SetMode(ctx, room.Id, types.ModePrivate))

	// a fresh controller over the same store, as after a restart
	restarted := NewManager(m.cfg, persister, client, nil, m.logger)
	require.True(t, restarted.IsTrackedRoom(ctx, room.Id))

	meta, ok := restarted.Meta(room.Id)
	require.True(t, ok)
	require.Equal(t, types.ModeOpen, meta.Mode)
	require.Equal(t, int64(42), meta.CreatorId)
	require.Empty(t, meta.Whitelist)

	// and mode operations work on the rebuilt state
	require.NoError(t, restarted.SetMode(ctx, room.Id, types.ModeClosed))
}

func TestLoadPrimesRuntimeState(t *testing.T) {
	cfg := testConfig()
	persister, err := persistence.NewPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { persister.Close() })
	require.NoError(t, persister.StoreHub(types.Hub{Id: 1, GuildId: 10}))
	require.NoError(t, persister.StoreRoom(types.Room{Id: 101, HubId: 1, Sequence: 1}))

	client := platform.NewMemory()
	m := NewManager(cfg, persister, client, nil, hclog.NewNullLogger())
	require.NoError(t, m.Load(context.Background()))

	require.True(t, m.isHub(1))
	require.True(t, m.isTrackedRoomRuntime(101))

	// loading seeds the default run-time state for known rooms
	meta, ok := m.Meta(101)
	require.True(t, ok)
	require.Equal(t, types.ModeOpen, meta.Mode)
}

func TestRenderName(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.Equal(t, "Room-3", m.renderName("Room-{n}", "alice", "Alice", 3))
	require.Equal(t, "alice 1", m.renderName("{user} {n}", "alice", "", 1))
	// empty rendering falls back to the configured pattern
	require.Equal(t, "Alice's room", m.renderName("  ", "alice", "Alice", 1))
	require.Equal(t, "alice's room", m.renderName("", "alice", "", 1))
	// a member without any usable name still gets a non-empty room name
	require.NotEmpty(t, m.renderName("", "", "", 1))
}
