package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/types"
)

func newSqlitePersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{
			Type: "sqlite",
			DSN:  filepath.Join(t.TempDir(), "test.db"),
		},
	}
	p, err := NewGormPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestGormHubUpsertKeepsConfig(t *testing.T) {
	p := newSqlitePersister(t)

	require.NoError(t, p.StoreHub(types.Hub{Id: 1, GuildId: 10, NamingPattern: "Room-{n}", MaxRooms: 3}))
	require.NoError(t, p.DeactivateHub(1))

	hub := types.Hub{Id: 1}
	require.NoError(t, p.GetHub(&hub))
	require.False(t, hub.Active)

	// re-adding reactivates and keeps pattern and cap
	require.NoError(t, p.StoreHub(types.Hub{Id: 1, GuildId: 10}))
	hub = types.Hub{Id: 1}
	require.NoError(t, p.GetHub(&hub))
	require.True(t, hub.Active)
	require.Equal(t, "Room-{n}", hub.NamingPattern)
	require.Equal(t, 3, hub.MaxRooms)
}

func TestGormUpdateHubConfig(t *testing.T) {
	p := newSqlitePersister(t)
	require.NoError(t, p.StoreHub(types.Hub{Id: 1, GuildId: 10, NamingPattern: "Room-{n}", MaxRooms: 3}))

	pattern := "{display} #{n}"
	require.NoError(t, p.UpdateHubConfig(1, &pattern, nil))
	hub := types.Hub{Id: 1}
	require.NoError(t, p.GetHub(&hub))
	require.Equal(t, "{display} #{n}", hub.NamingPattern)
	require.Equal(t, 3, hub.MaxRooms)

	maxRooms := 5
	require.NoError(t, p.UpdateHubConfig(1, nil, &maxRooms))
	hub = types.Hub{Id: 1}
	require.NoError(t, p.GetHub(&hub))
	require.Equal(t, "{display} #{n}", hub.NamingPattern)
	require.Equal(t, 5, hub.MaxRooms)
}

func TestGormGetActiveHubs(t *testing.T) {
	p := newSqlitePersister(t)
	require.NoError(t, p.StoreHub(types.Hub{Id: 1, GuildId: 10}))
	require.NoError(t, p.StoreHub(types.Hub{Id: 2, GuildId: 10}))
	require.NoError(t, p.DeactivateHub(2))

	hubs, err := p.GetActiveHubs()
	require.NoError(t, err)
	require.Len(t, hubs, 1)
	require.Equal(t, int64(1), hubs[0].Id)
}

func TestGormSequenceGapFill(t *testing.T) {
	p := newSqlitePersister(t)
	require.NoError(t, p.StoreHub(types.Hub{Id: 1, GuildId: 10}))

	next, err := p.NextSequenceForHub(1)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	for i := 1; i <= 3; i++ {
		require.NoError(t, p.StoreRoom(types.Room{Id: int64(100 + i), HubId: 1, Sequence: i}))
		next, err = p.NextSequenceForHub(1)
		require.NoError(t, err)
		require.Equal(t, i+1, next)
	}

	// deleting the middle room frees its sequence
	require.NoError(t, p.DeleteRoom(102))
	next, err = p.NextSequenceForHub(1)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	// an unrelated hub is unaffected
	next, err = p.NextSequenceForHub(2)
	require.NoError(t, err)
	require.Equal(t, 1, next)
}

func TestGormCountRoomsForHub(t *testing.T) {
	p := newSqlitePersister(t)
	require.NoError(t, p.StoreRoom(types.Room{Id: 101, HubId: 1, Sequence: 1}))
	require.NoError(t, p.StoreRoom(types.Room{Id: 102, HubId: 1, Sequence: 2}))
	require.NoError(t, p.StoreRoom(types.Room{Id: 201, HubId: 2, Sequence: 1}))

	count, err := p.CountRoomsForHub(1)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, p.DeleteRoom(101))
	count, err = p.CountRoomsForHub(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestGormNotFound(t *testing.T) {
	p := newSqlitePersister(t)

	hub := types.Hub{Id: 999}
	require.ErrorIs(t, p.GetHub(&hub), ErrNotFound)

	room := types.Room{Id: 999}
	require.ErrorIs(t, p.GetRoom(&room), ErrNotFound)

	// deleting a missing room is not an error
	require.NoError(t, p.DeleteRoom(999))
}
