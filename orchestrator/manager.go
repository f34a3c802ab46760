// Package orchestrator contains the room lifecycle controller: it creates,
// tracks, secures and garbage-collects the ephemeral rooms spawned from hub
// channels, keeping the durable store and the live platform state aligned.
package orchestrator

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/persistence"
	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/types"
)

type Manager struct {
	cfg       *config.Config
	persister persistence.Persister
	client    platform.Client
	renderer  PanelRenderer
	logger    hclog.Logger

	// mu guards hubs, rooms and meta. The per-hub locks serialize the
	// creation critical section only.
	mu    sync.RWMutex
	hubs  map[int64]struct{}
	rooms map[int64]struct{}
	meta  map[int64]*types.RoomMeta

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewManager(cfg *config.Config, persister persistence.Persister, client platform.Client, renderer PanelRenderer, logger hclog.Logger) *Manager {
	if renderer == nil {
		renderer = TextRenderer{}
	}
	return &Manager{
		cfg:       cfg,
		persister: persister,
		client:    client,
		renderer:  renderer,
		logger:    logger,
		hubs:      make(map[int64]struct{}),
		rooms:     make(map[int64]struct{}),
		meta:      make(map[int64]*types.RoomMeta),
		locks:     make(map[int64]*sync.Mutex),
	}
}

// Load primes the runtime hub and room sets from the store.
func (m *Manager) Load(ctx context.Context) error {
	hubs, err := m.persister.GetActiveHubs()
	if err != nil {
		return err
	}
	rooms, err := m.persister.GetRooms()
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, hub := range hubs {
		m.hubs[hub.Id] = struct{}{}
	}
	for _, room := range rooms {
		m.rooms[room.Id] = struct{}{}
		// rediscovered rooms revert to the default open state
		if _, ok := m.meta[room.Id]; !ok {
			m.meta[room.Id] = types.NewRoomMeta(room.Id, room.CreatorId)
		}
	}
	m.mu.Unlock()
	m.logger.Info("hubs loaded", "hubs", len(hubs), "rooms", len(rooms))
	return nil
}

// hubLock returns the mutex of the given hub, creating it on first use.
// Locks are never removed, which is an acceptable leak at hub-count scale.
func (m *Manager) hubLock(hubId int64) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[hubId]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[hubId] = lock
	}
	return lock
}

func (m *Manager) isHub(channelId int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.hubs[channelId]
	return ok
}

func (m *Manager) isTrackedRoomRuntime(channelId int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[channelId]
	return ok
}

// IsTrackedRoom reports whether the channel is a room the orchestrator owns,
// consulting the store when the runtime set does not know it (the row may
// survive a restart while the cache does not). A rediscovered room gets its
// run-time state rebuilt to the default open state.
func (m *Manager) IsTrackedRoom(ctx context.Context, channelId int64) bool {
	if m.isTrackedRoomRuntime(channelId) {
		return true
	}
	room := types.Room{Id: channelId}
	if err := m.persister.GetRoom(&room); err != nil {
		return false
	}
	m.mu.Lock()
	m.rooms[channelId] = struct{}{}
	if _, ok := m.meta[channelId]; !ok {
		m.meta[channelId] = types.NewRoomMeta(channelId, room.CreatorId)
	}
	m.mu.Unlock()
	return true
}

// Meta returns a copy of the run-time state of a tracked room for rendering.
func (m *Manager) Meta(channelId int64) (*types.RoomMeta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.meta[channelId]
	if !ok {
		return nil, false
	}
	return meta.Clone(), true
}
