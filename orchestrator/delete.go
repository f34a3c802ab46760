package orchestrator

import (
	"context"
	"errors"

	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/telemetry"
)

// DeleteRoomIfEmpty collapses a tracked room once it has no occupants. A
// room whose live channel already disappeared is cleaned up as well.
func (m *Manager) DeleteRoomIfEmpty(ctx context.Context, channelId int64) {
	ch, err := m.client.Channel(ctx, channelId)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		m.logger.Warn("could not inspect room channel", "room", channelId, "error", err)
		return
	}
	if ch != nil && len(ch.Occupants) > 0 {
		return
	}
	m.DeleteRoom(ctx, channelId)
}

// DeleteRoom tears a room down: store row, runtime state, live channel.
// Every leg is attempted independently, so the operation is idempotent and a
// single failure never blocks the others.
func (m *Manager) DeleteRoom(ctx context.Context, channelId int64) {
	if err := m.persister.DeleteRoom(channelId); err != nil {
		m.logger.Warn("could not delete room row", "room", channelId, "error", err)
	}

	m.mu.Lock()
	_, tracked := m.rooms[channelId]
	delete(m.rooms, channelId)
	delete(m.meta, channelId)
	m.mu.Unlock()

	if err := m.client.DeleteChannel(ctx, channelId); err != nil && !errors.Is(err, platform.ErrNotFound) {
		m.logger.Warn("could not delete room channel", "room", channelId, "error", err)
	}
	if tracked {
		telemetry.RoomsDeleted.Inc()
		m.logger.Info("room deleted", "room", channelId)
	}
}

// HandleChannelDelete reacts to a channel disappearing externally: a hub is
// deactivated in the store, a room's row is purged. The live channel is
// already gone, there is nothing to roll back.
func (m *Manager) HandleChannelDelete(ctx context.Context, ev platform.ChannelDeleteEvent) {
	if m.isHub(ev.ChannelId) {
		if err := m.persister.DeactivateHub(ev.ChannelId); err != nil {
			m.logger.Warn("could not deactivate vanished hub", "hub", ev.ChannelId, "error", err)
		}
		m.mu.Lock()
		delete(m.hubs, ev.ChannelId)
		m.mu.Unlock()
		m.logger.Info("hub channel vanished, deactivated", "hub", ev.ChannelId)
		return
	}
	if m.IsTrackedRoom(ctx, ev.ChannelId) {
		if err := m.persister.DeleteRoom(ev.ChannelId); err != nil {
			m.logger.Warn("could not purge vanished room", "room", ev.ChannelId, "error", err)
		}
		m.mu.Lock()
		delete(m.rooms, ev.ChannelId)
		delete(m.meta, ev.ChannelId)
		m.mu.Unlock()
		telemetry.RoomsDeleted.Inc()
		m.logger.Info("room channel vanished, row purged", "room", ev.ChannelId)
	}
}
