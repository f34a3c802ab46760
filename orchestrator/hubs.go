package orchestrator

import (
	"context"

	"github.com/tcriess/lightspeed-hubs/types"
)

// AddHub designates a channel as a hub. Re-adding a previously removed hub
// reactivates it with its stored configuration.
func (m *Manager) AddHub(ctx context.Context, channelId, guildId int64) error {
	err := m.persister.StoreHub(types.Hub{Id: channelId, GuildId: guildId, Active: true})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.hubs[channelId] = struct{}{}
	m.mu.Unlock()
	m.logger.Info("hub added", "hub", channelId, "guild", guildId)
	return nil
}

// RemoveHub deactivates a hub and tears down its rooms.
func (m *Manager) RemoveHub(ctx context.Context, channelId int64) error {
	if !m.isHub(channelId) {
		return nil
	}
	if err := m.persister.DeactivateHub(channelId); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.hubs, channelId)
	m.mu.Unlock()
	m.logger.Info("hub deactivated", "hub", channelId)

	rooms, err := m.persister.GetRooms()
	if err != nil {
		m.logger.Warn("could not list rooms of removed hub", "hub", channelId, "error", err)
		return nil
	}
	for _, room := range rooms {
		if room.HubId == channelId {
			m.DeleteRoom(ctx, room.Id)
		}
	}
	return nil
}

// UpdateHubConfig changes the naming pattern and/or the room cap of a hub.
// Nil leaves the stored value untouched.
func (m *Manager) UpdateHubConfig(ctx context.Context, channelId int64, pattern *string, maxRooms *int) error {
	return m.persister.UpdateHubConfig(channelId, pattern, maxRooms)
}

// ListHubs returns the active hubs as recorded in the store.
func (m *Manager) ListHubs(ctx context.Context) ([]*types.Hub, error) {
	return m.persister.GetActiveHubs()
}
