package orchestrator

import (
	"context"
	"fmt"

	"github.com/tcriess/lightspeed-hubs/policy"
	"github.com/tcriess/lightspeed-hubs/types"
)

// applyPolicy pushes the snapshot's overwrite set to the live channel and
// records the applied hash back on the canonical meta. The snapshot is
// goroutine-local, so the platform calls run without any lock held.
func (m *Manager) applyPolicy(ctx context.Context, snapshot *types.RoomMeta) error {
	err := policy.Apply(ctx, m.client, snapshot, m.logger)
	m.mu.Lock()
	if canon, ok := m.meta[snapshot.ChannelId]; ok {
		canon.AppliedHash = snapshot.AppliedHash
	}
	m.mu.Unlock()
	return err
}

// SetMode switches a room's authorization mode and re-applies the policy.
// Entering conference mode snapshots the current occupants (plus the
// creator) into the allowed set; leaving clears it; re-entering re-snapshots
// from the occupants of that moment, never from the prior snapshot.
func (m *Manager) SetMode(ctx context.Context, channelId int64, mode types.Mode) error {
	// the occupant snapshot is fetched before the lock, the platform call
	// must never block unrelated controller operations
	allowed := make(map[int64]struct{})
	if mode == types.ModeConference {
		if ch, err := m.client.Channel(ctx, channelId); err == nil {
			for _, occ := range ch.Occupants {
				allowed[occ] = struct{}{}
			}
		} else {
			m.logger.Warn("could not snapshot occupants", "room", channelId, "error", err)
		}
	}

	m.mu.Lock()
	meta, ok := m.meta[channelId]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("room %d is not tracked", channelId)
	}
	if mode == types.ModeConference {
		allowed[meta.CreatorId] = struct{}{}
		meta.ConferenceAllowed = allowed
	} else {
		meta.ConferenceAllowed = make(map[int64]struct{})
	}
	meta.Mode = mode
	snapshot := meta.Clone()
	m.mu.Unlock()

	if err := m.applyPolicy(ctx, snapshot); err != nil {
		return err
	}
	m.refreshPanel(ctx, snapshot)
	return nil
}

// ToggleWhitelist adds the user to the room's whitelist, or removes them if
// already present. Whitelisting removes a blacklist entry. Returns whether
// the user is whitelisted afterwards.
func (m *Manager) ToggleWhitelist(ctx context.Context, channelId, userId int64) (bool, error) {
	m.mu.Lock()
	meta, ok := m.meta[channelId]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("room %d is not tracked", channelId)
	}
	_, present := meta.Whitelist[userId]
	if present {
		delete(meta.Whitelist, userId)
	} else {
		meta.Whitelist[userId] = struct{}{}
		delete(meta.Blacklist, userId)
	}
	snapshot := meta.Clone()
	m.mu.Unlock()

	if err := m.applyPolicy(ctx, snapshot); err != nil {
		return !present, err
	}
	m.refreshPanel(ctx, snapshot)
	return !present, nil
}

// ToggleBlacklist adds the user to the room's blacklist, or removes them if
// already present. Blacklisting removes a whitelist entry.
func (m *Manager) ToggleBlacklist(ctx context.Context, channelId, userId int64) (bool, error) {
	m.mu.Lock()
	meta, ok := m.meta[channelId]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("room %d is not tracked", channelId)
	}
	_, present := meta.Blacklist[userId]
	if present {
		delete(meta.Blacklist, userId)
	} else {
		meta.Blacklist[userId] = struct{}{}
		delete(meta.Whitelist, userId)
	}
	snapshot := meta.Clone()
	m.mu.Unlock()

	if err := m.applyPolicy(ctx, snapshot); err != nil {
		return !present, err
	}
	m.refreshPanel(ctx, snapshot)
	return !present, nil
}

// TransferOwnership hands the room to a new creator: the elevated overwrite
// moves with the role (granted by re-applied policy, stripped from the old
// owner by the stale-overwrite cleanup) and a blacklist entry of the new
// owner is cleared. A transfer to the current creator is a no-op. Callers
// must already have authorized the action.
func (m *Manager) TransferOwnership(ctx context.Context, channelId, newOwnerId int64) error {
	m.mu.Lock()
	meta, ok := m.meta[channelId]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("room %d is not tracked", channelId)
	}
	if meta.CreatorId == newOwnerId {
		m.mu.Unlock()
		return nil
	}
	meta.CreatorId = newOwnerId
	delete(meta.Blacklist, newOwnerId)
	snapshot := meta.Clone()
	m.mu.Unlock()

	room := types.Room{Id: channelId}
	if err := m.persister.GetRoom(&room); err == nil {
		room.CreatorId = newOwnerId
		if err := m.persister.StoreRoom(room); err != nil {
			m.logger.Warn("could not persist new owner", "room", channelId, "error", err)
		}
	}

	if err := m.applyPolicy(ctx, snapshot); err != nil {
		return err
	}
	m.refreshPanel(ctx, snapshot)
	m.logger.Info("ownership transferred", "room", channelId, "owner", newOwnerId)
	return nil
}

// PurgeIneligibleOccupants disconnects every occupant the current mode does
// not allow in the room. Returns the evicted user ids.
func (m *Manager) PurgeIneligibleOccupants(ctx context.Context, channelId int64) ([]int64, error) {
	snapshot, ok := m.Meta(channelId)
	if !ok {
		return nil, fmt.Errorf("room %d is not tracked", channelId)
	}
	ch, err := m.client.Channel(ctx, channelId)
	if err != nil {
		return nil, err
	}
	evicted := make([]int64, 0)
	for _, occ := range ch.Occupants {
		if policy.Eligible(snapshot, occ) {
			continue
		}
		if err := m.client.DisconnectMember(ctx, ch.GuildId, occ); err != nil {
			m.logger.Warn("could not disconnect occupant", "room", channelId, "user", occ, "error", err)
			continue
		}
		evicted = append(evicted, occ)
	}
	return evicted, nil
}
