package orchestrator

import (
	"context"
	"strconv"
	"strings"

	"github.com/folkengine/goname"
	"github.com/tcriess/lightspeed-hubs/persistence"
	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/telemetry"
	"github.com/tcriess/lightspeed-hubs/types"
)

// HandleVoiceStateUpdate is the event adapter entry point for member voice
// movement: moving into a hub spawns a room, leaving a room may collapse it.
func (m *Manager) HandleVoiceStateUpdate(ctx context.Context, ev platform.VoiceStateEvent) {
	if ev.ToChannelId != 0 && ev.ToChannelId != ev.FromChannelId && m.isHub(ev.ToChannelId) {
		m.createRoom(ctx, ev)
	}
	if ev.FromChannelId != 0 && ev.FromChannelId != ev.ToChannelId && m.IsTrackedRoom(ctx, ev.FromChannelId) {
		m.DeleteRoomIfEmpty(ctx, ev.FromChannelId)
	}
}

// createRoom runs the creation critical section under the hub's lock:
// re-validate the trigger, check the cap, claim a sequence, create the live
// channel, persist the row (rolling back the channel on failure), move the
// member in and place the control panel.
func (m *Manager) createRoom(ctx context.Context, ev platform.VoiceStateEvent) {
	hubId := ev.ToChannelId
	lock := m.hubLock(hubId)
	lock.Lock()
	defer lock.Unlock()

	hubCh, err := m.client.Channel(ctx, hubId)
	if err != nil {
		m.logger.Warn("hub channel unavailable", "hub", hubId, "error", err)
		return
	}
	if !contains(hubCh.Occupants, ev.UserId) {
		// stale or duplicate trigger, the member already moved on
		return
	}

	hub := types.Hub{Id: hubId}
	if err := m.persister.GetHub(&hub); err != nil {
		if err != persistence.ErrNotFound {
			m.logger.Warn("could not fetch hub config", "hub", hubId, "error", err)
		}
		hub = types.Hub{Id: hubId, GuildId: ev.GuildId}
	}
	if hub.MaxRooms > 0 {
		count, err := m.persister.CountRoomsForHub(hubId)
		if err != nil {
			m.logger.Warn("could not count rooms", "hub", hubId, "error", err)
		} else if count >= int64(hub.MaxRooms) {
			m.logger.Debug("room cap reached", "hub", hubId, "rooms", count, "max", hub.MaxRooms)
			telemetry.CapacityRefusals.Inc()
			return
		}
	}

	sequence, err := m.persister.NextSequenceForHub(hubId)
	if err != nil {
		m.logger.Error("could not compute sequence", "hub", hubId, "error", err)
		return
	}
	name := m.renderName(hub.NamingPattern, ev.UserName, ev.UserDisplay, sequence)

	overwrites := map[int64]platform.Overwrite{ev.UserId: platform.Elevated()}
	newCh, err := m.client.CreateVoiceChannel(ctx, hubCh.GuildId, name, hubCh.ParentId, hubCh.UserLimit, overwrites)
	if err != nil {
		m.logger.Error("could not create room channel", "hub", hubId, "error", err)
		return
	}

	room := types.Room{
		Id:        newCh.Id,
		HubId:     hubId,
		GuildId:   hubCh.GuildId,
		CreatorId: ev.UserId,
		Sequence:  sequence,
		Name:      name,
	}
	if err := m.persister.StoreRoom(room); err != nil {
		m.logger.Error("could not persist room, rolling back channel", "room", newCh.Id, "error", err)
		if derr := m.client.DeleteChannel(ctx, newCh.Id); derr != nil {
			// the orphan is caught by the next reconciliation pass
			m.logger.Error("rollback failed", "room", newCh.Id, "error", derr)
		}
		return
	}

	meta := types.NewRoomMeta(newCh.Id, ev.UserId)
	m.mu.Lock()
	m.rooms[newCh.Id] = struct{}{}
	m.meta[newCh.Id] = meta
	snapshot := meta.Clone()
	m.mu.Unlock()

	if err := m.client.MoveMember(ctx, hubCh.GuildId, ev.UserId, newCh.Id); err != nil {
		m.logger.Warn("could not move creator into room", "room", newCh.Id, "error", err)
	}
	m.placePanel(ctx, snapshot, newCh)
	telemetry.RoomsCreated.Inc()
	m.logger.Info("room created", "room", newCh.Id, "hub", hubId, "sequence", sequence, "name", name)
}

// renderName fills the hub's naming pattern; a missing pattern or an empty
// rendering falls back to the configured fallback pattern, and a member
// without any usable name gets a generated one.
func (m *Manager) renderName(pattern, userName, display string, sequence int) string {
	if display == "" {
		display = userName
	}
	if display == "" {
		display = goname.New(goname.FantasyMap).FirstLast()
	}
	render := func(p string) string {
		return strings.NewReplacer(
			"{user}", userName,
			"{display}", display,
			"{n}", strconv.Itoa(sequence),
		).Replace(p)
	}
	if pattern != "" {
		if name := strings.TrimSpace(render(pattern)); name != "" {
			return name
		}
	}
	fallback := m.cfg.NamingConfig.FallbackPattern
	if fallback == "" {
		fallback = "{display}'s room"
	}
	if name := strings.TrimSpace(render(fallback)); name != "" {
		return name
	}
	return display
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
