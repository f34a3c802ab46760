package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tcriess/lightspeed-hubs/platform"
	"github.com/tcriess/lightspeed-hubs/telemetry"
)

// IntegrityReport summarizes one reconciliation pass (or a read-only check):
// store vs. runtime counts and the ids found inconsistent.
type IntegrityReport struct {
	Id                  string    `json:"id"`
	At                  time.Time `json:"at"`
	Corrected           bool      `json:"corrected"`
	ActiveHubsStore     int       `json:"active_hubs_store"`
	ActiveHubsRuntime   int       `json:"active_hubs_runtime"`
	RoomsStore          int       `json:"rooms_store"`
	RoomsRuntime        int       `json:"rooms_runtime"`
	MissingHubChannels  []int64   `json:"missing_hub_channels"`
	MissingRoomChannels []int64   `json:"missing_room_channels"`
	EmptiedRooms        []int64   `json:"emptied_rooms"`
	OrphanedRooms       []int64   `json:"orphaned_rooms"`
}

// Sweep corrects drift between store, cache and live platform state. Each
// step is fault-isolated per row; a single failing row is logged and the
// pass continues. The sweep holds no application-level lock.
func (m *Manager) Sweep(ctx context.Context) (*IntegrityReport, error) {
	report, err := m.reconcile(ctx, true)
	if err != nil {
		return nil, err
	}
	telemetry.SweepRuns.Inc()
	m.logger.Info("sweep finished",
		"report", report.Id,
		"dead_hubs", len(report.MissingHubChannels),
		"dead_rooms", len(report.MissingRoomChannels),
		"emptied", len(report.EmptiedRooms),
		"orphaned", len(report.OrphanedRooms))
	return report, nil
}

// VerifyIntegrity produces the same report without applying corrections.
func (m *Manager) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	return m.reconcile(ctx, false)
}

func (m *Manager) reconcile(ctx context.Context, correct bool) (*IntegrityReport, error) {
	live, err := m.client.VoiceChannelIds(ctx)
	if err != nil {
		return nil, err
	}
	report := &IntegrityReport{
		Id:                  uuid.NewString(),
		At:                  time.Now(),
		Corrected:           correct,
		MissingHubChannels:  make([]int64, 0),
		MissingRoomChannels: make([]int64, 0),
		EmptiedRooms:        make([]int64, 0),
		OrphanedRooms:       make([]int64, 0),
	}

	// 1: active hubs whose channel no longer exists
	m.mu.RLock()
	runtimeHubs := make([]int64, 0, len(m.hubs))
	for id := range m.hubs {
		runtimeHubs = append(runtimeHubs, id)
	}
	report.RoomsRuntime = len(m.rooms)
	m.mu.RUnlock()
	report.ActiveHubsRuntime = len(runtimeHubs)

	for _, hubId := range runtimeHubs {
		if _, ok := live[hubId]; ok {
			continue
		}
		report.MissingHubChannels = append(report.MissingHubChannels, hubId)
		if !correct {
			continue
		}
		if err := m.persister.DeactivateHub(hubId); err != nil {
			m.logger.Warn("sweep: could not deactivate hub", "hub", hubId, "error", err)
		}
		m.mu.Lock()
		delete(m.hubs, hubId)
		m.mu.Unlock()
	}

	activeHubs, err := m.persister.GetActiveHubs()
	if err != nil {
		m.logger.Warn("sweep: could not list active hubs", "error", err)
		activeHubs = nil
	}
	activeSet := make(map[int64]struct{}, len(activeHubs))
	for _, hub := range activeHubs {
		activeSet[hub.Id] = struct{}{}
	}
	report.ActiveHubsStore = len(activeHubs)

	rooms, err := m.persister.GetRooms()
	if err != nil {
		m.logger.Warn("sweep: could not list rooms", "error", err)
		return report, nil
	}
	report.RoomsStore = len(rooms)

	for _, room := range rooms {
		// 2: room rows whose channel no longer exists
		if _, ok := live[room.Id]; !ok {
			report.MissingRoomChannels = append(report.MissingRoomChannels, room.Id)
			if correct {
				m.dropRoomRow(room.Id)
			}
			continue
		}
		// 4: rooms whose hub is not active anymore
		if _, ok := activeSet[room.HubId]; !ok {
			report.OrphanedRooms = append(report.OrphanedRooms, room.Id)
			if correct {
				m.DeleteRoom(ctx, room.Id)
			}
			continue
		}
		// 3: live but empty rooms
		ch, err := m.client.Channel(ctx, room.Id)
		if err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				report.MissingRoomChannels = append(report.MissingRoomChannels, room.Id)
				if correct {
					m.dropRoomRow(room.Id)
				}
			} else {
				m.logger.Warn("sweep: could not inspect room", "room", room.Id, "error", err)
			}
			continue
		}
		if len(ch.Occupants) == 0 {
			report.EmptiedRooms = append(report.EmptiedRooms, room.Id)
			if correct {
				m.DeleteRoom(ctx, room.Id)
			}
		}
	}
	if correct {
		corrections := len(report.MissingHubChannels) + len(report.MissingRoomChannels) +
			len(report.EmptiedRooms) + len(report.OrphanedRooms)
		telemetry.SweepCorrections.Add(float64(corrections))
	}
	return report, nil
}

// dropRoomRow removes a room's row and runtime state when the live channel
// is already gone.
func (m *Manager) dropRoomRow(roomId int64) {
	if err := m.persister.DeleteRoom(roomId); err != nil {
		m.logger.Warn("sweep: could not delete room row", "room", roomId, "error", err)
	}
	m.mu.Lock()
	delete(m.rooms, roomId)
	delete(m.meta, roomId)
	m.mu.Unlock()
}
