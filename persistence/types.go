package persistence

import (
	"errors"
	"fmt"

	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/types"
)

// ErrNotFound is returned when a hub or room row does not exist.
var ErrNotFound = errors.New("persistence: not found")

// Persister is the durable store adapter. Every operation is a single
// round-trip, no multi-step logic lives behind this interface.
type Persister interface {
	// StoreHub upserts a hub row; an existing row is reactivated and its
	// timestamps refreshed, configuration is kept.
	StoreHub(hub types.Hub) error
	DeactivateHub(id int64) error
	GetHub(hub *types.Hub) error
	GetActiveHubs() ([]*types.Hub, error)
	// UpdateHubConfig updates the naming pattern and/or room cap; nil leaves
	// the stored value untouched.
	UpdateHubConfig(id int64, pattern *string, maxRooms *int) error

	StoreRoom(room types.Room) error
	DeleteRoom(id int64) error
	GetRoom(room *types.Room) error
	GetRooms() ([]*types.Room, error)
	CountRoomsForHub(hubId int64) (int64, error)
	// NextSequenceForHub returns the smallest positive integer not currently
	// assigned to any of the hub's rooms, computed store-side in one
	// consistent statement.
	NextSequenceForHub(hubId int64) (int, error)

	Close() error
}

// NewPersister creates the configured persister, or nil if persistence is
// not configured.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "postgres", "sqlite":
		return NewGormPersister(cfg)

	case "buntdb":
		return NewBuntPersister(cfg)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("invalid persistence type %q", cfg.PersistenceConfig.Type)
	}
}
