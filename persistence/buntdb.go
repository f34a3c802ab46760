package persistence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/types"
	"github.com/tidwall/buntdb"
)

// BuntDBPersist is the embedded file (or :memory:) store alternative to the
// gorm backend. Hubs and rooms are stored as JSON under hub:<id> and
// room:<id> keys.
type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("roomhub", "room:*", buntdb.IndexJSON("hub_id"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntDBPersist{db: db}, nil
}

func hubKey(id int64) string  { return "hub:" + strconv.FormatInt(id, 10) }
func roomKey(id int64) string { return "room:" + strconv.FormatInt(id, 10) }

func (p *BuntDBPersist) StoreHub(hub types.Hub) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if raw, err := tx.Get(hubKey(hub.Id)); err == nil {
			// keep the stored configuration, just reactivate
			var existing types.Hub
			if err := json.Unmarshal([]byte(raw), &existing); err == nil {
				existing.Active = true
				existing.GuildId = hub.GuildId
				existing.UpdatedAt = time.Now()
				hub = existing
			}
		} else {
			hub.Active = true
			hub.CreatedAt = time.Now()
			hub.UpdatedAt = hub.CreatedAt
		}
		h, err := json.Marshal(hub)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(hubKey(hub.Id), string(h), nil)
		return err
	})
}

func (p *BuntDBPersist) DeactivateHub(id int64) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(hubKey(id))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var hub types.Hub
		if err := json.Unmarshal([]byte(raw), &hub); err != nil {
			return err
		}
		hub.Active = false
		hub.UpdatedAt = time.Now()
		h, err := json.Marshal(hub)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(hubKey(id), string(h), nil)
		return err
	})
}

func (p *BuntDBPersist) GetHub(hub *types.Hub) error {
	if hub.Id == 0 {
		return fmt.Errorf("no hub id")
	}
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(hubKey(hub.Id))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), hub)
	})
}

func (p *BuntDBPersist) GetActiveHubs() ([]*types.Hub, error) {
	hubs := make([]*types.Hub, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("hub:*", func(key, value string) bool {
			var hub types.Hub
			if err := json.Unmarshal([]byte(value), &hub); err == nil && hub.Active {
				hubs = append(hubs, &hub)
			}
			return true
		})
	})
	return hubs, err
}

func (p *BuntDBPersist) UpdateHubConfig(id int64, pattern *string, maxRooms *int) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(hubKey(id))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var hub types.Hub
		if err := json.Unmarshal([]byte(raw), &hub); err != nil {
			return err
		}
		if pattern != nil {
			hub.NamingPattern = *pattern
		}
		if maxRooms != nil {
			hub.MaxRooms = *maxRooms
		}
		hub.UpdatedAt = time.Now()
		h, err := json.Marshal(hub)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(hubKey(id), string(h), nil)
		return err
	})
}

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	r, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(roomKey(room.Id), string(r), nil)
		return err
	})
}

func (p *BuntDBPersist) DeleteRoom(id int64) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(roomKey(id))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Id == 0 {
		return fmt.Errorf("no room id")
	}
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(roomKey(room.Id))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), room)
	})
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, value string) bool {
			var room types.Room
			if err := json.Unmarshal([]byte(value), &room); err == nil {
				rooms = append(rooms, &room)
			}
			return true
		})
	})
	return rooms, err
}

func (p *BuntDBPersist) CountRoomsForHub(hubId int64) (int64, error) {
	var count int64
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, value string) bool {
			var room types.Room
			if err := json.Unmarshal([]byte(value), &room); err == nil && room.HubId == hubId {
				count++
			}
			return true
		})
	})
	return count, err
}

// NextSequenceForHub scans the hub's rooms inside one View transaction, so
// the answer is consistent with a single store snapshot.
func (p *BuntDBPersist) NextSequenceForHub(hubId int64) (int, error) {
	used := make(map[int]struct{})
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, value string) bool {
			var room types.Room
			if err := json.Unmarshal([]byte(value), &room); err == nil && room.HubId == hubId {
				used[room.Sequence] = struct{}{}
			}
			return true
		})
	})
	if err != nil {
		return 0, err
	}
	next := 1
	for {
		if _, ok := used[next]; !ok {
			return next, nil
		}
		next++
	}
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
