package persistence

import (
	"errors"
	"fmt"

	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.Hub{}, &types.Room{})
	return db, nil
}

func (p *GormPersist) StoreHub(hub types.Hub) error {
	hub.Active = true
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "guild_id", "updated_at"}),
	}).Create(&hub).Error
}

func (p *GormPersist) DeactivateHub(id int64) error {
	return p.db.Model(&types.Hub{Id: id}).Update("active", false).Error
}

func (p *GormPersist) GetHub(hub *types.Hub) error {
	err := p.db.First(hub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) GetActiveHubs() ([]*types.Hub, error) {
	hubs := make([]*types.Hub, 0)
	err := p.db.Where("active = ?", true).Find(&hubs).Error
	return hubs, err
}

func (p *GormPersist) UpdateHubConfig(id int64, pattern *string, maxRooms *int) error {
	updates := make(map[string]interface{})
	if pattern != nil {
		updates["naming_pattern"] = *pattern
	}
	if maxRooms != nil {
		updates["max_rooms"] = *maxRooms
	}
	if len(updates) == 0 {
		return nil
	}
	return p.db.Model(&types.Hub{Id: id}).Updates(updates).Error
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) DeleteRoom(id int64) error {
	return p.db.Delete(&types.Room{Id: id}).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	err := p.db.First(room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) CountRoomsForHub(hubId int64) (int64, error) {
	var count int64
	err := p.db.Model(&types.Room{}).Where("hub_id = ?", hubId).Count(&count).Error
	return count, err
}

// NextSequenceForHub computes the smallest free sequence in a single
// statement so concurrent readers see a consistent answer from the store
// itself. The form is portable between sqlite and postgres.
func (p *GormPersist) NextSequenceForHub(hubId int64) (int, error) {
	var next int
	err := p.db.Raw(`
		SELECT CASE
			WHEN NOT EXISTS (SELECT 1 FROM rooms WHERE hub_id = ? AND sequence = 1) THEN 1
			ELSE (
				SELECT MIN(r.sequence) + 1 FROM rooms r
				WHERE r.hub_id = ?
				AND NOT EXISTS (SELECT 1 FROM rooms r2 WHERE r2.hub_id = ? AND r2.sequence = r.sequence + 1)
			)
		END`, hubId, hubId, hubId).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	if next < 1 {
		next = 1
	}
	return next, nil
}

func (p *GormPersist) Close() error {
	return nil
}
