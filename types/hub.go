package types

import (
	"time"
)

// Hub is a designated trigger channel: whenever a member joins it, the
// orchestrator spawns an ephemeral room next to it. Hubs are soft-deleted
// only (Active=false), the row is kept so a re-added hub keeps its
// configuration.
type Hub struct {
	Id            int64     `json:"id" gorm:"primaryKey"` // platform channel id
	GuildId       int64     `json:"guild_id" gorm:"index"`
	Active        bool      `json:"active"`
	NamingPattern string    `json:"naming_pattern"` // placeholders: {user}, {display}, {n}; empty = unset
	MaxRooms      int       `json:"max_rooms"`      // 0 = unlimited
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}
