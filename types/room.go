package types

import (
	"time"
)

// Room is the durable record of one ephemeral channel spawned from a hub.
// The row is created only after the live channel exists and is deleted when
// the room empties, its hub is deactivated or the live channel disappears.
type Room struct {
	Id        int64     `json:"id" gorm:"primaryKey"` // platform channel id
	HubId     int64     `json:"hub_id" gorm:"index"`
	GuildId   int64     `json:"guild_id"`
	CreatorId int64     `json:"creator_id"` // 0 once the creator left the platform
	Sequence  int       `json:"sequence"`   // per-hub, gap-filled on creation, never reused while the row lives
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
