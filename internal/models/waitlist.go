package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EntryWaiting = "waiting"
	EntryDone    = "done"
)

// Insert policies for new waitlist entries.
const (
	InsertFirst = "insert-first" // becomes the next singer
	InsertFair  = "fair"         // joins the back of the queue
)

type WaitlistEntry struct {
	bun.BaseModel `bun:"table:waitlist"`

	ID            string    `bun:"id,pk" json:"id"`
	InstanceID    string    `bun:"instance_id,notnull" json:"instance_id"`
	SingerName    string    `bun:"singer_name,notnull" json:"singer_name"`
	SongTitle     string    `bun:"song_title,notnull" json:"song_title"`
	SongReference string    `bun:"song_reference" json:"song_reference"`
	Status        string    `bun:"status,notnull" json:"status"`
	Priority      int       `bun:"priority,notnull" json:"priority"`
	TimesSung     int       `bun:"times_sung,notnull,default:0" json:"times_sung"`
	RegisteredBy  string    `bun:"registered_by,nullzero" json:"registered_by,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type EnqueueRequest struct {
	SingerName    string `json:"singer_name"`
	SongTitle     string `json:"song_title"`
	SongReference string `json:"song_reference"`
	RegisteredBy  string `json:"registered_by,omitempty"`
	InsertPolicy  string `json:"insert_policy,omitempty"`
}

type ReorderRequest struct {
	Direction string `json:"direction"` // "up" or "down"
}
