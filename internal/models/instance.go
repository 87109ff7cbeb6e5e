package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	InstanceOpen    = "open"
	InstanceExpired = "expired"
)

type EventInstance struct {
	bun.BaseModel `bun:"table:instances"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Status    string    `bun:"status,notnull" json:"status"`
	JoinCode  string    `bun:"join_code,notnull" json:"join_code"`
	ExpiresAt time.Time `bun:"expires_at,nullzero" json:"expires_at"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type CreateInstanceRequest struct {
	Name       string `json:"name"`
	TTLMinutes int    `json:"ttl_minutes"`
}

// RankingArchive is a best-effort snapshot of the final rankings, written
// right before an instance reset wipes the performance history.
type RankingArchive struct {
	bun.BaseModel `bun:"table:ranking_archive"`

	ID           string    `bun:"id,pk" json:"id"`
	InstanceID   string    `bun:"instance_id,notnull" json:"instance_id"`
	SingerName   string    `bun:"singer_name,notnull" json:"singer_name"`
	SongTitle    string    `bun:"song_title,notnull" json:"song_title"`
	AverageScore float64   `bun:"average_score" json:"average_score"`
	VoteCount    int       `bun:"vote_count" json:"vote_count"`
	ArchivedAt   time.Time `bun:"archived_at,notnull" json:"archived_at"`
}
