package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	PerformanceActive = "active"
	PerformanceClosed = "closed"
)

type Performance struct {
	bun.BaseModel `bun:"table:performances"`

	ID              string     `bun:"id,pk" json:"id"`
	InstanceID      string     `bun:"instance_id,notnull" json:"instance_id"`
	WaitlistEntryID string     `bun:"waitlist_entry_id,nullzero" json:"waitlist_entry_id,omitempty"`
	SingerName      string     `bun:"singer_name,notnull" json:"singer_name"`
	SongTitle       string     `bun:"song_title,notnull" json:"song_title"`
	SongReference   string     `bun:"song_reference" json:"song_reference"`
	Status          string     `bun:"status,notnull" json:"status"`
	AverageScore    float64    `bun:"average_score,notnull,default:0" json:"average_score"`
	VoteCount       int        `bun:"vote_count,notnull,default:0" json:"vote_count"`
	VideoChangedAt  *time.Time `bun:"video_changed_at,nullzero" json:"video_changed_at,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at"`
}

type StartPerformanceRequest struct {
	SingerName    string `json:"singer_name"`
	SongTitle     string `json:"song_title"`
	SongReference string `json:"song_reference"`
}

type ChangeVideoRequest struct {
	SongReference string `json:"song_reference"`
	SongTitle     string `json:"song_title,omitempty"`
}
