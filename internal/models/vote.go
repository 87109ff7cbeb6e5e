package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Vote is one device's rating of one performance. The composite unique
// index is the idempotence guarantee: a second vote from the same device
// for the same performance fails, it does not overwrite.
type Vote struct {
	bun.BaseModel `bun:"table:votes"`

	ID            string    `bun:"id,pk" json:"id"`
	PerformanceID string    `bun:"performance_id,notnull,unique:votes_perf_device" json:"performance_id"`
	InstanceID    string    `bun:"instance_id,notnull" json:"instance_id"`
	DeviceID      string    `bun:"device_id,notnull,unique:votes_perf_device" json:"device_id"`
	Score         int       `bun:"score,notnull" json:"score"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type SubmitVoteRequest struct {
	PerformanceID string `json:"performance_id"`
	DeviceID      string `json:"device_id"`
	Score         int    `json:"score"`
}
