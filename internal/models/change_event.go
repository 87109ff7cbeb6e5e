package models

// Table names carried on change events. Clients filter on these to decide
// which view to re-render.
const (
	TableInstances    = "instances"
	TableWaitlist     = "waitlist"
	TablePerformances = "performances"
	TableVotes        = "votes"
)

const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChangeEvent is the envelope pushed to every connected client (SSE) and
// mirrored onto Kafka whenever a row changes. Payload is the full row
// after the change, or the deleted row's id for deletes.
type ChangeEvent struct {
	Table      string      `json:"table"`
	Action     string      `json:"action"`
	InstanceID string      `json:"instance_id"`
	Payload    interface{} `json:"payload,omitempty"`
}
