package auditlog

import (
	"encoding/json"
	"time"
)

// Action is the closed set of audited actions.
type Action string

const (
	ActionSubmitOrder      Action = "SUBMIT_ORDER"
	ActionAddItem          Action = "ADD_ITEM"
	ActionUpdateOrder      Action = "UPDATE_ORDER"
	ActionUpdateItemStatus Action = "UPDATE_ITEM_STATUS"
	ActionCancelItem       Action = "CANCEL_ITEM"
	ActionCancelOrder      Action = "CANCEL_ORDER"
	ActionCompleteOrder    Action = "COMPLETE_ORDER"
)

func (a Action) String() string {
	return string(a)
}

// Entry is an append-only audit record for a state-changing operation.
// Entries are never updated or deleted once written.
type Entry struct {
	ID        int64           `json:"id"`
	TargetID  int64           `json:"targetId"`
	Action    Action          `json:"action"`
	ActorID   int64           `json:"actorId"`
	Reason    string          `json:"reason,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Snapshot is the before/after payload stored alongside an entry.
type Snapshot struct {
	Before any `json:"before,omitempty"`
	After  any `json:"after,omitempty"`
}

// NewEntry builds an entry with a marshalled before/after snapshot.
// A snapshot that cannot be marshalled is dropped rather than failing the
// business operation that produced it.
func NewEntry(targetID int64, action Action, actorID int64, reason string, snap *Snapshot, now time.Time) Entry {
	e := Entry{
		TargetID:  targetID,
		Action:    action,
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: now,
	}

	if snap != nil {
		if payload, err := json.Marshal(snap); err == nil {
			e.Payload = payload
		}
	}

	return e
}
