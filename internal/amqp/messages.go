package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"farmbook/internal/core"
)

// Action is what happened to a ledger row.
type Action string

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

// LedgerEvent announces a create or delete of a ledger row. It carries only
// identifiers; consumers load the row from the database when they need it.
type LedgerEvent struct {
	Kind      core.RecordKind `json:"kind"`
	Action    Action          `json:"action"`
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(kind core.RecordKind, action Action, id, userID int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		Action:    action,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects ones missing identifiers.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Kind == "" || ev.ID <= 0 {
		return nil, fmt.Errorf("ledger event missing kind or id")
	}
	if ev.Action != ActionCreated && ev.Action != ActionDeleted {
		return nil, fmt.Errorf("unknown ledger action %q", ev.Action)
	}
	return &ev, nil
}
