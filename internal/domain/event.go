package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusEvent is published after a record is created or changes status.
// From is empty for creation events.
type StatusEvent struct {
	TransactionID    uuid.UUID  `json:"transaction_id"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	Kind             Kind       `json:"kind"`
	From             Status     `json:"from,omitempty"`
	To               Status     `json:"to"`
	SettlementMicros int64      `json:"settlement_micros"`
	ActorID          *uuid.UUID `json:"actor_id,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}
