package domain

import (
	"context"

	"condo/internal/core/id"
)

// Event types written to the transactional outbox.
const (
	EventChargeIssued = "charge.issued"
	EventChargePaid   = "charge.paid"
)

// Event is a domain event delivered after the writing transaction commits.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher records events inside the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

// ChargeNotice is the SMS fan-out payload of a charge event.
type ChargeNotice struct {
	ChargeID    id.ID  `json:"charge_id"`
	UnitID      id.ID  `json:"unit_id"`
	Mobile      string `json:"mobile"`
	Name        string `json:"name"`
	ChargeTitle string `json:"charge_title"`
	Amount      int64  `json:"amount"`
}
