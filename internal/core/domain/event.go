package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger event published to the outbound webhook.
type EventType string

const (
	EventDistributionRecorded EventType = "DISTRIBUTION_RECORDED"
	EventDividendClaimed      EventType = "DIVIDEND_CLAIMED"
	EventSharesPurchased      EventType = "SHARES_PURCHASED"
	EventProceedsWithdrawn    EventType = "PROCEEDS_WITHDRAWN"
)

// LedgerEvent is a committed state change worth telling the outside world about.
type LedgerEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"event_type"`
	AssetID    uuid.UUID `json:"asset_id"`
	HolderID   string    `json:"holder_id,omitempty"`
	Amount     int64     `json:"amount"`
	Quantity   int64     `json:"quantity,omitempty"`
	Sequence   int64     `json:"sequence,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DeliveryStatus represents the delivery state of an event.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// EventDeliveryLog records each webhook delivery attempt.
type EventDeliveryLog struct {
	ID         uuid.UUID      `json:"id"`
	EventID    uuid.UUID      `json:"event_id"`
	EventType  EventType      `json:"event_type"`
	TargetURL  string         `json:"target_url"`
	Payload    string         `json:"payload"` // JSON string
	HTTPStatus *int           `json:"http_status"`
	Attempt    int            `json:"attempt"`
	Status     DeliveryStatus `json:"status"`
	LastError  *string        `json:"last_error"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
