package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent records one inbound provider notification. The unique index
// on (gateway, event_id) is what makes webhook application idempotent: the
// insert and the payment transition share one transaction, so a duplicate
// delivery conflicts here and never re-applies the transition.
type WebhookEvent struct {
	ID                string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Gateway           string         `gorm:"column:gateway;type:varchar(32);not null;uniqueIndex:unique_gateway_event_id,priority:1" json:"gateway"`
	EventID           string         `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex:unique_gateway_event_id,priority:2" json:"event_id"`
	PaymentID         *string        `gorm:"column:payment_id;type:uuid;index" json:"payment_id"`
	ReceivedAt        time.Time      `gorm:"column:received_at;not null" json:"received_at"`
	RawPayloadHash    string         `gorm:"column:raw_payload_hash;type:varchar(64);not null" json:"raw_payload_hash"`
	Payload           datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Verified          bool           `gorm:"column:verified;not null" json:"verified"`
	AppliedTransition bool           `gorm:"column:applied_transition;not null" json:"applied_transition"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
