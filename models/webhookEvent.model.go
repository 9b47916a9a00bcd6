package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent stores payment gateway webhook payloads with deduplication
// metadata so a replayed event id never fulfills twice.
type WebhookEvent struct {
	gorm.Model
	ProviderEventID string         `json:"provider_event_id" gorm:"uniqueIndex;not null"`
	EventType       string         `json:"event_type" gorm:"index"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	ProcessingError string         `json:"processing_error"`
}
