package models

import "time"

// WebhookEvent stores platform webhook payloads with deduplication metadata
// for idempotent processing. The external delivery ID is unique per topic;
// replayed deliveries are detected on insert and skipped.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Topic           string     `gorm:"type:varchar(100);not null;index:ux_webhook_events_topic_event,unique,priority:1" json:"topic"`
	ExternalEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_topic_event,unique,priority:2" json:"external_event_id"`
	Shop            string     `gorm:"type:varchar(191);not null;index" json:"shop"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
