package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent records every verified provider delivery and what was done with it.
type WebhookEvent struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProviderEventID string         `gorm:"size:255;not null;uniqueIndex" json:"provider_event_id"`
	Type            string         `gorm:"size:100;not null;index" json:"type"`
	Outcome         string         `gorm:"size:30;not null" json:"outcome"`
	UserID          *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Deliveries      int            `gorm:"not null;default:1" json:"deliveries"`
	EventCreatedAt  time.Time      `json:"event_created_at"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
