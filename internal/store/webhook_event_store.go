package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventStore keeps an audit trail of provider deliveries.
type WebhookEventStore struct {
	db *gorm.DB
}

func NewWebhookEventStore(db *gorm.DB) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

// Record inserts the event, or on redelivery updates its outcome and
// increments the delivery count.
func (s *WebhookEventStore) Record(ctx context.Context, event *models.WebhookEvent) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_event_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"outcome":    event.Outcome,
			"user_id":    event.UserID,
			"deliveries": gorm.Expr("deliveries + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(event).Error
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func (s *WebhookEventStore) Get(ctx context.Context, providerEventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.db.WithContext(ctx).First(&event, "provider_event_id = ?", providerEventID).Error; err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return &event, nil
}

func (s *WebhookEventStore) List(ctx context.Context, limit, offset int) ([]models.WebhookEvent, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count webhook events: %w", err)
	}

	var events []models.WebhookEvent
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook events: %w", err)
	}
	return events, total, nil
}
