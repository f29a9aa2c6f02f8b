// Package store persists account billing state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("account not found")
	// ErrConflict means the billing fields changed since they were read.
	ErrConflict = errors.New("billing state changed concurrently")
)

type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &user, nil
}

func (s *AccountStore) FindBySubscriptionRef(ctx context.Context, ref string) (*models.User, error) {
	if ref == "" {
		return nil, ErrNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", ref).
		Order("updated_at DESC").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account by subscription: %w", err)
	}
	return &user, nil
}

// CompareAndSet writes next only if the stored version and status still match
// expected. The version is incremented on success.
func (s *AccountStore) CompareAndSet(ctx context.Context, id uuid.UUID, expected, next entitlement.Billing) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND billing_version = ? AND subscription_status = ?", id, expected.Version, string(expected.Status)).
		Updates(map[string]interface{}{
			"subscription_status":    string(next.Status),
			"subscription_end_date":  next.ExpiresAt,
			"stripe_subscription_id": next.SubscriptionRef,
			"billing_event_at":       next.LastEventAt,
			"billing_version":        gorm.Expr("billing_version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("update billing: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("update billing: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// SetCustomerReferenceIfAbsent stores ref only when the account has no
// customer reference yet and returns whichever value ends up stored.
func (s *AccountStore) SetCustomerReferenceIfAbsent(ctx context.Context, id uuid.UUID, ref string) (string, error) {
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND (stripe_customer_id = '' OR stripe_customer_id IS NULL)", id).
		Update("stripe_customer_id", ref).Error
	if err != nil {
		return "", fmt.Errorf("set customer reference: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "stripe_customer_id").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("set customer reference: %w", err)
	}
	return user.StripeCustomerID, nil
}
