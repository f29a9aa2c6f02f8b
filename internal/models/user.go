package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account together with its billing fields.
type User struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username             string     `gorm:"size:80;not null;uniqueIndex" json:"username"`
	Email                string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password             string     `gorm:"not null" json:"-"`
	IsActive             bool       `gorm:"not null;default:true" json:"is_active"`
	IsSuperadmin         bool       `gorm:"not null;default:false" json:"is_superadmin"`
	SubscriptionStatus   string     `gorm:"size:20;not null;default:'pending';index" json:"subscription_status"`
	SubscriptionEndDate  *time.Time `json:"subscription_end_date"`
	StripeCustomerID     string     `gorm:"size:255;index" json:"-"`
	StripeSubscriptionID string     `gorm:"size:255;index" json:"-"`
	BillingVersion       int64      `gorm:"not null;default:0" json:"-"`
	BillingEventAt       *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = string(entitlement.StatusPending)
	}
	return nil
}

// Billing returns the billing fields as seen by the entitlement package.
func (u *User) Billing() entitlement.Billing {
	return entitlement.Billing{
		Status:          entitlement.Status(u.SubscriptionStatus),
		ExpiresAt:       u.SubscriptionEndDate,
		SubscriptionRef: u.StripeSubscriptionID,
		LastEventAt:     u.BillingEventAt,
		Version:         u.BillingVersion,
	}
}

// SetBilling copies b into the billing fields.
func (u *User) SetBilling(b entitlement.Billing) {
	u.SubscriptionStatus = string(b.Status)
	u.SubscriptionEndDate = b.ExpiresAt
	u.StripeSubscriptionID = b.SubscriptionRef
	u.BillingEventAt = b.LastEventAt
	u.BillingVersion = b.Version
}
