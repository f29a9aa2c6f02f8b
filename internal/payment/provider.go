// Package payment talks to the payment provider and turns its webhook
// deliveries into a closed set of typed events.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedEvent       = errors.New("malformed webhook event")
)

// ProviderError wraps a failed call to the payment provider. Callers may retry.
type ProviderError struct {
	Op         string
	Code       string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider %s failed (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("payment provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type CheckoutRequest struct {
	AccountID  string
	CustomerID string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID             string
	URL            string
	AccountID      string
	SubscriptionID string
	Paid           bool
}

type Subscription struct {
	ID               string
	Status           string
	CurrentPeriodEnd time.Time
}

// Live reports whether the subscription is in good standing. Subscriptions
// with an outstanding invoice (past_due, unpaid) are not live.
func (s *Subscription) Live() bool {
	switch s.Status {
	case "active", "trialing":
		return true
	}
	return false
}

// Current reports whether the latest invoice of the subscription is paid.
func (s *Subscription) Current() bool {
	return s.Status == "active"
}

type Provider interface {
	CreateCustomer(ctx context.Context, accountID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ParseEvent(payload []byte, signature string) (Event, error)
}
