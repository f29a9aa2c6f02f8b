package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		superadmin bool
		billing    Billing
		want       Result
	}{
		{
			name:       "superadmin ignores billing",
			superadmin: true,
			billing:    Billing{Status: StatusExpired, ExpiresAt: at(-time.Hour)},
			want:       Result{Entitled: true},
		},
		{
			name:       "superadmin with pending status",
			superadmin: true,
			billing:    Billing{Status: StatusPending},
			want:       Result{Entitled: true},
		},
		{
			name:    "pending requires subscription",
			billing: Billing{Status: StatusPending},
			want:    Result{Reason: ReasonSubscriptionRequired},
		},
		{
			name:    "cancelled requires subscription",
			billing: Billing{Status: StatusCancelled, ExpiresAt: at(24 * time.Hour)},
			want:    Result{Reason: ReasonSubscriptionRequired},
		},
		{
			name:    "expired status",
			billing: Billing{Status: StatusExpired, ExpiresAt: at(24 * time.Hour)},
			want:    Result{Reason: ReasonSubscriptionExpired},
		},
		{
			name:    "active before expiry",
			billing: Billing{Status: StatusActive, ExpiresAt: at(time.Minute)},
			want:    Result{Entitled: true},
		},
		{
			name:    "active exactly at expiry",
			billing: Billing{Status: StatusActive, ExpiresAt: at(0)},
			want:    Result{Entitled: true},
		},
		{
			name:    "active past expiry",
			billing: Billing{Status: StatusActive, ExpiresAt: at(-time.Second)},
			want:    Result{Reason: ReasonSubscriptionExpired, ObservedExpired: true},
		},
		{
			name:    "active without expiry",
			billing: Billing{Status: StatusActive},
			want:    Result{Entitled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.superadmin, tt.billing, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	b := Billing{Status: StatusActive, ExpiresAt: at(-time.Hour)}
	assert.Equal(t, Evaluate(false, b, now), Evaluate(false, b, now))
}

func TestResultDecision(t *testing.T) {
	assert.Equal(t, "entitled", Result{Entitled: true}.Decision())
	assert.Equal(t, "payment_required", Result{Reason: ReasonSubscriptionRequired}.Decision())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusActive, StatusExpired, StatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("unlimited").Valid())
	assert.False(t, Status("").Valid())
}
