// Package entitlement decides whether an account may use paid features and
// computes how its billing fields change in response to provider events.
// Nothing in this package performs I/O.
package entitlement

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Billing is the persisted billing state of one account.
type Billing struct {
	Status          Status
	ExpiresAt       *time.Time
	SubscriptionRef string
	// LastEventAt is the creation time of the newest provider event applied.
	LastEventAt *time.Time
	// Version is the compare-and-set token. Bumped by the store on every write.
	Version int64
}

type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonSubscriptionRequired Reason = "subscription_required"
	ReasonSubscriptionExpired  Reason = "subscription_expired"
)

// Result is the outcome of Evaluate.
type Result struct {
	Entitled bool
	Reason   Reason
	// ObservedExpired is set when the account is still stored as active but
	// its expiry has passed. Callers should persist the expiry via LazyExpire.
	ObservedExpired bool
}

func (r Result) Decision() string {
	if r.Entitled {
		return "entitled"
	}
	return "payment_required"
}

// Evaluate maps billing fields and the current time to an access decision.
func Evaluate(isSuperadmin bool, b Billing, now time.Time) Result {
	if isSuperadmin {
		return Result{Entitled: true}
	}

	switch b.Status {
	case StatusActive:
		if b.ExpiresAt != nil && now.After(*b.ExpiresAt) {
			return Result{Reason: ReasonSubscriptionExpired, ObservedExpired: true}
		}
		return Result{Entitled: true}
	case StatusExpired:
		return Result{Reason: ReasonSubscriptionExpired}
	default:
		return Result{Reason: ReasonSubscriptionRequired}
	}
}
