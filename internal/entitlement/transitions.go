package entitlement

import "time"

// Transitions return the next billing state and whether anything changed.
// An unchanged result must not be written: replaying an event is a no-op.
//
// The at argument is the provider-side creation time of the triggering
// event. A zero value means the transition was not triggered by a provider
// event (session verification, user cancellation) and neither checks nor
// advances the ordering watermark.

// Activate starts or restores a subscription. Applies from any state.
func Activate(b Billing, subscriptionRef string, expiresAt time.Time, at time.Time) (Billing, bool) {
	if isStale(b, at) || subscriptionRef == "" {
		return b, false
	}

	next := b
	next.Status = StatusActive
	if b.SubscriptionRef == subscriptionRef {
		next.ExpiresAt = laterExpiry(b.ExpiresAt, expiresAt)
	} else if !expiresAt.IsZero() {
		next.ExpiresAt = timePtr(expiresAt)
	}
	next.SubscriptionRef = subscriptionRef
	next.LastEventAt = advance(b.LastEventAt, at)

	return next, !Equal(b, next)
}

// Renew sets the period end reported for the subscription held by the
// account. Events for any other subscription are ignored.
func Renew(b Billing, subscriptionRef string, expiresAt time.Time, at time.Time) (Billing, bool) {
	if isStale(b, at) || !holds(b, subscriptionRef) {
		return b, false
	}

	next := b
	next.Status = StatusActive
	if !expiresAt.IsZero() {
		next.ExpiresAt = timePtr(expiresAt)
	}
	next.LastEventAt = advance(b.LastEventAt, at)

	return next, !Equal(b, next)
}

// Expire marks a failed payment. The subscription reference is kept so a
// later successful invoice can renew it.
func Expire(b Billing, subscriptionRef string, at time.Time) (Billing, bool) {
	if isStale(b, at) || !holds(b, subscriptionRef) {
		return b, false
	}

	next := b
	next.Status = StatusExpired
	next.LastEventAt = advance(b.LastEventAt, at)

	return next, !Equal(b, next)
}

// Cancel ends the subscription and clears the reference.
func Cancel(b Billing, subscriptionRef string, at time.Time) (Billing, bool) {
	if isStale(b, at) || !holds(b, subscriptionRef) {
		return b, false
	}

	next := b
	next.Status = StatusCancelled
	next.SubscriptionRef = ""
	next.LastEventAt = advance(b.LastEventAt, at)

	return next, !Equal(b, next)
}

// LazyExpire persists an expiry observed by Evaluate.
func LazyExpire(b Billing, now time.Time) (Billing, bool) {
	if b.Status != StatusActive || b.ExpiresAt == nil || !now.After(*b.ExpiresAt) {
		return b, false
	}

	next := b
	next.Status = StatusExpired
	return next, true
}

// Override sets the status directly on behalf of a superadmin. Cancelling
// clears the subscription reference.
func Override(b Billing, status Status) (Billing, bool) {
	next := b
	next.Status = status
	if status == StatusCancelled {
		next.SubscriptionRef = ""
	}
	return next, !Equal(b, next)
}

// Equal compares every field except Version.
func Equal(a, b Billing) bool {
	return a.Status == b.Status &&
		a.SubscriptionRef == b.SubscriptionRef &&
		sameTime(a.ExpiresAt, b.ExpiresAt) &&
		sameTime(a.LastEventAt, b.LastEventAt)
}

func holds(b Billing, subscriptionRef string) bool {
	return subscriptionRef != "" && b.SubscriptionRef == subscriptionRef
}

func isStale(b Billing, at time.Time) bool {
	return !at.IsZero() && b.LastEventAt != nil && at.Before(*b.LastEventAt)
}

func advance(current *time.Time, at time.Time) *time.Time {
	if at.IsZero() {
		return current
	}
	if current != nil && !at.After(*current) {
		return current
	}
	return timePtr(at)
}

func laterExpiry(current *time.Time, candidate time.Time) *time.Time {
	if candidate.IsZero() {
		return current
	}
	if current != nil && !candidate.After(*current) {
		return current
	}
	return timePtr(candidate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
