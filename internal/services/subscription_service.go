package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/payment"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/store"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrAlreadySubscribed  = errors.New("subscription already active")
	ErrSuperadminCheckout = errors.New("superadmin accounts do not need a subscription")
	ErrSessionMismatch    = errors.New("checkout session belongs to another account")
	ErrNoSubscription     = errors.New("no active subscription to cancel")
	ErrLiveSubscription   = errors.New("account still holds a provider subscription")
	ErrInvalidStatus      = errors.New("invalid subscription status")
	ErrInvalidSessionID   = errors.New("session id is required")
)

// Webhook outcomes recorded on every verified delivery.
const (
	OutcomeApplied        = "applied"
	OutcomeNoop           = "noop"
	OutcomeIgnored        = "ignored"
	OutcomeUnknownSubject = "unknown_subject"
	OutcomeMalformed      = "malformed"
	OutcomeFailed         = "failed"
)

const maxBillingAttempts = 3

type SubscriptionService struct {
	accounts *store.AccountStore
	events   *store.WebhookEventStore
	provider payment.Provider
	cfg      *config.Config

	customers singleflight.Group
	now       func() time.Time
}

func NewSubscriptionService(accounts *store.AccountStore, events *store.WebhookEventStore, provider payment.Provider, cfg *config.Config) *SubscriptionService {
	return &SubscriptionService{
		accounts: accounts,
		events:   events,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateCheckout opens a provider checkout session for the account.
func (s *SubscriptionService) CreateCheckout(ctx context.Context, userID uuid.UUID) (*dto.CheckoutResponse, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperadmin {
		return nil, ErrSuperadminCheckout
	}

	result := entitlement.Evaluate(false, user.Billing(), s.now())
	if result.Entitled {
		return nil, ErrAlreadySubscribed
	}
	if result.ObservedExpired {
		s.expireLapsed(ctx, user.ID)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()

	start := time.Now()
	session, err := s.provider.CreateCheckoutSession(pctx, payment.CheckoutRequest{
		AccountID:  user.ID.String(),
		CustomerID: customerID,
		SuccessURL: s.cfg.FrontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.FrontendURL + "/payment/cancel",
	})
	observeProvider("create_checkout_session", start, err)
	if err != nil {
		return nil, err
	}

	slog.Info("checkout session created", "user_id", user.ID.String(), "session_id", session.ID)
	return &dto.CheckoutResponse{CheckoutURL: session.URL, SessionID: session.ID}, nil
}

// ensureCustomer returns the account's customer reference, creating it at the
// provider on first use. Concurrent calls for one account share a single
// provider request.
func (s *SubscriptionService) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	v, err, _ := s.customers.Do(user.ID.String(), func() (interface{}, error) {
		pctx, cancel := s.providerContext(ctx)
		defer cancel()

		start := time.Now()
		created, err := s.provider.CreateCustomer(pctx, user.ID.String(), user.Email, user.Username)
		observeProvider("create_customer", start, err)
		if err != nil {
			return "", err
		}

		stored, err := s.accounts.SetCustomerReferenceIfAbsent(ctx, user.ID, created)
		if err != nil {
			return "", err
		}
		if stored != created {
			slog.Warn("customer reference already set, discarding new customer",
				"user_id", user.ID.String(), "stored", stored, "discarded", created)
		}
		return stored, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// VerifySession confirms a checkout the client reports as finished.
func (s *SubscriptionService) VerifySession(ctx context.Context, userID uuid.UUID, sessionID string) (*dto.VerifySessionResponse, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()

	start := time.Now()
	session, err := s.provider.GetCheckoutSession(pctx, sessionID)
	observeProvider("get_checkout_session", start, err)
	if err != nil {
		return nil, err
	}
	if session.AccountID != userID.String() {
		slog.Warn("checkout session ownership mismatch", "user_id", userID.String(), "session_id", sessionID)
		return nil, ErrSessionMismatch
	}
	if !session.Paid || session.SubscriptionID == "" {
		return &dto.VerifySessionResponse{Status: "pending", Message: "Payment not completed yet"}, nil
	}

	sub, err := s.fetchSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.Live() {
		slog.Info("checkout subscription no longer live", "user_id", userID.String(), "subscription_id", sub.ID, "status", sub.Status)
		return &dto.VerifySessionResponse{Status: "pending", Message: "Subscription is not active"}, nil
	}

	// A session carries no event time, so it cannot undo a later expiry of the
	// same subscription unless the provider reports it paid up again.
	user, _, err := s.apply(ctx, userID, "activate", func(b entitlement.Billing) (entitlement.Billing, bool) {
		if b.SubscriptionRef == sub.ID && lapsed(b.Status) && !sub.Current() {
			return b, false
		}
		return entitlement.Activate(b, sub.ID, sub.CurrentPeriodEnd, time.Time{})
	})
	if err != nil {
		return nil, err
	}
	if user.SubscriptionStatus != string(entitlement.StatusActive) {
		slog.Info("checkout session does not restore lapsed subscription",
			"user_id", userID.String(), "subscription_id", sub.ID, "status", sub.Status)
		return &dto.VerifySessionResponse{Status: "pending", Message: "Subscription is not active"}, nil
	}

	resp := dto.NewUserResponse(user)
	return &dto.VerifySessionResponse{Status: "success", Message: "Subscription activated", User: &resp}, nil
}

// IngestEvent verifies and applies one webhook delivery. A nil error means
// the delivery should be acknowledged; transient failures are returned so
// the provider redelivers.
func (s *SubscriptionService) IngestEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseEvent(payload, signature)
	if err != nil {
		reason := "invalid_signature"
		if errors.Is(err, payment.ErrWebhookSecretMissing) {
			reason = "secret_missing"
		}
		metrics.WebhookRejectedTotal.WithLabelValues(reason).Inc()
		return err
	}

	outcome, userID, err := s.dispatch(ctx, event)
	if err != nil {
		outcome = OutcomeFailed
		slog.Error("webhook event processing failed",
			"op", "subscription.IngestEvent", "event_id", event.EventID(), "event_type", event.EventType(), "error", err)
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.EventType(), outcome).Inc()
	s.recordEvent(ctx, event, outcome, userID)

	slog.Info("webhook event handled", "event_id", event.EventID(), "event_type", event.EventType(), "outcome", outcome)
	return err
}

func (s *SubscriptionService) dispatch(ctx context.Context, event payment.Event) (string, *uuid.UUID, error) {
	switch e := event.(type) {
	case *payment.CheckoutCompleted:
		return s.onCheckoutCompleted(ctx, e)
	case *payment.InvoicePaid:
		return s.onInvoicePaid(ctx, e)
	case *payment.InvoicePaymentFailed:
		return s.onSubjectEvent(ctx, e.Envelope, e.SubscriptionID, "expire", func(b entitlement.Billing) (entitlement.Billing, bool) {
			return entitlement.Expire(b, e.SubscriptionID, e.CreatedAt())
		})
	case *payment.SubscriptionDeleted:
		return s.onSubjectEvent(ctx, e.Envelope, e.SubscriptionID, "cancel", func(b entitlement.Billing) (entitlement.Billing, bool) {
			return entitlement.Cancel(b, e.SubscriptionID, e.CreatedAt())
		})
	case *payment.Malformed:
		slog.Warn("webhook event could not be decoded", "event_id", e.EventID(), "event_type", e.EventType(), "error", e.Err)
		return OutcomeMalformed, nil, nil
	default:
		return OutcomeIgnored, nil, nil
	}
}

func (s *SubscriptionService) onCheckoutCompleted(ctx context.Context, e *payment.CheckoutCompleted) (string, *uuid.UUID, error) {
	userID, err := uuid.Parse(e.AccountID)
	if err != nil {
		slog.Warn("checkout completed without a valid account id", "event_id", e.EventID(), "session_id", e.SessionID)
		return OutcomeIgnored, nil, nil
	}
	if !e.Paid || e.SubscriptionID == "" {
		slog.Info("checkout completed without a paid subscription", "event_id", e.EventID(), "user_id", userID.String(), "session_id", e.SessionID)
		return OutcomeIgnored, &userID, nil
	}

	sub, err := s.fetchSubscription(ctx, e.SubscriptionID)
	if isMissing(err) {
		slog.Warn("checkout subscription not found at provider", "event_id", e.EventID(), "subscription_id", e.SubscriptionID)
		return OutcomeIgnored, &userID, nil
	}
	if err != nil {
		return OutcomeFailed, &userID, err
	}
	if !sub.Live() {
		slog.Info("checkout subscription no longer live", "user_id", userID.String(), "subscription_id", sub.ID, "status", sub.Status)
		return OutcomeIgnored, &userID, nil
	}

	_, changed, err := s.apply(ctx, userID, "activate", func(b entitlement.Billing) (entitlement.Billing, bool) {
		return entitlement.Activate(b, sub.ID, sub.CurrentPeriodEnd, e.CreatedAt())
	})
	if errors.Is(err, store.ErrNotFound) {
		s.reportUnknownSubject(e.Envelope, "user_id", userID.String())
		return OutcomeUnknownSubject, nil, nil
	}
	return appliedOutcome(changed), &userID, err
}

func (s *SubscriptionService) onInvoicePaid(ctx context.Context, e *payment.InvoicePaid) (string, *uuid.UUID, error) {
	if e.SubscriptionID == "" {
		return OutcomeIgnored, nil, nil
	}

	user, err := s.accounts.FindBySubscriptionRef(ctx, e.SubscriptionID)
	if errors.Is(err, store.ErrNotFound) {
		s.reportUnknownSubject(e.Envelope, "subscription_id", e.SubscriptionID)
		return OutcomeUnknownSubject, nil, nil
	}
	if err != nil {
		return OutcomeFailed, nil, err
	}

	periodEnd := e.PeriodEnd
	if periodEnd.IsZero() {
		sub, err := s.fetchSubscription(ctx, e.SubscriptionID)
		if isMissing(err) {
			return OutcomeIgnored, &user.ID, nil
		}
		if err != nil {
			return OutcomeFailed, &user.ID, err
		}
		periodEnd = sub.CurrentPeriodEnd
	}

	_, changed, err := s.apply(ctx, user.ID, "renew", func(b entitlement.Billing) (entitlement.Billing, bool) {
		return entitlement.Renew(b, e.SubscriptionID, periodEnd, e.CreatedAt())
	})
	return appliedOutcome(changed), &user.ID, err
}

func (s *SubscriptionService) onSubjectEvent(ctx context.Context, env payment.Envelope, subscriptionID, name string, transition func(entitlement.Billing) (entitlement.Billing, bool)) (string, *uuid.UUID, error) {
	user, err := s.accounts.FindBySubscriptionRef(ctx, subscriptionID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("webhook event for unknown subscription ignored", "event_id", env.ID, "event_type", env.Type, "subscription_id", subscriptionID)
		return OutcomeIgnored, nil, nil
	}
	if err != nil {
		return OutcomeFailed, nil, err
	}

	_, changed, err := s.apply(ctx, user.ID, name, transition)
	return appliedOutcome(changed), &user.ID, err
}

// reportUnknownSubject makes events that reference no account visible
// without failing the delivery.
func (s *SubscriptionService) reportUnknownSubject(env payment.Envelope, key, value string) {
	slog.Warn("webhook event references unknown account", "event_id", env.ID, "event_type", env.Type, key, value)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event_type", env.Type)
		scope.SetExtra("event_id", env.ID)
		scope.SetExtra(key, value)
		sentry.CaptureMessage("payment webhook references unknown account")
	})
}

func (s *SubscriptionService) recordEvent(ctx context.Context, event payment.Event, outcome string, userID *uuid.UUID) {
	if s.events == nil {
		return
	}
	record := &models.WebhookEvent{
		ProviderEventID: event.EventID(),
		Type:            event.EventType(),
		Outcome:         outcome,
		UserID:          userID,
		EventCreatedAt:  event.CreatedAt(),
		Payload:         event.Payload(),
	}
	if err := s.events.Record(ctx, record); err != nil {
		slog.Error("failed to record webhook event", "event_id", event.EventID(), "error", err)
	}
}

// Status reports the caller's subscription state, persisting an observed expiry.
func (s *SubscriptionService) Status(ctx context.Context, userID uuid.UUID) (*dto.SubscriptionStatusResponse, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperadmin {
		return &dto.SubscriptionStatusResponse{SubscriptionStatus: "unlimited", IsSuperadmin: true}, nil
	}

	result := entitlement.Evaluate(false, user.Billing(), s.now())
	if result.ObservedExpired {
		if updated, _, err := s.apply(ctx, user.ID, "lazy_expire", s.lazyExpire); err != nil {
			slog.Error("lazy expiry failed", "user_id", user.ID.String(), "error", err)
			user.SubscriptionStatus = string(entitlement.StatusExpired)
		} else {
			user = updated
		}
	}

	return &dto.SubscriptionStatusResponse{
		SubscriptionStatus:  user.SubscriptionStatus,
		SubscriptionEndDate: user.SubscriptionEndDate,
	}, nil
}

// Cancel cancels the caller's subscription at the provider and locally.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	ref := user.StripeSubscriptionID
	if ref == "" {
		return nil, ErrNoSubscription
	}

	if err := s.cancelAtProvider(ctx, ref); err != nil {
		return nil, err
	}

	user, _, err = s.apply(ctx, userID, "cancel", func(b entitlement.Billing) (entitlement.Billing, bool) {
		return entitlement.Cancel(b, ref, time.Time{})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("subscription cancelled by user", "user_id", userID.String(), "subscription_id", ref)
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// Authorize loads the account and evaluates its entitlement.
func (s *SubscriptionService) Authorize(ctx context.Context, userID uuid.UUID) (*models.User, entitlement.Result, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, entitlement.Result{}, err
	}
	result := entitlement.Evaluate(user.IsSuperadmin, user.Billing(), s.now())
	metrics.EntitlementDecisionsTotal.WithLabelValues(result.Decision(), string(result.Reason)).Inc()
	return user, result, nil
}

// ExpireLapsed persists an expiry observed while evaluating the account.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context, userID uuid.UUID) error {
	_, _, err := s.apply(ctx, userID, "lazy_expire", s.lazyExpire)
	return err
}

// Override sets the subscription status on behalf of a superadmin.
// Cancelling a live subscription cancels it at the provider first.
func (s *SubscriptionService) Override(ctx context.Context, userID uuid.UUID, status entitlement.Status) (*models.User, error) {
	return s.override(ctx, s.accounts, userID, status)
}

// override runs Override against accounts, which may be bound to a caller's
// transaction.
func (s *SubscriptionService) override(ctx context.Context, accounts *store.AccountStore, userID uuid.UUID, status entitlement.Status) (*models.User, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	user, err := accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == entitlement.StatusPending && user.StripeSubscriptionID != "" {
		return nil, ErrLiveSubscription
	}
	if status == entitlement.StatusCancelled && user.StripeSubscriptionID != "" {
		if err := s.cancelAtProvider(ctx, user.StripeSubscriptionID); err != nil {
			return nil, err
		}
	}

	user, _, err = applyTo(ctx, accounts, userID, "override", func(b entitlement.Billing) (entitlement.Billing, bool) {
		if status == entitlement.StatusPending && b.SubscriptionRef != "" {
			return b, false
		}
		return entitlement.Override(b, status)
	})
	if err != nil {
		return nil, err
	}
	if user.SubscriptionStatus != string(status) {
		return nil, ErrLiveSubscription
	}
	return user, nil
}

func (s *SubscriptionService) lazyExpire(b entitlement.Billing) (entitlement.Billing, bool) {
	return entitlement.LazyExpire(b, s.now())
}

func (s *SubscriptionService) expireLapsed(ctx context.Context, userID uuid.UUID) {
	if err := s.ExpireLapsed(ctx, userID); err != nil {
		slog.Error("lazy expiry failed", "user_id", userID.String(), "error", err)
	}
}

// apply runs transition against the latest stored billing state and writes
// the result with compare-and-set, re-reading on conflict.
func (s *SubscriptionService) apply(ctx context.Context, userID uuid.UUID, name string, transition func(entitlement.Billing) (entitlement.Billing, bool)) (*models.User, bool, error) {
	return applyTo(ctx, s.accounts, userID, name, transition)
}

func applyTo(ctx context.Context, accounts *store.AccountStore, userID uuid.UUID, name string, transition func(entitlement.Billing) (entitlement.Billing, bool)) (*models.User, bool, error) {
	for attempt := 1; attempt <= maxBillingAttempts; attempt++ {
		user, err := accounts.Get(ctx, userID)
		if err != nil {
			return nil, false, err
		}

		current := user.Billing()
		next, changed := transition(current)
		if !changed {
			metrics.TransitionsTotal.WithLabelValues(name, "noop").Inc()
			return user, false, nil
		}

		err = accounts.CompareAndSet(ctx, userID, current, next)
		if err == nil {
			next.Version = current.Version + 1
			user.SetBilling(next)
			metrics.TransitionsTotal.WithLabelValues(name, "applied").Inc()
			slog.Info("billing state updated", "user_id", userID.String(), "transition", name,
				"from", string(current.Status), "to", string(next.Status))
			return user, true, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, false, err
		}
		metrics.TransitionsTotal.WithLabelValues(name, "conflict").Inc()
	}
	return nil, false, fmt.Errorf("%s: %w", name, store.ErrConflict)
}

func (s *SubscriptionService) fetchSubscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	pctx, cancel := s.providerContext(ctx)
	defer cancel()

	start := time.Now()
	sub, err := s.provider.GetSubscription(pctx, subscriptionID)
	observeProvider("get_subscription", start, err)
	return sub, err
}

func (s *SubscriptionService) cancelAtProvider(ctx context.Context, subscriptionID string) error {
	pctx, cancel := s.providerContext(ctx)
	defer cancel()

	start := time.Now()
	err := s.provider.CancelSubscription(pctx, subscriptionID)
	observeProvider("cancel_subscription", start, err)
	return err
}

func (s *SubscriptionService) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func observeProvider(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ProviderRequestDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

// isMissing reports a provider 404. Redelivering cannot fix those.
func isMissing(err error) bool {
	var pe *payment.ProviderError
	return errors.As(err, &pe) && pe.StatusCode == 404
}

func appliedOutcome(changed bool) string {
	if changed {
		return OutcomeApplied
	}
	return OutcomeNoop
}

func lapsed(status entitlement.Status) bool {
	return status == entitlement.StatusExpired || status == entitlement.StatusCancelled
}
