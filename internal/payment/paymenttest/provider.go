// Package paymenttest provides an in-memory payment.Provider and helpers for
// building signed webhook deliveries in tests.
package paymenttest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/payment"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Provider is a mutex-guarded fake. Sessions and subscriptions are seeded by
// tests; every call is counted.
type Provider struct {
	WebhookSecret string

	mu            sync.Mutex
	customers     int
	sessions      map[string]*payment.CheckoutSession
	subscriptions map[string]*payment.Subscription
	calls         map[string]int
	failures      map[string]error
}

func NewProvider(webhookSecret string) *Provider {
	return &Provider{
		WebhookSecret: webhookSecret,
		sessions:      make(map[string]*payment.CheckoutSession),
		subscriptions: make(map[string]*payment.Subscription),
		calls:         make(map[string]int),
		failures:      make(map[string]error),
	}
}

// AddSession seeds a checkout session returned by GetCheckoutSession.
func (p *Provider) AddSession(s payment.CheckoutSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = &s
}

// AddSubscription seeds a subscription returned by GetSubscription.
func (p *Provider) AddSubscription(s payment.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[s.ID] = &s
}

// Fail makes every later call to op return err until cleared with a nil err.
func (p *Provider) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) enter(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if err, ok := p.failures[op]; ok {
		return &payment.ProviderError{Op: op, Err: err}
	}
	return nil
}

func (p *Provider) CreateCustomer(_ context.Context, _, _, _ string) (string, error) {
	if err := p.enter("create customer"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers++
	return fmt.Sprintf("cus_test_%d", p.customers), nil
}

func (p *Provider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	if err := p.enter("create checkout session"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("cs_test_%d", len(p.sessions)+1)
	s := &payment.CheckoutSession{
		ID:        id,
		URL:       "https://checkout.test/" + id,
		AccountID: req.AccountID,
	}
	p.sessions[id] = s
	out := *s
	return &out, nil
}

func (p *Provider) GetCheckoutSession(_ context.Context, sessionID string) (*payment.CheckoutSession, error) {
	if err := p.enter("get checkout session"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, &payment.ProviderError{Op: "get checkout session", Code: "resource_missing", StatusCode: 404, Err: fmt.Errorf("no such session %q", sessionID)}
	}
	out := *s
	return &out, nil
}

func (p *Provider) GetSubscription(_ context.Context, subscriptionID string) (*payment.Subscription, error) {
	if err := p.enter("get subscription"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subscriptions[subscriptionID]
	if !ok {
		return nil, &payment.ProviderError{Op: "get subscription", Code: "resource_missing", StatusCode: 404, Err: fmt.Errorf("no such subscription %q", subscriptionID)}
	}
	out := *s
	return &out, nil
}

func (p *Provider) CancelSubscription(_ context.Context, subscriptionID string) error {
	if err := p.enter("cancel subscription"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.subscriptions[subscriptionID]; ok {
		s.Status = "canceled"
	}
	return nil
}

func (p *Provider) ParseEvent(payload []byte, signature string) (payment.Event, error) {
	return payment.ParseWebhook(payload, signature, p.WebhookSecret)
}

// Sign returns payload together with a valid Stripe-Signature header for secret.
func Sign(t testing.TB, secret string, payload []byte) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

// EventJSON builds a webhook event body wrapping object.
func EventJSON(id, eventType string, created time.Time, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":%d,"data":{"object":%s}}`,
		id, eventType, created.Unix(), object))
}
