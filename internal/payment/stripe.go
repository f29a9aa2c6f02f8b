package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// PriceID selects a pre-configured recurring price. When empty an
	// inline yearly price of UnitAmount in Currency is used.
	PriceID     string
	UnitAmount  int64
	Currency    string
	ProductName string
}

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	cfg StripeConfig

	newCustomer        func(params *stripe.CustomerParams) (*stripe.Customer, error)
	newSession         func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession         func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscription    func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	cancelSubscription func(id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	stripe.Key = strings.TrimSpace(cfg.SecretKey)
	if cfg.ProductName == "" {
		cfg.ProductName = "SmartLinks yearly subscription"
	}
	return &StripeProvider{
		cfg:                cfg,
		newCustomer:        customer.New,
		newSession:         session.New,
		getSession:         session.Get,
		getSubscription:    subscription.Get,
		cancelSubscription: subscription.Cancel,
	}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, accountID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			"user_id": accountID,
		},
	}
	params.Context = ctx

	c, err := p.newCustomer(params)
	if err != nil {
		return "", wrapStripeError("create customer", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.AccountID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{p.lineItem()},
		Metadata: map[string]string{
			"user_id": req.AccountID,
		},
	}
	params.Context = ctx

	s, err := p.newSession(params)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (p *StripeProvider) lineItem() *stripe.CheckoutSessionLineItemParams {
	if p.cfg.PriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(p.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(p.cfg.Currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(p.cfg.ProductName),
			},
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalYear)),
			},
			UnitAmount: stripe.Int64(p.cfg.UnitAmount),
		},
		Quantity: stripe.Int64(1),
	}
}

func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.getSession(sessionID, params)
	if err != nil {
		return nil, wrapStripeError("get checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.getSubscription(subscriptionID, params)
	if err != nil {
		return nil, wrapStripeError("get subscription", err)
	}

	result := &Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Items != nil {
		var end int64
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > end {
				end = item.CurrentPeriodEnd
			}
		}
		if end > 0 {
			result.CurrentPeriodEnd = time.Unix(end, 0).UTC()
		}
	}
	return result, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := p.cancelSubscription(subscriptionID, params); err != nil {
		return wrapStripeError("cancel subscription", err)
	}
	return nil
}

func (p *StripeProvider) ParseEvent(payload []byte, signature string) (Event, error) {
	return ParseWebhook(payload, signature, p.cfg.WebhookSecret)
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:        s.ID,
		URL:       s.URL,
		AccountID: s.Metadata["user_id"],
		Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired,
	}
	if out.AccountID == "" {
		out.AccountID = s.ClientReferenceID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func wrapStripeError(op string, err error) error {
	pe := &ProviderError{Op: op, Err: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		pe.Code = string(stripeErr.Code)
		pe.StatusCode = stripeErr.HTTPStatusCode
	}
	return pe
}
