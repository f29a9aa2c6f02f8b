package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventInvoicePaid           = "invoice.paid"
	EventInvoicePaymentSuccess = "invoice.payment_succeeded"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
)

// Event is implemented only by the variants in this package.
type Event interface {
	EventID() string
	EventType() string
	CreatedAt() time.Time
	Payload() []byte
	isEvent()
}

type Envelope struct {
	ID      string
	Type    string
	Created time.Time
	Raw     []byte
}

func (e Envelope) EventID() string      { return e.ID }
func (e Envelope) EventType() string    { return e.Type }
func (e Envelope) CreatedAt() time.Time { return e.Created }
func (e Envelope) Payload() []byte      { return e.Raw }
func (Envelope) isEvent()               {}

type CheckoutCompleted struct {
	Envelope
	SessionID      string
	AccountID      string
	SubscriptionID string
	Paid           bool
}

type InvoicePaid struct {
	Envelope
	SubscriptionID string
	// PeriodEnd is the end of the billed period, zero when the invoice does not carry one.
	PeriodEnd time.Time
}

type InvoicePaymentFailed struct {
	Envelope
	SubscriptionID string
}

type SubscriptionDeleted struct {
	Envelope
	SubscriptionID string
}

type Unrecognized struct {
	Envelope
}

// Malformed is a verified event of a known type whose object could not be
// decoded. Err wraps ErrMalformedEvent.
type Malformed struct {
	Envelope
	Err error
}

// ParseWebhook verifies the signature header against secret and decodes the
// payload into one of the event variants.
func ParseWebhook(payload []byte, signature, secret string) (Event, error) {
	if secret == "" {
		return nil, ErrWebhookSecretMissing
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return decodeEvent(event, payload)
}

func decodeEvent(event stripe.Event, payload []byte) (Event, error) {
	env := Envelope{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Raw:     payload,
	}

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch env.Type {
	case EventCheckoutCompleted:
		var session checkoutSessionObject
		if err := unmarshalObject(raw, &session); err != nil {
			return &Malformed{Envelope: env, Err: err}, nil
		}
		accountID := session.Metadata["user_id"]
		if accountID == "" {
			accountID = session.ClientReferenceID
		}
		return &CheckoutCompleted{
			Envelope:       env,
			SessionID:      session.ID,
			AccountID:      accountID,
			SubscriptionID: session.Subscription.ID,
			Paid:           session.PaymentStatus == "paid" || session.PaymentStatus == "no_payment_required",
		}, nil

	case EventInvoicePaid, EventInvoicePaymentSuccess:
		var invoice invoiceObject
		if err := unmarshalObject(raw, &invoice); err != nil {
			return &Malformed{Envelope: env, Err: err}, nil
		}
		return &InvoicePaid{
			Envelope:       env,
			SubscriptionID: invoice.subscriptionID(),
			PeriodEnd:      invoice.periodEnd(),
		}, nil

	case EventInvoicePaymentFailed:
		var invoice invoiceObject
		if err := unmarshalObject(raw, &invoice); err != nil {
			return &Malformed{Envelope: env, Err: err}, nil
		}
		return &InvoicePaymentFailed{Envelope: env, SubscriptionID: invoice.subscriptionID()}, nil

	case EventSubscriptionDeleted:
		var sub subscriptionObject
		if err := unmarshalObject(raw, &sub); err != nil {
			return &Malformed{Envelope: env, Err: err}, nil
		}
		return &SubscriptionDeleted{Envelope: env, SubscriptionID: sub.ID}, nil

	default:
		return &Unrecognized{Envelope: env}, nil
	}
}

func unmarshalObject(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// expandableID accepts either an object id or an expanded object.
type expandableID struct {
	ID string
}

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Subscription      expandableID      `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID string `json:"id"`
}

type invoiceObject struct {
	ID           string       `json:"id"`
	Subscription expandableID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

func (i *invoiceObject) subscriptionID() string {
	if i.Subscription.ID != "" {
		return i.Subscription.ID
	}
	return i.Parent.SubscriptionDetails.Subscription.ID
}

func (i *invoiceObject) periodEnd() time.Time {
	var end int64
	for _, line := range i.Lines.Data {
		if line.Period.End > end {
			end = line.Period.End
		}
	}
	if end == 0 {
		return time.Time{}
	}
	return time.Unix(end, 0).UTC()
}
