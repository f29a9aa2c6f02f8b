package dto

import "time"

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

type VerifySessionResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	User    *UserResponse `json:"user,omitempty"`
}

type SubscriptionStatusResponse struct {
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
	IsSuperadmin        bool       `json:"is_superadmin"`
}

// PaymentRequiredResponse is returned with 402 by the access gate.
type PaymentRequiredResponse struct {
	Error              bool   `json:"error"`
	Message            string `json:"message"`
	Reason             string `json:"reason"`
	SubscriptionStatus string `json:"subscription_status"`
	RequiresPayment    bool   `json:"requires_payment"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}
