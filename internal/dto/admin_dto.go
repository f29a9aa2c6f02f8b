package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/google/uuid"
)

// AdminUserResponse includes the provider references hidden from regular users.
type AdminUserResponse struct {
	UserResponse
	StripeCustomerID     string `json:"stripe_customer_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	SmartlinkCount       int64  `json:"smartlink_count"`
}

func NewAdminUserResponse(u *models.User, smartlinks int64) AdminUserResponse {
	return AdminUserResponse{
		UserResponse:         NewUserResponse(u),
		StripeCustomerID:     u.StripeCustomerID,
		StripeSubscriptionID: u.StripeSubscriptionID,
		SmartlinkCount:       smartlinks,
	}
}

type AdminUpdateUserRequest struct {
	IsActive           *bool   `json:"is_active"`
	IsSuperadmin       *bool   `json:"is_superadmin"`
	SubscriptionStatus *string `json:"subscription_status"`
}

type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
}

func NewPagination(page, perPage int, total int64) Pagination {
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, Pages: pages}
}

type AdminUserList struct {
	Users      []AdminUserResponse `json:"users"`
	Pagination Pagination          `json:"pagination"`
}

type AdminSmartlinkResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Views     int64     `json:"views"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminSmartlinkList struct {
	Smartlinks []AdminSmartlinkResponse `json:"smartlinks"`
	Pagination Pagination               `json:"pagination"`
}

type AdminStats struct {
	TotalUsers       int64            `json:"total_users"`
	ActiveUsers      int64            `json:"active_users"`
	Superadmins      int64            `json:"superadmins"`
	UsersByStatus    map[string]int64 `json:"users_by_status"`
	TotalSmartlinks  int64            `json:"total_smartlinks"`
	TotalViews       int64            `json:"total_views"`
	TotalClicks      int64            `json:"total_clicks"`
	WebhookEvents24h int64            `json:"webhook_events_24h"`
}

type WebhookEventList struct {
	Events     []models.WebhookEvent `json:"events"`
	Pagination Pagination            `json:"pagination"`
}
