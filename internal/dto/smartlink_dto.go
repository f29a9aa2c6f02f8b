package dto

import "time"

type PlatformRequest struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Icon       string `json:"icon"`
	OrderIndex *int   `json:"order_index"`
}

type CreateSmartlinkRequest struct {
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	URL                  string            `json:"url"`
	LandingPageTitle     string            `json:"landing_page_title"`
	LandingPageSubtitle  string            `json:"landing_page_subtitle"`
	CoverImageURL        string            `json:"cover_image_url"`
	EmbedURL             string            `json:"embed_url"`
	LongDescription      string            `json:"long_description"`
	SocialSharingEnabled *bool             `json:"social_sharing_enabled"`
	Platforms            []PlatformRequest `json:"platforms"`
}

// UpdateSmartlinkRequest applies only the fields that are present.
// Platforms, when present, replace the existing list.
type UpdateSmartlinkRequest struct {
	Title                *string            `json:"title"`
	Description          *string            `json:"description"`
	URL                  *string            `json:"url"`
	LandingPageTitle     *string            `json:"landing_page_title"`
	LandingPageSubtitle  *string            `json:"landing_page_subtitle"`
	CoverImageURL        *string            `json:"cover_image_url"`
	EmbedURL             *string            `json:"embed_url"`
	LongDescription      *string            `json:"long_description"`
	SocialSharingEnabled *bool              `json:"social_sharing_enabled"`
	Platforms            *[]PlatformRequest `json:"platforms"`
}

type PlatformClickResponse struct {
	Message     string `json:"message"`
	RedirectURL string `json:"redirect_url"`
}

type PlatformStats struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

type SmartlinkAnalytics struct {
	SmartlinkID      string          `json:"smartlink_id"`
	Title            string          `json:"title"`
	TotalViews       int64           `json:"total_views"`
	TotalClicks      int64           `json:"total_clicks"`
	ClickThroughRate float64         `json:"click_through_rate"`
	CreatedAt        time.Time       `json:"created_at"`
	PlatformStats    []PlatformStats `json:"platform_stats"`
}
