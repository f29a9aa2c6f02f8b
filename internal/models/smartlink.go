package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Smartlink struct {
	ID                   string     `gorm:"size:16;primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Title                string     `gorm:"size:255" json:"title"`
	Description          string     `gorm:"type:text" json:"description"`
	URL                  string     `gorm:"type:text" json:"url"`
	Views                int64      `gorm:"not null;default:0" json:"views"`
	Clicks               int64      `gorm:"not null;default:0" json:"clicks"`
	LandingPageTitle     string     `gorm:"size:255" json:"landing_page_title"`
	LandingPageSubtitle  string     `gorm:"size:255" json:"landing_page_subtitle"`
	CoverImageURL        string     `gorm:"type:text" json:"cover_image_url"`
	EmbedURL             string     `gorm:"type:text" json:"embed_url"`
	LongDescription      string     `gorm:"type:text" json:"long_description"`
	SocialSharingEnabled bool       `gorm:"not null;default:true" json:"social_sharing_enabled"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Platforms            []Platform `gorm:"foreignKey:SmartlinkID;constraint:OnDelete:CASCADE" json:"platforms"`
	User                 User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

type Platform struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SmartlinkID string    `gorm:"size:16;not null;index" json:"smartlink_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	URL         string    `gorm:"type:text;not null" json:"url"`
	Icon        string    `gorm:"size:255" json:"icon"`
	OrderIndex  int       `gorm:"not null;default:0" json:"order_index"`
	Clicks      int64     `gorm:"not null;default:0" json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Platform) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
