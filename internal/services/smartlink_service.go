package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSmartlinkNotFound = errors.New("smartlink not found")
	ErrPlatformNotFound  = errors.New("platform not found")
)

const (
	smartlinkIDLength   = 8
	smartlinkIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type SmartlinkService struct {
	db *gorm.DB
}

func NewSmartlinkService(db *gorm.DB) *SmartlinkService {
	return &SmartlinkService{db: db}
}

func (s *SmartlinkService) Create(ctx context.Context, userID uuid.UUID, req *dto.CreateSmartlinkRequest) (*models.Smartlink, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &ValidationError{Message: "title is required"}
	}
	platforms, err := buildPlatforms(req.Platforms)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	id, err := s.newID(db)
	if err != nil {
		return nil, err
	}

	link := models.Smartlink{
		ID:                   id,
		UserID:               userID,
		Title:                title,
		Description:          req.Description,
		URL:                  req.URL,
		LandingPageTitle:     req.LandingPageTitle,
		LandingPageSubtitle:  req.LandingPageSubtitle,
		CoverImageURL:        req.CoverImageURL,
		EmbedURL:             req.EmbedURL,
		LongDescription:      req.LongDescription,
		SocialSharingEnabled: true,
		Platforms:            platforms,
	}
	if req.SocialSharingEnabled != nil {
		link.SocialSharingEnabled = *req.SocialSharingEnabled
	}

	if err := db.Create(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to create smartlink: %w", err)
	}
	// The column default would otherwise win over an explicit false.
	if !link.SocialSharingEnabled {
		db.Model(&link).Update("social_sharing_enabled", false)
	}
	return s.load(db, id, &userID)
}

func (s *SmartlinkService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Smartlink, error) {
	var links []models.Smartlink
	err := s.db.WithContext(ctx).
		Preload("Platforms", orderedPlatforms).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list smartlinks: %w", err)
	}
	return links, nil
}

// GetOwned returns the smartlink only if userID owns it.
func (s *SmartlinkService) GetOwned(ctx context.Context, userID uuid.UUID, id string) (*models.Smartlink, error) {
	return s.load(s.db.WithContext(ctx), id, &userID)
}

func (s *SmartlinkService) Update(ctx context.Context, userID uuid.UUID, id string, req *dto.UpdateSmartlinkRequest) (*models.Smartlink, error) {
	db := s.db.WithContext(ctx)
	link, err := s.load(db, id, &userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, &ValidationError{Message: "title cannot be empty"}
		}
		updates["title"] = title
	}
	setIfPresent(updates, "description", req.Description)
	setIfPresent(updates, "url", req.URL)
	setIfPresent(updates, "landing_page_title", req.LandingPageTitle)
	setIfPresent(updates, "landing_page_subtitle", req.LandingPageSubtitle)
	setIfPresent(updates, "cover_image_url", req.CoverImageURL)
	setIfPresent(updates, "embed_url", req.EmbedURL)
	setIfPresent(updates, "long_description", req.LongDescription)
	if req.SocialSharingEnabled != nil {
		updates["social_sharing_enabled"] = *req.SocialSharingEnabled
	}

	var platforms []models.Platform
	if req.Platforms != nil {
		platforms, err = buildPlatforms(*req.Platforms)
		if err != nil {
			return nil, err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Smartlink{ID: link.ID}).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Platforms != nil {
			if err := tx.Where("smartlink_id = ?", link.ID).Delete(&models.Platform{}).Error; err != nil {
				return err
			}
			for i := range platforms {
				platforms[i].SmartlinkID = link.ID
			}
			if len(platforms) > 0 {
				if err := tx.Create(&platforms).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update smartlink: %w", err)
	}

	return s.load(db, id, &userID)
}

func (s *SmartlinkService) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	return s.delete(ctx, id, &userID)
}

// DeleteAny removes a smartlink regardless of owner.
func (s *SmartlinkService) DeleteAny(ctx context.Context, id string) error {
	return s.delete(ctx, id, nil)
}

func (s *SmartlinkService) delete(ctx context.Context, id string, owner *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", id)
		if owner != nil {
			q = q.Where("user_id = ?", *owner)
		}
		var link models.Smartlink
		if err := q.First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSmartlinkNotFound
			}
			return err
		}
		if err := tx.Where("smartlink_id = ?", link.ID).Delete(&models.Platform{}).Error; err != nil {
			return err
		}
		return tx.Delete(&link).Error
	})
}

// View returns a public smartlink and counts the visit.
func (s *SmartlinkService) View(ctx context.Context, id string) (*models.Smartlink, error) {
	db := s.db.WithContext(ctx)
	if err := s.increment(db, &models.Smartlink{}, "id = ?", id, "views"); err != nil {
		return nil, err
	}
	return s.load(db, id, nil)
}

// Click counts a click on the smartlink itself and returns the new total.
func (s *SmartlinkService) Click(ctx context.Context, id string) (int64, error) {
	db := s.db.WithContext(ctx)
	if err := s.increment(db, &models.Smartlink{}, "id = ?", id, "clicks"); err != nil {
		return 0, err
	}
	var link models.Smartlink
	if err := db.Select("id", "clicks").First(&link, "id = ?", id).Error; err != nil {
		return 0, fmt.Errorf("failed to read clicks: %w", err)
	}
	return link.Clicks, nil
}

// ClickPlatform counts a click on one platform of a smartlink and returns
// the platform URL to redirect to.
func (s *SmartlinkService) ClickPlatform(ctx context.Context, id string, platformID uuid.UUID) (*dto.PlatformClickResponse, error) {
	var platform models.Platform
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&platform, "id = ? AND smartlink_id = ?", platformID, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				var count int64
				tx.Model(&models.Smartlink{}).Where("id = ?", id).Count(&count)
				if count == 0 {
					return ErrSmartlinkNotFound
				}
				return ErrPlatformNotFound
			}
			return err
		}
		if err := s.increment(tx, &models.Platform{}, "id = ?", platformID, "clicks"); err != nil {
			return err
		}
		return s.increment(tx, &models.Smartlink{}, "id = ?", id, "clicks")
	})
	if err != nil {
		return nil, err
	}
	return &dto.PlatformClickResponse{Message: "Click recorded", RedirectURL: platform.URL}, nil
}

func (s *SmartlinkService) Analytics(ctx context.Context, userID uuid.UUID, id string) (*dto.SmartlinkAnalytics, error) {
	link, err := s.load(s.db.WithContext(ctx), id, &userID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range link.Platforms {
		total += p.Clicks
	}

	stats := make([]dto.PlatformStats, 0, len(link.Platforms))
	for _, p := range link.Platforms {
		st := dto.PlatformStats{ID: p.ID.String(), Name: p.Name, Clicks: p.Clicks}
		if total > 0 {
			st.Percentage = float64(p.Clicks) / float64(total) * 100
		}
		stats = append(stats, st)
	}

	out := &dto.SmartlinkAnalytics{
		SmartlinkID:   link.ID,
		Title:         link.Title,
		TotalViews:    link.Views,
		TotalClicks:   link.Clicks,
		CreatedAt:     link.CreatedAt,
		PlatformStats: stats,
	}
	if link.Views > 0 {
		out.ClickThroughRate = float64(link.Clicks) / float64(link.Views) * 100
	}
	return out, nil
}

func (s *SmartlinkService) increment(db *gorm.DB, model interface{}, query string, arg interface{}, column string) error {
	result := db.Model(model).Where(query, arg).UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to increment %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSmartlinkNotFound
	}
	return nil
}

func (s *SmartlinkService) load(db *gorm.DB, id string, owner *uuid.UUID) (*models.Smartlink, error) {
	q := db.Preload("Platforms", orderedPlatforms).Where("id = ?", id)
	if owner != nil {
		q = q.Where("user_id = ?", *owner)
	}
	var link models.Smartlink
	if err := q.First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSmartlinkNotFound
		}
		return nil, fmt.Errorf("failed to load smartlink: %w", err)
	}
	return &link, nil
}

func (s *SmartlinkService) newID(db *gorm.DB) (string, error) {
	for i := 0; i < 10; i++ {
		id, err := randomID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Smartlink{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check smartlink id: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", errors.New("failed to allocate smartlink id")
}

func randomID() (string, error) {
	max := big.NewInt(int64(len(smartlinkIDAlphabet)))
	b := make([]byte, smartlinkIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate smartlink id: %w", err)
		}
		b[i] = smartlinkIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

func buildPlatforms(reqs []dto.PlatformRequest) ([]models.Platform, error) {
	platforms := make([]models.Platform, 0, len(reqs))
	for i, p := range reqs {
		name := strings.TrimSpace(p.Name)
		url := strings.TrimSpace(p.URL)
		if name == "" || url == "" {
			return nil, &ValidationError{Message: fmt.Sprintf("platform %d requires a name and url", i+1)}
		}
		order := i
		if p.OrderIndex != nil {
			order = *p.OrderIndex
		}
		platforms = append(platforms, models.Platform{
			ID:         uuid.New(),
			Name:       name,
			URL:        url,
			Icon:       p.Icon,
			OrderIndex: order,
		})
	}
	return platforms, nil
}

func orderedPlatforms(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC").Order("created_at ASC")
}

func setIfPresent(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = *value
	}
}
