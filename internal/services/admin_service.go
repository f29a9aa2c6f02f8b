package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSelfModification = errors.New("superadmins cannot disable, demote or delete themselves")
	ErrSuperadminExists = errors.New("a superadmin already exists")
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Audit actions.
const (
	AuditCreateSuperadmin  = "create_superadmin"
	AuditPromoteSuperadmin = "promote_superadmin"
	AuditUpdateUser        = "update_user"
	AuditDeleteUser        = "delete_user"
	AuditDeleteSmartlink   = "delete_smartlink"
	AuditOverrideStatus    = "override_subscription_status"
)

type AdminService struct {
	db            *gorm.DB
	subscriptions *SubscriptionService
	smartlinks    *SmartlinkService
	webhooks      *store.WebhookEventStore
}

func NewAdminService(db *gorm.DB, subscriptions *SubscriptionService, smartlinks *SmartlinkService, webhooks *store.WebhookEventStore) *AdminService {
	return &AdminService{db: db, subscriptions: subscriptions, smartlinks: smartlinks, webhooks: webhooks}
}

// Page clamps page and perPage to sane bounds and returns the row offset.
func Page(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

func (s *AdminService) ListUsers(ctx context.Context, search string, page, perPage int) (*dto.AdminUserList, error) {
	page, perPage, offset := Page(page, perPage)
	db := s.db.WithContext(ctx)

	q := db.Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Offset(offset).Limit(perPage).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	counts, err := s.smartlinkCounts(db, users)
	if err != nil {
		return nil, err
	}

	out := make([]dto.AdminUserResponse, 0, len(users))
	for i := range users {
		out = append(out, dto.NewAdminUserResponse(&users[i], counts[users[i].ID]))
	}
	return &dto.AdminUserList{Users: out, Pagination: dto.NewPagination(page, perPage, total)}, nil
}

func (s *AdminService) smartlinkCounts(db *gorm.DB, users []models.User) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(users))
	if len(users) == 0 {
		return counts, nil
	}
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	var rows []struct {
		UserID uuid.UUID
		Total  int64
	}
	err := db.Model(&models.Smartlink{}).
		Select("user_id, COUNT(*) AS total").
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count smartlinks: %w", err)
	}
	for _, r := range rows {
		counts[r.UserID] = r.Total
	}
	return counts, nil
}

// UpdateUser applies a superadmin's changes to another account in one
// transaction. A status change goes through the subscription state machine.
func (s *AdminService) UpdateUser(ctx context.Context, actorID, userID uuid.UUID, req *dto.AdminUpdateUserRequest) (*dto.AdminUserResponse, error) {
	db := s.db.WithContext(ctx)

	user, err := findUser(db, userID)
	if err != nil {
		return nil, err
	}
	if actorID == userID {
		if (req.IsActive != nil && !*req.IsActive) || (req.IsSuperadmin != nil && !*req.IsSuperadmin) {
			return nil, ErrSelfModification
		}
	}

	updates := map[string]interface{}{}
	var changes []string
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		updates["is_active"] = *req.IsActive
		changes = append(changes, fmt.Sprintf("is_active=%t", *req.IsActive))
	}
	if req.IsSuperadmin != nil && *req.IsSuperadmin != user.IsSuperadmin {
		updates["is_superadmin"] = *req.IsSuperadmin
		changes = append(changes, fmt.Sprintf("is_superadmin=%t", *req.IsSuperadmin))
	}

	actor := actorID.String()
	err = db.Transaction(func(tx *gorm.DB) error {
		if req.SubscriptionStatus != nil {
			status := entitlement.Status(*req.SubscriptionStatus)
			if _, err := s.subscriptions.override(ctx, store.NewAccountStore(tx), userID, status); err != nil {
				return err
			}
			if err := writeAudit(tx, AuditOverrideStatus, userID, actor, "status="+string(status)); err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}
		if req.IsActive != nil && !*req.IsActive {
			if err := tx.Model(&models.RefreshToken{}).Where("user_id = ?", userID).Update("revoked", true).Error; err != nil {
				return err
			}
		}
		return writeAudit(tx, AuditUpdateUser, userID, actor, strings.Join(changes, ","))
	})
	if err != nil {
		return nil, err
	}

	user, err = findUser(db, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.smartlinkCounts(db, []models.User{*user})
	if err != nil {
		return nil, err
	}
	resp := dto.NewAdminUserResponse(user, counts[user.ID])
	return &resp, nil
}

// DeleteUser removes an account with its tokens and smartlinks. A live
// provider subscription is cancelled first.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return ErrSelfModification
	}
	db := s.db.WithContext(ctx)

	user, err := findUser(db, userID)
	if err != nil {
		return err
	}
	// Expired accounts keep their reference while the provider retries the invoice.
	if user.StripeSubscriptionID != "" {
		if err := s.subscriptions.cancelAtProvider(ctx, user.StripeSubscriptionID); err != nil && !isMissing(err) {
			return err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var linkIDs []string
		if err := tx.Model(&models.Smartlink{}).Where("user_id = ?", userID).Pluck("id", &linkIDs).Error; err != nil {
			return err
		}
		if len(linkIDs) > 0 {
			if err := tx.Where("smartlink_id IN ?", linkIDs).Delete(&models.Platform{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", linkIDs).Delete(&models.Smartlink{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.User{}, "id = ?", userID).Error; err != nil {
			return err
		}
		return writeAudit(tx, AuditDeleteUser, userID, actorID.String(), user.Username)
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted by superadmin", "user_id", userID.String(), "actor", actorID.String())
	return nil
}

func (s *AdminService) ListSmartlinks(ctx context.Context, search string, page, perPage int) (*dto.AdminSmartlinkList, error) {
	page, perPage, offset := Page(page, perPage)

	q := s.db.WithContext(ctx).
		Table("smartlinks").
		Joins("JOIN users ON users.id = smartlinks.user_id")
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(smartlinks.title) LIKE ? OR LOWER(users.username) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count smartlinks: %w", err)
	}

	rows := make([]dto.AdminSmartlinkResponse, 0)
	err := q.Select("smartlinks.id, smartlinks.title, smartlinks.user_id, users.username, smartlinks.views, smartlinks.clicks, smartlinks.created_at").
		Order("smartlinks.created_at DESC").
		Offset(offset).
		Limit(perPage).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list smartlinks: %w", err)
	}
	return &dto.AdminSmartlinkList{Smartlinks: rows, Pagination: dto.NewPagination(page, perPage, total)}, nil
}

func (s *AdminService) DeleteSmartlink(ctx context.Context, actorID uuid.UUID, id string) error {
	var link models.Smartlink
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&link, "id = ?", id).Error; err != nil {
		return ErrSmartlinkNotFound
	}
	if err := s.smartlinks.DeleteAny(ctx, id); err != nil {
		return err
	}
	s.audit(s.db.WithContext(ctx), AuditDeleteSmartlink, link.UserID, actorID.String(), id)
	return nil
}

func (s *AdminService) Stats(ctx context.Context) (*dto.AdminStats, error) {
	db := s.db.WithContext(ctx)
	stats := &dto.AdminStats{UsersByStatus: map[string]int64{}}

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&models.User{})},
		{&stats.ActiveUsers, db.Model(&models.User{}).Where("is_active = ?", true)},
		{&stats.Superadmins, db.Model(&models.User{}).Where("is_superadmin = ?", true)},
		{&stats.TotalSmartlinks, db.Model(&models.Smartlink{})},
		{&stats.WebhookEvents24h, db.Model(&models.WebhookEvent{}).Where("created_at >= ?", time.Now().Add(-24*time.Hour))},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	var byStatus []struct {
		SubscriptionStatus string
		Total              int64
	}
	if err := db.Model(&models.User{}).Select("subscription_status, COUNT(*) AS total").Group("subscription_status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	for _, row := range byStatus {
		stats.UsersByStatus[row.SubscriptionStatus] = row.Total
	}

	var totals struct {
		Views  int64
		Clicks int64
	}
	if err := db.Model(&models.Smartlink{}).Select("COALESCE(SUM(views), 0) AS views, COALESCE(SUM(clicks), 0) AS clicks").Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	stats.TotalViews = totals.Views
	stats.TotalClicks = totals.Clicks

	return stats, nil
}

func (s *AdminService) ListWebhookEvents(ctx context.Context, page, perPage int) (*dto.WebhookEventList, error) {
	page, perPage, offset := Page(page, perPage)
	events, total, err := s.webhooks.List(ctx, perPage, offset)
	if err != nil {
		return nil, err
	}
	return &dto.WebhookEventList{Events: events, Pagination: dto.NewPagination(page, perPage, total)}, nil
}

// CreateSuperadmin provisions a new superadmin account. Unless additional is
// set it refuses to run once any superadmin exists.
func (s *AdminService) CreateSuperadmin(ctx context.Context, username, email, password, actor string, additional bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:           username,
		Email:              email,
		Password:           hash,
		IsActive:           true,
		IsSuperadmin:       true,
		SubscriptionStatus: string(entitlement.StatusPending),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if !additional {
			if err := tx.Model(&models.User{}).Where("is_superadmin = ?", true).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrSuperadminExists
			}
		}
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return writeAudit(tx, AuditCreateSuperadmin, user.ID, actor, username)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("superadmin created", "user_id", user.ID.String(), "actor", actor)
	return &user, nil
}

// PromoteSuperadmin grants superadmin to an existing account found by
// username or email.
func (s *AdminService) PromoteSuperadmin(ctx context.Context, identifier, actor string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.IsSuperadmin {
			return nil
		}
		if err := tx.Model(&user).Update("is_superadmin", true).Error; err != nil {
			return err
		}
		return writeAudit(tx, AuditPromoteSuperadmin, user.ID, actor, user.Username)
	})
	if err != nil {
		return nil, err
	}
	user.IsSuperadmin = true
	return &user, nil
}

func (s *AdminService) audit(db *gorm.DB, action string, target uuid.UUID, actor, detail string) {
	if err := writeAudit(db, action, target, actor, detail); err != nil {
		slog.Error("failed to write audit log", "action", action, "target_id", target.String(), "error", err)
	}
}

func writeAudit(db *gorm.DB, action string, target uuid.UUID, actor, detail string) error {
	return db.Create(&models.AdminAuditLog{
		Action:   action,
		TargetID: target,
		Actor:    actor,
		Detail:   detail,
	}).Error
}
