package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/payment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAdminFixture(t *testing.T) (*AdminService, *subscriptionFixture) {
	t.Helper()
	f := newSubscriptionFixture(t)
	links := NewSmartlinkService(f.db)
	return NewAdminService(f.db, f.svc, links, f.events), f
}

func boolPtr(b bool) *bool { return &b }

func TestAdminService_ListUsers(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	alice := f.createUser(t, func(u *models.User) { u.Username = "alice"; u.Email = "alice@example.com" })
	f.createUser(t, func(u *models.User) { u.Username = "bob"; u.Email = "bob@example.com" })
	_, err := admin.smartlinks.Create(ctx, alice.ID, &dto.CreateSmartlinkRequest{Title: "one"})
	require.NoError(t, err)

	list, err := admin.ListUsers(ctx, "ALI", 1, 10)
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "alice", list.Users[0].Username)
	assert.Equal(t, int64(1), list.Users[0].SmartlinkCount)
	assert.Equal(t, int64(1), list.Pagination.Total)

	list, err = admin.ListUsers(ctx, "", 1, 1)
	require.NoError(t, err)
	assert.Len(t, list.Users, 1)
	assert.Equal(t, int64(2), list.Pagination.Total)
	assert.Equal(t, int64(2), list.Pagination.Pages)
}

func TestAdminService_UpdateUser(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	actor := f.createUser(t, func(u *models.User) { u.IsSuperadmin = true })
	target := f.createUser(t, nil)

	status := string(entitlement.StatusActive)
	resp, err := admin.UpdateUser(ctx, actor.ID, target.ID, &dto.AdminUpdateUserRequest{
		IsActive:           boolPtr(false),
		SubscriptionStatus: &status,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsActive)
	assert.Equal(t, status, resp.SubscriptionStatus)

	var audits int64
	f.db.Model(&models.AdminAuditLog{}).Where("target_id = ?", target.ID).Count(&audits)
	assert.Equal(t, int64(2), audits)

	_, err = admin.UpdateUser(ctx, actor.ID, actor.ID, &dto.AdminUpdateUserRequest{IsSuperadmin: boolPtr(false)})
	assert.ErrorIs(t, err, ErrSelfModification)

	bad := "gold"
	_, err = admin.UpdateUser(ctx, actor.ID, target.ID, &dto.AdminUpdateUserRequest{SubscriptionStatus: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = admin.UpdateUser(ctx, actor.ID, uuid.New(), &dto.AdminUpdateUserRequest{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminService_DeleteUser(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	actor := f.createUser(t, func(u *models.User) { u.IsSuperadmin = true })
	target := f.createUser(t, activeUser("sub_del", time.Now().Add(time.Hour)))
	link, err := admin.smartlinks.Create(ctx, target.ID, &dto.CreateSmartlinkRequest{
		Title:     "bye",
		Platforms: []dto.PlatformRequest{{Name: "Spotify", URL: "https://s"}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, admin.DeleteUser(ctx, actor.ID, actor.ID), ErrSelfModification)
	require.NoError(t, admin.DeleteUser(ctx, actor.ID, target.ID))
	assert.Equal(t, 1, f.provider.Calls("cancel subscription"))

	var count int64
	f.db.Model(&models.User{}).Where("id = ?", target.ID).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&models.Smartlink{}).Where("id = ?", link.ID).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&models.Platform{}).Where("smartlink_id = ?", link.ID).Count(&count)
	assert.Zero(t, count)
}

func TestAdminService_UpdateUserIsAtomic(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	actor := f.createUser(t, func(u *models.User) { u.IsSuperadmin = true })
	target := f.createUser(t, nil)

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_flags", func(tx *gorm.DB) {
		if updates, ok := tx.Statement.Dest.(map[string]interface{}); ok {
			if _, ok := updates["is_superadmin"]; ok {
				_ = tx.AddError(errors.New("flag update failed"))
			}
		}
	}))

	status := string(entitlement.StatusActive)
	_, err := admin.UpdateUser(ctx, actor.ID, target.ID, &dto.AdminUpdateUserRequest{
		IsSuperadmin:       boolPtr(true),
		SubscriptionStatus: &status,
	})
	require.Error(t, err)

	stored := f.reload(t, target.ID)
	assert.Equal(t, string(entitlement.StatusPending), stored.SubscriptionStatus)
	assert.False(t, stored.IsSuperadmin)

	var audits int64
	f.db.Model(&models.AdminAuditLog{}).Where("target_id = ?", target.ID).Count(&audits)
	assert.Zero(t, audits)
}

func TestAdminService_DatabaseErrorsAreNotMissingUsers(t *testing.T) {
	admin, f := newAdminFixture(t)
	actor := f.createUser(t, func(u *models.User) { u.IsSuperadmin = true })
	target := f.createUser(t, nil)

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = admin.UpdateUser(context.Background(), actor.ID, target.ID, &dto.AdminUpdateUserRequest{IsActive: boolPtr(false)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)

	err = admin.DeleteUser(context.Background(), actor.ID, target.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestAdminService_DeleteExpiredUserCancelsAtProvider(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	actor := f.createUser(t, func(u *models.User) { u.IsSuperadmin = true })
	target := f.createUser(t, func(u *models.User) {
		activeUser("sub_past_due", time.Now().Add(-time.Hour))(u)
		u.SubscriptionStatus = string(entitlement.StatusExpired)
	})
	f.provider.AddSubscription(payment.Subscription{ID: "sub_past_due", Status: "past_due"})

	require.NoError(t, admin.DeleteUser(ctx, actor.ID, target.ID))
	assert.Equal(t, 1, f.provider.Calls("cancel subscription"))
}

func TestAdminService_Stats(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	f.createUser(t, func(u *models.User) { u.IsSuperadmin = true })
	owner := f.createUser(t, activeUser("sub_s", time.Now().Add(time.Hour)))
	link, err := admin.smartlinks.Create(ctx, owner.ID, &dto.CreateSmartlinkRequest{Title: "s"})
	require.NoError(t, err)
	_, err = admin.smartlinks.View(ctx, link.ID)
	require.NoError(t, err)

	stats, err := admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.Superadmins)
	assert.Equal(t, int64(1), stats.UsersByStatus["active"])
	assert.Equal(t, int64(1), stats.UsersByStatus["pending"])
	assert.Equal(t, int64(1), stats.TotalSmartlinks)
	assert.Equal(t, int64(1), stats.TotalViews)
}

func TestAdminService_CreateSuperadmin(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	user, err := admin.CreateSuperadmin(ctx, "root", "root@example.com", "secret123", "ops", false)
	require.NoError(t, err)
	assert.True(t, user.IsSuperadmin)

	_, err = admin.CreateSuperadmin(ctx, "root2", "root2@example.com", "secret123", "ops", false)
	assert.ErrorIs(t, err, ErrSuperadminExists)

	_, err = admin.CreateSuperadmin(ctx, "root", "root3@example.com", "secret123", "ops", true)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	second, err := admin.CreateSuperadmin(ctx, "root2", "root2@example.com", "secret123", "ops", true)
	require.NoError(t, err)
	assert.True(t, second.IsSuperadmin)

	var audit models.AdminAuditLog
	require.NoError(t, f.db.Where("target_id = ?", user.ID).First(&audit).Error)
	assert.Equal(t, AuditCreateSuperadmin, audit.Action)
	assert.Equal(t, "ops", audit.Actor)
}

func TestAdminService_PromoteSuperadmin(t *testing.T) {
	admin, f := newAdminFixture(t)
	ctx := context.Background()

	target := f.createUser(t, func(u *models.User) { u.Username = "helen"; u.Email = "helen@example.com" })

	promoted, err := admin.PromoteSuperadmin(ctx, "HELEN@example.com", "ops")
	require.NoError(t, err)
	assert.True(t, promoted.IsSuperadmin)
	assert.True(t, f.reload(t, target.ID).IsSuperadmin)

	_, err = admin.PromoteSuperadmin(ctx, "nobody", "ops")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPage(t *testing.T) {
	page, perPage, offset := Page(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPerPage, perPage)
	assert.Zero(t, offset)

	page, perPage, offset = Page(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, maxPerPage, perPage)
	assert.Equal(t, 200, offset)
}
