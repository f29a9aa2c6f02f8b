package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSmartlinkFixture(t *testing.T) (*SmartlinkService, *gorm.DB, uuid.UUID) {
	t.Helper()
	db := testutil.NewDB(t)
	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	return NewSmartlinkService(db), db, owner.ID
}

func intPtr(i int) *int { return &i }

func TestSmartlinkService_CreateAndList(t *testing.T) {
	svc, _, owner := newSmartlinkFixture(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, owner, &dto.CreateSmartlinkRequest{
		Title: "  New Single  ",
		Platforms: []dto.PlatformRequest{
			{Name: "Spotify", URL: "https://open.spotify.com/x", OrderIndex: intPtr(1)},
			{Name: "Apple Music", URL: "https://music.apple.com/x", OrderIndex: intPtr(0)},
		},
	})
	require.NoError(t, err)
	assert.Len(t, link.ID, smartlinkIDLength)
	assert.Equal(t, "New Single", link.Title)
	assert.True(t, link.SocialSharingEnabled)
	require.Len(t, link.Platforms, 2)
	assert.Equal(t, "Apple Music", link.Platforms[0].Name)

	links, err := svc.ListByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, link.ID, links[0].ID)

	other, err := svc.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSmartlinkService_CreateValidation(t *testing.T) {
	svc, _, owner := newSmartlinkFixture(t)

	_, err := svc.Create(context.Background(), owner, &dto.CreateSmartlinkRequest{Title: "   "})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Create(context.Background(), owner, &dto.CreateSmartlinkRequest{
		Title:     "x",
		Platforms: []dto.PlatformRequest{{Name: "Spotify"}},
	})
	assert.ErrorAs(t, err, &verr)
}

func TestSmartlinkService_SocialSharingDisabled(t *testing.T) {
	svc, _, owner := newSmartlinkFixture(t)
	off := false

	link, err := svc.Create(context.Background(), owner, &dto.CreateSmartlinkRequest{Title: "quiet", SocialSharingEnabled: &off})
	require.NoError(t, err)
	assert.False(t, link.SocialSharingEnabled)
}

func TestSmartlinkService_UpdateReplacesPlatforms(t *testing.T) {
	svc, _, owner := newSmartlinkFixture(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, owner, &dto.CreateSmartlinkRequest{
		Title:     "Album",
		Platforms: []dto.PlatformRequest{{Name: "Spotify", URL: "https://s"}},
	})
	require.NoError(t, err)

	title := "Album (Deluxe)"
	platforms := []dto.PlatformRequest{{Name: "Deezer", URL: "https://d"}, {Name: "Tidal", URL: "https://t"}}
	updated, err := svc.Update(ctx, owner, link.ID, &dto.UpdateSmartlinkRequest{Title: &title, Platforms: &platforms})
	require.NoError(t, err)
	assert.Equal(t, "Album (Deluxe)", updated.Title)
	require.Len(t, updated.Platforms, 2)
	assert.Equal(t, "Deezer", updated.Platforms[0].Name)

	desc := "only description"
	updated, err = svc.Update(ctx, owner, link.ID, &dto.UpdateSmartlinkRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "only description", updated.Description)
	assert.Len(t, updated.Platforms, 2, "platforms untouched when omitted")

	_, err = svc.Update(ctx, uuid.New(), link.ID, &dto.UpdateSmartlinkRequest{Description: &desc})
	assert.ErrorIs(t, err, ErrSmartlinkNotFound)
}

func TestSmartlinkService_DeleteOwnedOnly(t *testing.T) {
	svc, db, owner := newSmartlinkFixture(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, owner, &dto.CreateSmartlinkRequest{
		Title:     "gone",
		Platforms: []dto.PlatformRequest{{Name: "Spotify", URL: "https://s"}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, uuid.New(), link.ID), ErrSmartlinkNotFound)
	require.NoError(t, svc.Delete(ctx, owner, link.ID))

	var count int64
	db.Model(&models.Platform{}).Where("smartlink_id = ?", link.ID).Count(&count)
	assert.Zero(t, count)
	_, err = svc.GetOwned(ctx, owner, link.ID)
	assert.ErrorIs(t, err, ErrSmartlinkNotFound)
}

func TestSmartlinkService_CountersAndAnalytics(t *testing.T) {
	svc, _, owner := newSmartlinkFixture(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, owner, &dto.CreateSmartlinkRequest{
		Title: "Track",
		Platforms: []dto.PlatformRequest{
			{Name: "Spotify", URL: "https://s"},
			{Name: "YouTube", URL: "https://y"},
		},
	})
	require.NoError(t, err)
	spotify := link.Platforms[0].ID

	for i := 0; i < 4; i++ {
		_, err := svc.View(ctx, link.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		resp, err := svc.ClickPlatform(ctx, link.ID, spotify)
		require.NoError(t, err)
		assert.Equal(t, "https://s", resp.RedirectURL)
	}
	clicks, err := svc.Click(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), clicks)

	stats, err := svc.Analytics(ctx, owner, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalViews)
	assert.Equal(t, int64(4), stats.TotalClicks)
	assert.InDelta(t, 100.0, stats.ClickThroughRate, 0.001)
	require.Len(t, stats.PlatformStats, 2)
	assert.Equal(t, int64(3), stats.PlatformStats[0].Clicks)
	assert.InDelta(t, 100.0, stats.PlatformStats[0].Percentage, 0.001)
	assert.Zero(t, stats.PlatformStats[1].Percentage)
}

func TestSmartlinkService_PublicNotFound(t *testing.T) {
	svc, _, owner := newSmartlinkFixture(t)
	ctx := context.Background()

	_, err := svc.View(ctx, "missing1")
	assert.ErrorIs(t, err, ErrSmartlinkNotFound)
	_, err = svc.Click(ctx, "missing1")
	assert.ErrorIs(t, err, ErrSmartlinkNotFound)
	_, err = svc.ClickPlatform(ctx, "missing1", uuid.New())
	assert.ErrorIs(t, err, ErrSmartlinkNotFound)

	link, err := svc.Create(ctx, owner, &dto.CreateSmartlinkRequest{Title: "x"})
	require.NoError(t, err)
	_, err = svc.ClickPlatform(ctx, link.ID, uuid.New())
	assert.ErrorIs(t, err, ErrPlatformNotFound)
}
