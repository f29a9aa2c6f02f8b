package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createUser(t *testing.T, db *gorm.DB, mutate func(u *models.User)) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:       id,
		Username: "user_" + id.String()[:8],
		Email:    id.String()[:8] + "@example.com",
		Password: "hash",
		IsActive: true,
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestAccountStore_Get(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	user := createUser(t, db, nil)

	got, err := s.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)
	assert.Equal(t, string(entitlement.StatusPending), got.SubscriptionStatus)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountStore_FindBySubscriptionRef(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	user := createUser(t, db, func(u *models.User) {
		u.SubscriptionStatus = string(entitlement.StatusActive)
		u.StripeSubscriptionID = "sub_123"
	})

	got, err := s.FindBySubscriptionRef(ctx, "sub_123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.FindBySubscriptionRef(ctx, "sub_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindBySubscriptionRef(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountStore_CompareAndSet(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	user := createUser(t, db, nil)
	expected := user.Billing()

	expiry := time.Now().Add(365 * 24 * time.Hour).UTC().Truncate(time.Second)
	next, changed := entitlement.Activate(expected, "sub_1", expiry, time.Time{})
	require.True(t, changed)

	require.NoError(t, s.CompareAndSet(ctx, user.ID, expected, next))

	stored, err := s.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entitlement.StatusActive), stored.SubscriptionStatus)
	assert.Equal(t, "sub_1", stored.StripeSubscriptionID)
	assert.Equal(t, int64(1), stored.BillingVersion)
	require.NotNil(t, stored.SubscriptionEndDate)
	assert.True(t, stored.SubscriptionEndDate.Equal(expiry))

	// A second writer holding the old snapshot loses.
	cancelled, _ := entitlement.Override(expected, entitlement.StatusCancelled)
	err = s.CompareAndSet(ctx, user.ID, expected, cancelled)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err = s.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entitlement.StatusActive), stored.SubscriptionStatus)

	err = s.CompareAndSet(ctx, uuid.New(), expected, next)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountStore_CompareAndSetConcurrent(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	user := createUser(t, db, nil)
	expected := user.Billing()
	next, _ := entitlement.Override(expected, entitlement.StatusActive)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CompareAndSet(ctx, user.ID, expected, next); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	stored, err := s.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.BillingVersion)
}

func TestAccountStore_SetCustomerReferenceIfAbsent(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewAccountStore(db)
	ctx := context.Background()

	user := createUser(t, db, nil)

	stored, err := s.SetCustomerReferenceIfAbsent(ctx, user.ID, "cus_first")
	require.NoError(t, err)
	assert.Equal(t, "cus_first", stored)

	stored, err = s.SetCustomerReferenceIfAbsent(ctx, user.ID, "cus_second")
	require.NoError(t, err)
	assert.Equal(t, "cus_first", stored)

	_, err = s.SetCustomerReferenceIfAbsent(ctx, uuid.New(), "cus_x")
	assert.ErrorIs(t, err, ErrNotFound)
}
