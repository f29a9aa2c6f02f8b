package store

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEventStore_RecordRedelivery(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewWebhookEventStore(db)
	ctx := context.Background()

	first := &models.WebhookEvent{
		ProviderEventID: "evt_1",
		Type:            "invoice.paid",
		Outcome:         "failed",
		EventCreatedAt:  time.Now().UTC(),
		Payload:         []byte(`{"id":"evt_1"}`),
	}
	require.NoError(t, s.Record(ctx, first))

	again := &models.WebhookEvent{
		ProviderEventID: "evt_1",
		Type:            "invoice.paid",
		Outcome:         "applied",
		EventCreatedAt:  first.EventCreatedAt,
		Payload:         []byte(`{"id":"evt_1"}`),
	}
	require.NoError(t, s.Record(ctx, again))

	got, err := s.Get(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "applied", got.Outcome)
	assert.Equal(t, 2, got.Deliveries)

	events, total, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, events, 1)
}
