package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGHandler_StoresErrorsOnly(t *testing.T) {
	db := testutil.NewDB(t)
	h := newPGHandler(db, time.Hour)
	logger := slog.New(h).With("request_id", "req-1")

	logger.Info("ignored")
	logger.Error("checkout failed", "op", "payment.CreateCheckoutSession", "user_id", "u-1",
		"error", "boom", "latency_ms", 12.6, "session_id", "cs_1")
	h.Stop()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "checkout failed", entry.Message)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "payment.CreateCheckoutSession", entry.Op)
	assert.Equal(t, "boom", entry.Error)
	assert.Equal(t, 13, entry.LatencyMs)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-1", *entry.UserID)

	var extra map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Extra, &extra))
	assert.Equal(t, "cs_1", extra["session_id"])
}

func TestPGHandler_SkipsOwnFlushErrors(t *testing.T) {
	db := testutil.NewDB(t)
	h := newPGHandler(db, time.Hour)

	slog.New(h).Error("failed to flush system logs to DB", "op", flushOp)
	h.Stop()
	h.Stop()

	var count int64
	db.Model(&models.SystemLog{}).Count(&count)
	assert.Zero(t, count)
}

func TestCleanup(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now()
	require.NoError(t, db.Create(&[]models.SystemLog{
		{Timestamp: now.AddDate(0, 0, -40), Level: "ERROR", Message: "old"},
		{Timestamp: now.AddDate(0, 0, -1), Level: "ERROR", Message: "recent"},
	}).Error)

	deleted, err := Cleanup(context.Background(), db, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.SystemLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].Message)
}

func TestMultiHandler(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(NewMultiHandler(
		NewJSONHandler(&info, "production"),
		NewJSONHandler(&debug, "development"),
	))

	logger.Debug("verbose")
	logger.With("component", "test").Info("hello")

	assert.NotContains(t, info.String(), "verbose")
	assert.Contains(t, info.String(), `"component":"test"`)
	assert.Contains(t, debug.String(), "verbose")
	assert.Contains(t, debug.String(), "hello")
}
