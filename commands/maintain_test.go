package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/oauth2"

	"github.com/blackt666/immoxx--sub004/calendar"
	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/security"
	"github.com/blackt666/immoxx--sub004/testutil"
)

type noRefresh struct{}

func (noRefresh) Refresh(context.Context, models.CalendarConnection) (*oauth2.Token, error) {
	return nil, errors.New("unexpected refresh")
}

func newEventPipeline(t *testing.T) (*security.Pipeline, *security.GormStore) {
	t.Helper()
	db := testutil.NewTestDB(t, &models.SecurityEvent{})
	store := security.NewGormStore(db)
	p := security.NewPipeline(security.Options{Store: store})
	t.Cleanup(p.Close)

	require.NoError(t, store.Save(context.Background(), security.Event{
		ID: "old", Type: security.EventCSPViolation, Severity: security.SeverityLow,
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	}))
	return p, store
}

func TestMaintainPurgesWithoutCalendarSetup(t *testing.T) {
	events, store := newEventPipeline(t)
	core, logs := observer.New(zapcore.InfoLevel)

	var out bytes.Buffer
	err := maintain(context.Background(), &out, zap.New(core), nil, events, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, out.Len())

	left, err := store.List(context.Background(), security.Query{})
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.Equal(t, 1, logs.FilterMessage("Purged old security events").Len())
	assert.Equal(t, 1, logs.FilterMessage("Calendar maintenance skipped").Len())
}

func TestMaintainWithNothingToDo(t *testing.T) {
	err := maintain(context.Background(), &bytes.Buffer{}, zap.NewNop(), nil, nil, time.Hour)
	assert.ErrorIs(t, err, errCalendarNotConfigured)
}

func TestMaintainPrintsCalendarReport(t *testing.T) {
	db := testutil.NewTestDB(t, &models.CalendarConnection{})
	cal := calendar.NewMaintainer(calendar.Options{DB: db, Refresher: noRefresh{}})

	var out bytes.Buffer
	require.NoError(t, maintain(context.Background(), &out, zap.NewNop(), cal, nil, time.Hour))

	var report calendar.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Zero(t, report.Checked)
}
