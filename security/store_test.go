package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/testutil"
)

func TestGormStoreRoundTrip(t *testing.T) {
	db := testutil.NewTestDB(t, &models.SecurityEvent{})
	store := NewGormStore(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, Event{
		ID: "1", Type: EventLoginFailed, Severity: SeverityMedium, Message: "m1",
		IP: "10.0.0.1", CreatedAt: base, Details: map[string]interface{}{"path": "/api/login"},
	}))
	require.NoError(t, store.Save(ctx, Event{
		ID: "2", Type: EventCSPViolation, Severity: SeverityLow, CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, store.Save(ctx, Event{
		ID: "3", Type: EventUpstreamUnavailable, Severity: SeverityHigh, CreatedAt: base.Add(2 * time.Minute),
	}))

	all, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID)

	serious, err := store.List(ctx, Query{MinSeverity: SeverityMedium})
	require.NoError(t, err)
	require.Len(t, serious, 2)

	byType, err := store.List(ctx, Query{Type: EventLoginFailed})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "/api/login", byType[0].Details["path"])
	assert.Equal(t, SeverityMedium, byType[0].Severity)
	assert.Equal(t, "10.0.0.1", byType[0].IP)

	n, err := store.Purge(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "3", left[0].ID)
}

func TestPipelinePersistsAndPurges(t *testing.T) {
	db := testutil.NewTestDB(t, &models.SecurityEvent{})
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := NewPipeline(Options{Store: NewGormStore(db), Now: func() time.Time { return now }})
	defer p.Close()

	ctx := context.Background()
	p.Emit(ctx, Event{Type: "old", CreatedAt: now.Add(-40 * 24 * time.Hour)})
	p.Emit(ctx, Event{Type: "fresh"})

	history, err := p.History(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, history, 2)

	n, err := p.Purge(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, db.Model(&models.SecurityEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormStoreCutsOverlongColumns(t *testing.T) {
	db := testutil.NewTestDB(t, &models.SecurityEvent{})
	store := NewGormStore(db)
	ctx := context.Background()

	longPath := "/api/properties/" + strings.Repeat("a", 600)
	require.NoError(t, store.Save(ctx, Event{
		ID:        "long",
		Type:      strings.Repeat("t", 100),
		Severity:  SeverityMedium,
		IP:        strings.Repeat("9", 80),
		Path:      longPath,
		CreatedAt: time.Now(),
	}))

	var row models.SecurityEvent
	require.NoError(t, db.First(&row, "id = ?", "long").Error)
	assert.Len(t, row.Path, models.SecurityEventPathSize)
	assert.True(t, strings.HasPrefix(longPath, row.Path))
	assert.Len(t, row.Type, models.SecurityEventTypeSize)
	assert.Len(t, row.IP, models.SecurityEventIPSize)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("abü", 3))
	assert.Equal(t, "abü", truncate("abü", 4))
}
