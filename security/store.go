package security

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
)

// GormStore keeps events in the security_events table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, e Event) error {
	row, err := toRow(e)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) List(ctx context.Context, q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	tx := s.db.WithContext(ctx).Model(&models.SecurityEvent{}).
		Where("severity IN ?", q.MinSeverity.AtLeast())
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}

	var rows []models.SecurityEvent
	if err := tx.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromRow(row))
	}
	return events, nil
}

func (s *GormStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.SecurityEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge security events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toRow(e Event) (models.SecurityEvent, error) {
	details := ""
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return models.SecurityEvent{}, fmt.Errorf("marshal event details: %w", err)
		}
		details = string(raw)
	}
	return models.SecurityEvent{
		ID:        e.ID,
		Type:      truncate(e.Type, models.SecurityEventTypeSize),
		Severity:  e.Severity.String(),
		Message:   e.Message,
		IP:        truncate(e.IP, models.SecurityEventIPSize),
		UserAgent: e.UserAgent,
		Path:      truncate(e.Path, models.SecurityEventPathSize),
		Details:   details,
		CreatedAt: e.CreatedAt,
	}, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func fromRow(row models.SecurityEvent) Event {
	sev, _ := ParseSeverity(row.Severity)
	e := Event{
		ID:        row.ID,
		Type:      row.Type,
		Severity:  sev,
		Message:   row.Message,
		IP:        row.IP,
		UserAgent: row.UserAgent,
		Path:      row.Path,
		CreatedAt: row.CreatedAt,
	}
	if row.Details != "" {
		// Details written by toRow always decode; anything else is dropped
		_ = json.Unmarshal([]byte(row.Details), &e.Details)
	}
	return e
}
