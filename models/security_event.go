package models

import "time"

// Column widths of security_events. Longer values are cut before insert.
const (
	SecurityEventTypeSize = 64
	SecurityEventIPSize   = 64
	SecurityEventPathSize = 512
)

type SecurityEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Type      string    `gorm:"size:64;index;not null" json:"type"`
	Severity  string    `gorm:"size:16;index;not null" json:"severity"`
	Message   string    `gorm:"type:text" json:"message"`
	IP        string    `gorm:"column:ip;size:64" json:"ip"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	Path      string    `gorm:"size:512" json:"path"`
	Details   string    `gorm:"type:text" json:"details"` // JSON encoded
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
