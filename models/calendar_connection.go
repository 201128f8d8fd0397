package models

import "time"

const (
	CalendarProviderGoogle = "google"
	CalendarProviderApple  = "apple"
)

// CalendarConnection maps a row of the site's calendar_connections table.
// Tokens are never serialised.
type CalendarConnection struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index" json:"user_id"`
	Provider        string     `gorm:"size:32;not null" json:"provider"`
	AccountEmail    string     `json:"account_email"`
	CalendarID      string     `json:"calendar_id"`
	AccessToken     string     `gorm:"type:text" json:"-"`
	RefreshToken    string     `gorm:"type:text" json:"-"`
	TokenExpiry     *time.Time `gorm:"column:token_expiry" json:"token_expiry"`
	Active          bool       `gorm:"default:true" json:"active"`
	FailureCount    int        `gorm:"default:0" json:"failure_count"`
	LastError       string     `gorm:"type:text" json:"last_error"`
	LastRefreshedAt *time.Time `gorm:"column:last_refreshed_at" json:"last_refreshed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (CalendarConnection) TableName() string {
	return "calendar_connections"
}
