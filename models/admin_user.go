package models

import (
	"time"

	"gorm.io/gorm"
)

// AdminUser is an operator allowed to use the gateway admin API.
type AdminUser struct {
	gorm.Model
	Email       string     `gorm:"unique;not null" json:"email"`
	Password    string     `gorm:"not null" json:"-"`
	Name        string     `json:"name"`
	Active      bool       `gorm:"default:true" json:"active"`
	LastLoginAt *time.Time `gorm:"column:last_login_at" json:"last_login_at"`
}

// TableName keeps the gateway tables apart from the site's own users table
func (AdminUser) TableName() string {
	return "gateway_admins"
}
