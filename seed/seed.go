// Package seed creates the first gateway administrator.
package seed

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
)

// SeedAdmin creates the admin account unless one with that email exists.
// An existing account keeps its password.
func SeedAdmin(db *gorm.DB, logger *zap.Logger, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.Info("ADMIN_EMAIL or ADMIN_PASSWORD not set. Skipping admin seeding.")
		return nil
	}
	if len(password) < 8 {
		return errors.New("ADMIN_PASSWORD must be at least 8 characters")
	}

	var existing models.AdminUser
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		logger.Info("Admin already exists. Skipping seeding.", zap.String("email", email))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.AdminUser{
		Email:    email,
		Password: string(hash),
		Name:     "Administrator",
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	logger.Info("Admin seeded successfully.", zap.String("email", email))
	return nil
}
