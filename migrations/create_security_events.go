package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
)

func MigrateSecurityEvents(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SecurityEvent{}); err != nil {
		return fmt.Errorf("migrate security_events: %w", err)
	}
	return nil
}
