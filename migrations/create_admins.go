package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
)

func MigrateAdmins(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.AdminUser{}); err != nil {
		return fmt.Errorf("migrate gateway_admins: %w", err)
	}
	return nil
}
