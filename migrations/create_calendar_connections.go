package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
)

// MigrateCalendarConnections runs against the application database, which
// owns the table. AutoMigrate only adds what is missing.
func MigrateCalendarConnections(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.CalendarConnection{}); err != nil {
		return fmt.Errorf("migrate calendar_connections: %w", err)
	}
	return nil
}
