// Package migrations creates the tables the gateway reads and writes.
package migrations

import "gorm.io/gorm"

// MigrateAll brings both databases up to date. gatewayDB and appDB may be
// the same handle.
func MigrateAll(gatewayDB, appDB *gorm.DB) error {
	for _, step := range []func(*gorm.DB) error{MigrateAdmins, MigrateSecurityEvents} {
		if err := step(gatewayDB); err != nil {
			return err
		}
	}
	return MigrateCalendarConnections(appDB)
}
