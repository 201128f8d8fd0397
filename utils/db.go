package utils

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for DB_DRIVER.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// ConnectDatabases opens the gateway database and the site's database.
// When both DSNs match the same handle is returned twice.
func ConnectDatabases(cfg *Config) (gatewayDB *gorm.DB, appDB *gorm.DB, err error) {
	gatewayDB, err = OpenDatabase(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway database: %w", err)
	}
	if cfg.AppDBDSN == cfg.DBDSN {
		return gatewayDB, gatewayDB, nil
	}
	appDB, err = OpenDatabase(cfg.DBDriver, cfg.AppDBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("app database: %w", err)
	}
	return gatewayDB, appDB, nil
}

// PingDatabase checks the underlying connection within timeout.
func PingDatabase(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
