package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"spinwheel/internal/config"
	"spinwheel/internal/models"
)

// Open connects to the configured backend and migrates the spins table.
func Open(cfg *config.Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DatabaseDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver == "sqlite" {
		// One writer at a time; concurrent inserts queue on the pool instead
		// of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(15)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Infow("migrating database", "driver", cfg.DatabaseDriver)
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the spins table and its unique email index.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.SpinRecord{})
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(sqliteDSN(dsn)), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		return postgres.New(postgres.Config{Conn: conn}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// sqliteDSN adds a busy timeout unless the caller already set one.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}
