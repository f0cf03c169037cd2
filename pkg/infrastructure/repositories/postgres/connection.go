package postgres

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vsinha/mbom/pkg/infrastructure/config"
)

// Open connects to PostgreSQL, configures the pool and pings the server.
// SQL statements are logged through log when cfg.LogLevel is not "silent".
func Open(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	level := logger.Silent
	switch cfg.LogLevel {
	case "error":
		level = logger.Error
	case "warn":
		level = logger.Warn
	case "info":
		level = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("database connection established")
	return db, nil
}

// Close releases the connection pool
func Close(db *gorm.DB, log logrus.FieldLogger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Error("failed to get underlying sql.DB")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("failed to close database connection")
	}
}

// Migrate creates or updates every table the repository uses
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&unitModel{},
		&productModel{},
		&bomHeaderModel{},
		&bomLineModel{},
		&operationModel{},
		&bomOperationModel{},
		&effectiveCostModel{},
		&purchasePriceModel{},
		&fxRateModel{},
		&planEntryModel{},
		&stockEntryModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_bom_headers_active ON bom_headers(product_id, valid_from DESC) WHERE state = 'ACTIVE'",
		"CREATE INDEX IF NOT EXISTS idx_purchase_prices_latest ON purchase_prices(product_id, price_date DESC, id DESC)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
