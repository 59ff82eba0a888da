package orm

import (
	"fmt"
	"strings"
	"time"

	"warehouse/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DB wraps the gorm handle and carries all catalog query methods.
type DB struct {
	gorm *gorm.DB
}

// InitDB connects to postgres, applies the pool configuration and runs the
// schema migrations. Any failure here is fatal.
func InitDB(cfg *config.DatabaseConfig) DB {
	dsn := fmt.Sprintf(
		"host='%s' port='%d' user='%s' password='%s' dbname='%s' sslmode='%s'",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	dsnRedacted := strings.ReplaceAll(dsn, cfg.Password, "*****")
	log.Debug().
		Msgf("Connecting to postgres using the following information: %s", dsnRedacted)

	db, err := Open(postgres.Open(dsn))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}

	sqlDB, err := db.gorm.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to access the connection pool")
	}
	sqlDB.SetMaxOpenConns(cfg.PoolMaxOpen)
	sqlDB.SetMaxIdleConns(cfg.PoolMaxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.PoolMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.PoolIdleTimeout) * time.Second)

	log.Debug().Msg("Successfully connected to the database")

	return db
}

// Open connects through the given dialector and migrates the schema. Tests
// use this with an in-memory sqlite dialector.
func Open(dialector gorm.Dialector) (DB, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{TablePrefix: "warehouse_"},
	})
	if err != nil {
		return DB{}, fmt.Errorf("open database: %w", err)
	}

	err = gormDB.AutoMigrate(
		&User{},
		&Repository{},
		&Package{},
		&Dependency{},
		&File{},
		&Version{},
	)
	if err != nil {
		return DB{}, fmt.Errorf("migrate database: %w", err)
	}

	return DB{gorm: gormDB}, nil
}

// Transaction runs fn inside one database transaction; any returned error
// rolls the whole transaction back.
func (db DB) Transaction(fn func(tx DB) error) error {
	//nolint:wrapcheck // Errors are already wrapped by the entity methods
	return db.gorm.Transaction(func(tx *gorm.DB) error {
		return fn(DB{gorm: tx})
	})
}
