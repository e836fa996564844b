package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the configured database and migrates the catalog, ledger and audit tables.
func NewDatabase(cfg config.Database, log *zap.Logger) (*Database, error) {
	dialector, target, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("database initialized", zap.String("driver", string(cfg.Driver)), zap.String("target", target))
	}

	return &Database{DB: db}, nil
}

// OpenSQLite opens a sqlite database at path and migrates it. Used by tests and CLI commands.
func OpenSQLite(path string) (*Database, error) {
	return NewDatabase(config.Database{Driver: config.DatabaseDriverSQLite, Path: path}, nil)
}

// Migrate creates or updates every table the application owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.Author{},
		&entities.User{},
		&entities.Book{},
		&entities.PurchaseIntent{},
		&entities.Purchase{},
		&entities.Reconciliation{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// newGormLogger routes gorm's warnings, slow queries and errors through zap.
// Lookups that find nothing are normal here and are not logged.
func newGormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	std, err := zap.NewStdLogAt(log.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		return logger.Discard
	}
	return logger.New(std, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func dialectorFor(cfg config.Database) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case config.DatabaseDriverSQLite, "":
		path := cfg.Path
		if path == "" {
			path = config.DefaultDatabasePath
		}
		// Foreign keys are off by default in sqlite; the busy timeout keeps
		// concurrent purchase requests from failing with SQLITE_BUSY.
		return sqlite.Open(path + "?_foreign_keys=on&_busy_timeout=5000"), path, nil
	case config.DatabaseDriverPostgres:
		if cfg.DSN == "" {
			return nil, "", errors.New("DATABASE_DSN is required for the postgres driver")
		}
		return postgres.Open(cfg.DSN), "postgres", nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database connection is alive.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// IsUniqueViolation reports whether err came from a unique index.
// TranslateError maps most drivers to gorm.ErrDuplicatedKey; the string
// check covers sqlite builds that report the raw constraint message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
