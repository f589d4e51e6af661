// internal/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cadet-chat-service/internal/config"
	"cadet-chat-service/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Options controls how a connection is opened and migrated.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
	// MigrateDirectory also creates the user directory tables. Only local
	// sqlite runs and tests own those tables.
	MigrateDirectory bool
}

// OptionsFromConfig builds Options from the service configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.URL,
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
		Debug:            cfg.IsDevelopment(),
		MigrateDirectory: cfg.Database.Driver == "sqlite",
	}
}

// Open connects, configures the pool and runs migrations.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		if opts.DSN == "" {
			return nil, fmt.Errorf("database url is not set")
		}
		dialector = postgres.Open(opts.DSN)
	case "sqlite":
		dsn := opts.DSN
		if dsn == "" {
			dsn = "cadet-chat.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	logLevel := logger.Silent
	if opts.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if opts.Driver == "sqlite" {
		// a single connection keeps :memory: databases shared and serialises writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := Migrate(db, opts.MigrateDirectory); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenWithRetry keeps trying to connect until it succeeds or ctx is done.
func OpenWithRetry(ctx context.Context, opts Options, retryInterval time.Duration, log *zap.Logger) (*gorm.DB, error) {
	for {
		db, err := Open(opts)
		if err == nil {
			return db, nil
		}
		log.Warn("⚠️  Database connection failed, retrying",
			zap.Duration("retry_in", retryInterval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database not available: %w", err)
		case <-time.After(retryInterval):
		}
	}
}

// Migrate creates the chat tables and their partial unique indexes.
func Migrate(db *gorm.DB, withDirectory bool) error {
	if withDirectory {
		if err := db.AutoMigrate(
			&model.User{},
			&model.CadetProfile{},
			&model.CadetRank{},
		); err != nil {
			return err
		}
	}

	if err := db.AutoMigrate(
		&model.ChatRoom{},
		&model.ChatParticipant{},
		&model.Message{},
		&model.MessageReadStatus{},
	); err != nil {
		return err
	}

	return createIndexes(db)
}

func createIndexes(db *gorm.DB) error {
	statements := []string{
		// one live direct room per user pair
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_rooms_direct_key
			ON chat_rooms (direct_key) WHERE room_type = 'direct' AND deleted_at IS NULL`,
		// one live membership per user per room
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_participants_room_user
			ON chat_participants (room_id, user_id) WHERE deleted_at IS NULL`,
		// receipts are upserted on this pair
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_message_read_status_message_user
			ON message_read_status (message_id, user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_message_desc
			ON messages (room_id, message_id DESC)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key")
}
