// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and the versioned schema migration.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
)

// SchemaVersion is the schema revision this binary writes. Bump it whenever
// the shape of repos/chats changes. Version 3 moved the binding foreign key
// onto chats.token.
//
// Upgrades are destructive: a database stamped with an older version (or with
// no stamp at all) has every table dropped and recreated, losing all
// registrations and bindings. This is acceptable only because both are cheap
// to recreate (re-register the URL, /reg again in the chat).
const SchemaVersion = 3

// ErrSchemaTooNew is returned by Migrate when the database was written by a
// newer binary than the one running.
var ErrSchemaTooNew = errors.New("database schema is newer than this binary")

// OpenSQLite opens (or creates) the bot database at path, switches it to WAL
// with foreign keys enforced, and sizes the pool for one webhook server plus
// the poller. The parent directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	// PRAGMAs; the driver runs these on every pooled connection
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing installs the GORM OpenTelemetry plugin so every query emits a
// span under the request's trace. Metrics stay with Prometheus.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// dataTables lists the tables owned by the schema version, in drop order.
func dataTables() []any {
	return []any{&domain.Delivery{}, &domain.ChatBinding{}, &domain.Repository{}}
}

// Migrate brings the database to SchemaVersion.
//
//   - fresh database: tables are created and stamped.
//   - stamped with SchemaVersion: AutoMigrate only (additive, idempotent).
//   - unstamped or stamped older: every data table is dropped and recreated.
//   - stamped newer: ErrSchemaTooNew, nothing is touched.
//
// It returns the version that was found before migrating (0 when unstamped).
func Migrate(ctx context.Context, db *gorm.DB) (int, error) {
	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(&domain.SchemaVersion{}); err != nil {
		return 0, err
	}

	var marker domain.SchemaVersion
	found := 0
	err := tx.Order("id desc").First(&marker).Error
	switch {
	case err == nil:
		found = marker.Version
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return 0, err
	}

	if found > SchemaVersion {
		return found, fmt.Errorf("%w: found %d, running %d", ErrSchemaTooNew, found, SchemaVersion)
	}

	if found < SchemaVersion {
		if err := dropDataTables(tx, found); err != nil {
			return found, err
		}
	}

	if err := tx.AutoMigrate(&domain.Repository{}, &domain.ChatBinding{}, &domain.Delivery{}); err != nil {
		return found, err
	}

	if found < SchemaVersion {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.SchemaVersion{}).Error; err != nil {
			return found, err
		}
		stamp := &domain.SchemaVersion{Version: SchemaVersion, AppliedAt: time.Now().UTC()}
		if err := tx.Create(stamp).Error; err != nil {
			return found, err
		}
	}
	return found, nil
}

// dropDataTables drops every data table on a single connection with foreign
// keys off. Older schemas may carry constraints that no longer match the
// models, and SQLite checks them on DROP TABLE.
func dropDataTables(db *gorm.DB, found int) error {
	return db.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("PRAGMA foreign_keys=OFF;").Error; err != nil {
			return err
		}
		defer conn.Exec("PRAGMA foreign_keys=ON;")

		m := conn.Migrator()
		for _, tbl := range dataTables() {
			if !m.HasTable(tbl) {
				continue
			}
			log.Warn().
				Int("from_version", found).
				Int("to_version", SchemaVersion).
				Str("table", fmt.Sprintf("%T", tbl)).
				Msg("dropping table for schema upgrade; stored data is lost")
			if err := m.DropTable(tbl); err != nil {
				return err
			}
		}
		return nil
	})
}
