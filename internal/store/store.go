// Package store persists hypervisor records, VM plans and the provisioned VM
// inventory with gorm. SQLite is the default dialect; PostgreSQL is
// supported for shared deployments.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/util/retry"
)

// Store is the relational store.
type Store struct {
	db  *gorm.DB
	log logr.Logger
}

// Open connects to the configured database, retrying transient connection
// failures, and migrates the schema.
func Open(ctx context.Context, cfg config.StoreConfig, timeouts *config.Timeouts, log logr.Logger) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindValidation, "store.Open", err)
	}

	var db *gorm.DB
	err = retry.Do(ctx, func(ctx context.Context) error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return retry.Fatal(err)
		}
		return sqlDB.PingContext(ctx)
	},
		retry.WithAttempts(timeouts.StoreRetryMaxAttempts),
		retry.WithInitialDelay(timeouts.StoreRetryInitialDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			log.Info("store not ready, retrying", "driver", cfg.Driver, "attempt", attempt, "error", err.Error())
		}),
	)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindPersistence, "store.Open", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite allows one writer; concurrent checks queue on the pool.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dialectorFor(cfg config.StoreConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&hypervisorRow{}, &planRow{}, &provisionedVMRow{}); err != nil {
		return apierr.Wrap(apierr.KindPersistence, "store.migrate", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// wrap classifies a gorm error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.Wrap(apierr.KindNotFound, op, err)
	}
	return apierr.Wrap(apierr.KindPersistence, op, err)
}
