package data

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/logging"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	// ErrConnect wraps every failed dial.
	ErrConnect = errors.New("database connect failed")
	// ErrNoDatabase is returned by store operations while running without a database.
	ErrNoDatabase = errors.New("database not available")
)

// DialFunc opens a database handle. Dial is the production implementation.
type DialFunc func(ctx context.Context, driver, dsn string) (*gorm.DB, error)

// ConnManager owns the single shared database handle. The first caller dials
// lazily; callers arriving while that dial is in flight wait for its result
// instead of dialing again.
type ConnManager struct {
	driver string
	dsn    string
	dial   DialFunc
	log    *logging.Logger

	mu     sync.RWMutex
	handle *gorm.DB
	flight singleflight.Group

	// gen is bumped by Close; a dial that started under an older gen is discarded.
	gen uint64
}

// ConnOption customises a ConnManager.
type ConnOption func(*ConnManager)

// WithDialer replaces the dial function.
func WithDialer(dial DialFunc) ConnOption {
	return func(m *ConnManager) { m.dial = dial }
}

func NewConnManager(cfg config.Database, log *logging.Logger, opts ...ConnOption) *ConnManager {
	m := &ConnManager{
		driver: cfg.Driver,
		dsn:    cfg.DSN(),
		dial:   Dial,
		log:    logging.OrNop(log).With("component", "db"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether a usable DSN was provided.
func (m *ConnManager) Configured() bool { return m.dsn != "" }

// EnsureConnected returns the shared handle, dialing once if needed. With no
// DSN configured it returns (nil, nil) and the service runs without storage.
// A failed dial is returned to every waiter and the next call dials again.
func (m *ConnManager) EnsureConnected(ctx context.Context) (*gorm.DB, error) {
	if db := m.Current(); db != nil {
		return db, nil
	}
	if !m.Configured() {
		return nil, nil
	}

	ch := m.flight.DoChan("connect", func() (interface{}, error) {
		m.mu.RLock()
		db, gen := m.handle, m.gen
		m.mu.RUnlock()
		if db != nil {
			return db, nil
		}
		// The attempt is shared, so it must not die with the first caller's context.
		dialCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		m.log.Info("Connecting to database", "driver", m.driver)
		db, err := m.dial(dialCtx, m.driver, m.dsn)
		if err != nil {
			m.log.Error("Database connection failed", "driver", m.driver, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrConnect, err)
		}
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			closeHandle(db)
			m.log.Warn("Database closed while dialing, discarding new connection")
			return nil, fmt.Errorf("%w: closed while dialing", ErrConnect)
		}
		m.handle = db
		m.mu.Unlock()
		m.log.Info("Connected to database", "driver", m.driver)
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrConnect, ctx.Err())
	}
}

// Current returns whatever handle is set right now, possibly nil.
func (m *ConnManager) Current() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

// Close releases the handle and returns the manager to its initial state. A
// dial still in flight is discarded when it lands.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	db := m.handle
	m.handle = nil
	m.gen++
	m.mu.Unlock()

	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	m.log.Info("Database connection closed")
	return nil
}

func closeHandle(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
