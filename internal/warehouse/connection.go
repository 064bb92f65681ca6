package warehouse

import (
	"context"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"filmdw/internal/config"
)

// Connection opens the warehouse on first use and hands out the same handle
// afterwards.
type Connection struct {
	cfg    config.DatabaseConfig
	logger *slog.Logger

	mu sync.Mutex
	db *gorm.DB
}

// NewConnection returns an unopened connection for cfg.
func NewConnection(cfg config.DatabaseConfig, logger *slog.Logger) *Connection {
	return &Connection{cfg: cfg, logger: logger}
}

// Connect opens the warehouse if it is not open yet.
func (c *Connection) Connect(ctx context.Context) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}
	db, err := Open(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// Opened reports whether Connect has succeeded.
func (c *Connection) Opened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db != nil
}

// Close closes the warehouse if it was opened.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := Close(c.db)
	c.db = nil
	return err
}
