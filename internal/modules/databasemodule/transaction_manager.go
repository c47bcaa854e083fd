package databasemodule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/logger"
	"gorm.io/gorm"
)

// TransactionManager handles database transactions
type TransactionManager struct {
	db     *gorm.DB
	log    hclog.Logger
	active atomic.Int64
}

// TransactionContext wraps a transaction for safe handling
type TransactionContext struct {
	tx      *gorm.DB
	ctx     context.Context
	started time.Time
	id      string
	log     hclog.Logger
	done    func()
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{
		db:  db,
		log: logger.Named("transactions"),
	}
}

// BeginTransaction starts a new database transaction bound to ctx
func (tm *TransactionManager) BeginTransaction(ctx context.Context) (*TransactionContext, error) {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	tm.active.Add(1)
	txCtx := &TransactionContext{
		tx:      tx,
		ctx:     ctx,
		started: time.Now(),
		id:      uuid.NewString(),
		log:     tm.log,
		done:    func() { tm.active.Add(-1) },
	}

	tm.log.Trace("started transaction", "tx", txCtx.id)
	return txCtx, nil
}

// Commit commits the transaction
func (tc *TransactionContext) Commit() error {
	if tc.tx == nil {
		return fmt.Errorf("transaction %s is no longer active", tc.id)
	}
	defer tc.finish()

	if err := tc.tx.Commit().Error; err != nil {
		tc.log.Error("failed to commit transaction", "tx", tc.id, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	tc.log.Debug("committed transaction", "tx", tc.id, "duration", time.Since(tc.started))
	return nil
}

// Rollback rolls back the transaction
func (tc *TransactionContext) Rollback() error {
	if tc.tx == nil {
		return fmt.Errorf("transaction %s is no longer active", tc.id)
	}
	defer tc.finish()

	if err := tc.tx.Rollback().Error; err != nil {
		tc.log.Error("failed to rollback transaction", "tx", tc.id, "error", err)
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	tc.log.Debug("rolled back transaction", "tx", tc.id, "duration", time.Since(tc.started))
	return nil
}

func (tc *TransactionContext) finish() {
	tc.tx = nil
	tc.done()
}

// DB returns the transaction handle
func (tc *TransactionContext) DB() *gorm.DB {
	return tc.tx
}

// ID returns the transaction ID
func (tc *TransactionContext) ID() string {
	return tc.id
}

// Context returns the context associated with the transaction
func (tc *TransactionContext) Context() context.Context {
	return tc.ctx
}

// IsActive checks if the transaction is still open
func (tc *TransactionContext) IsActive() bool {
	return tc.tx != nil
}

// WithTransaction runs fn inside a transaction. An error or panic from fn
// rolls back; the panic is re-raised after the rollback.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	txCtx, err := tm.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if txCtx.IsActive() {
				_ = txCtx.Rollback()
			}
			panic(p)
		}
	}()

	if err := fn(txCtx.DB()); err != nil {
		if rollbackErr := txCtx.Rollback(); rollbackErr != nil {
			tm.log.Error("failed to rollback transaction after error", "tx", txCtx.ID(), "error", rollbackErr)
		}
		return err
	}

	return txCtx.Commit()
}

// GetStats returns connection pool and transaction counters
func (tm *TransactionManager) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"active_transactions": tm.active.Load(),
	}
	if sqlDB, err := tm.db.DB(); err == nil {
		dbStats := sqlDB.Stats()
		stats["open_connections"] = dbStats.OpenConnections
		stats["in_use"] = dbStats.InUse
		stats["idle"] = dbStats.Idle
	}
	return stats
}
