package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/orchidnexus/orchid/internal/db"
)

// Stores are the repositories bound to a single transaction.
type Stores struct {
	Credentials CredentialRepo
	Notices     NoticeRepo
}

// StoresOn binds every repository to conn, which may be a *sql.DB or a
// transaction.
func StoresOn(conn db.DBTX) Stores {
	return Stores{
		Credentials: NewSQLiteCredentialRepo(conn),
		Notices:     NewSQLiteNoticeRepo(conn),
	}
}

// UnitOfWork runs fn against stores that share one transaction. Session
// teardown relies on it so a cleared credential never outlives its notices.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type SQLiteUnitOfWork struct {
	db *sql.DB
}

func NewSQLiteUnitOfWork(database *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: database}
}

// WithinTx commits when fn returns nil and rolls back on error or panic.
func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return RunTx(ctx, u.db, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, StoresOn(tx))
	})
}

// RunTx is the transaction loop behind WithinTx. It is exported so test
// doubles can wrap the transaction before the stores are bound.
func RunTx(ctx context.Context, database *sql.DB, fn func(ctx context.Context, tx db.DBTX) error) (err error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
