package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type sqlStore struct {
	db   *sqlx.DB
	exec sqlx.ExtContext
}

// NewStore returns a Store backed by db. Queries are written with ? placeholders and
// rebound for the driver, so postgres and sqlite3 share one code path.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db, exec: db}
}

func (s *sqlStore) Loans() LoanRepository {
	return &loanRepository{db: s.exec}
}

func (s *sqlStore) Payments() PaymentRepository {
	return &paymentRepository{db: s.exec}
}

func (s *sqlStore) Transactions() TransactionRepository {
	return &transactionRepository{db: s.exec}
}

func (s *sqlStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	// already inside a transaction
	if _, ok := s.exec.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&sqlStore{db: s.db, exec: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

// Migrate creates the tables for db's driver if they do not exist yet
func Migrate(ctx context.Context, db *sqlx.DB) error {
	ddl, err := schemaFS.ReadFile(fmt.Sprintf("schema/%s.sql", db.DriverName()))
	if err != nil {
		return fmt.Errorf("no schema for driver %s: %w", db.DriverName(), err)
	}

	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
