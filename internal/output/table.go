package output

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/postgres"
)

// Dialect selects placeholder syntax for a SQL result table.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table stores results in a SQL table, replacing its rows in a single
// transaction.
type Table struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

func NewTable(db *sql.DB, dialect Dialect, table string) (*Table, error) {
	if table == "" {
		table = "ngrams"
	}
	if !tableName.MatchString(table) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "invalid table name %q", table)
	}
	return &Table{db: db, dialect: dialect, table: table}, nil
}

func (t *Table) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (n INTEGER NOT NULL, "count" BIGINT NOT NULL, ngram TEXT NOT NULL)`, t.table)
}

func (t *Table) insertSQL() string {
	placeholders := make([]string, len(Columns))
	for i := range placeholders {
		if t.dialect == Postgres {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	return fmt.Sprintf(`INSERT INTO %q (n, "count", ngram) VALUES (%s)`, t.table, strings.Join(placeholders, ", "))
}

func (t *Table) Write(ctx context.Context, size int, rows []ngram.Record) error {
	return postgres.InTx(ctx, t.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, t.createSQL()); err != nil {
			return fmt.Errorf("creating table %s: %w", t.table, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", t.table)); err != nil {
			return fmt.Errorf("clearing table %s: %w", t.table, err)
		}
		stmt, err := tx.PrepareContext(ctx, t.insertSQL())
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, size, int64(r.Count), r.Gram); err != nil {
				return fmt.Errorf("inserting %q: %w", r.Gram, err)
			}
		}
		return nil
	})
}

func (t *Table) Close() error {
	return t.db.Close()
}
