package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// SQLiteFile writes the result table into a new database file next to Path
// and renames it over Path once the rows are committed. Nothing touches Path
// before that, so an aborted run leaves no file or the previous one intact.
type SQLiteFile struct {
	Path  string
	Table string
}

// NewSQLiteFile validates the table name without touching the filesystem.
func NewSQLiteFile(path, table string) (*SQLiteFile, error) {
	t, err := NewTable(nil, SQLite, table)
	if err != nil {
		return nil, err
	}
	return &SQLiteFile{Path: path, Table: t.table}, nil
}

func (s *SQLiteFile) Write(ctx context.Context, size int, rows []ngram.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "creating output directory: %v", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+"-*.tmp")
	if err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "creating output database: %v", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	committed := false
	defer func() {
		if !committed {
			removeDatabase(tmpPath)
		}
	}()

	if err := s.fill(ctx, tmpPath, size, rows); err != nil {
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		return fmt.Errorf("syncing output database: %w", err)
	}
	// Journal files of an older database at Path would be replayed into the
	// new one.
	os.Remove(s.Path + "-wal")
	os.Remove(s.Path + "-shm")
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "replacing %s: %v", s.Path, err)
	}
	committed = true
	os.Remove(tmpPath + "-journal")
	return nil
}

func (s *SQLiteFile) fill(ctx context.Context, path string, size int, rows []ngram.Record) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "opening sqlite %s: %v", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	t, err := NewTable(db, SQLite, s.Table)
	if err != nil {
		return err
	}
	if err := t.Write(ctx, size, rows); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing sqlite %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteFile) Close() error {
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func removeDatabase(path string) {
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		os.Remove(path + suffix)
	}
}
