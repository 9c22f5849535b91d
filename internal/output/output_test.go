package output

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

var sampleRows = []ngram.Record{
	{Gram: "THE CAT", Count: 2},
	{Gram: "CAT RAN", Count: 1},
	{Gram: "CAT SAT", Count: 1},
}

func TestCSVFileReplacesPriorOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &CSVFile{Path: path}
	if err := sink.Write(context.Background(), 2, sampleRows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	want := [][]string{
		{"n", "count", "ngram"},
		{"2", "2", "THE CAT"},
		{"2", "1", "CAT RAN"},
		{"2", "1", "CAT SAT"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("csv = %v, want %v", got, want)
	}
	assertOnlyFile(t, filepath.Dir(path), "out.csv")
}

func TestCSVFileFailureLeavesOutputUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(path, []byte("previous\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&CSVFile{Path: path}).Write(ctx, 1, sampleRows); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write = %v, want context.Canceled", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous\n" {
		t.Errorf("output modified: %q", data)
	}
	assertOnlyFile(t, dir, "out.csv")
}

func TestSQLiteFileReplacesPriorOutput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.db")
	sink, err := NewSQLiteFile(path, "grams")
	if err != nil {
		t.Fatalf("NewSQLiteFile: %v", err)
	}
	defer sink.Close()

	if err := sink.Write(ctx, 3, []ngram.Record{{Gram: "OLD ROW", Count: 9}}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := sink.Write(ctx, 2, sampleRows); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	assertOnlyFile(t, dir, "out.db")

	got := readSQLite(t, path, "grams", 2)
	if !reflect.DeepEqual(got, sampleRows) {
		t.Errorf("rows = %v, want %v", got, sampleRows)
	}
}

func TestSQLiteFileUnwrittenLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.db")
	cfg := &config.Config{Output: config.OutputConfig{Path: path, Format: "sqlite"}}
	sink, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stat %s = %v, want not exist", path, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory holds %d entries, want none", len(entries))
	}
}

func TestSQLiteFileFailureLeavesOutputUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.db")
	sink, err := NewSQLiteFile(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(context.Background(), 2, sampleRows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Write(ctx, 1, []ngram.Record{{Gram: "NEW", Count: 1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write = %v, want context.Canceled", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("output database modified by failed write")
	}
	assertOnlyFile(t, dir, "out.db")
}

func TestInsertPlaceholders(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, `INSERT INTO "ngrams" (n, "count", ngram) VALUES (?, ?, ?)`},
		{Postgres, `INSERT INTO "ngrams" (n, "count", ngram) VALUES ($1, $2, $3)`},
	}
	for _, tt := range tests {
		tbl, err := NewTable(nil, tt.dialect, "")
		if err != nil {
			t.Fatalf("NewTable: %v", err)
		}
		if got := tbl.insertSQL(); got != tt.want {
			t.Errorf("insertSQL = %s, want %s", got, tt.want)
		}
	}
}

func TestNewTableRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"1grams", "grams; DROP TABLE x", `a"b`, "grams-2"} {
		if _, err := NewTable(nil, SQLite, name); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("NewTable(%q) = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestOpenSelectsSink(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Output: config.OutputConfig{Path: filepath.Join(dir, "out.csv"), Format: "csv"}}
	sink, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open csv: %v", err)
	}
	if _, ok := sink.(*CSVFile); !ok {
		t.Errorf("csv sink is %T", sink)
	}

	cfg.Output = config.OutputConfig{Path: filepath.Join(dir, "out.db"), Format: "sqlite", Table: "ngrams"}
	sink, err = Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer sink.Close()
	if _, ok := sink.(*SQLiteFile); !ok {
		t.Errorf("sqlite sink is %T", sink)
	}

	cfg.Output.Format = "parquet"
	if _, err := Open(context.Background(), cfg); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Open parquet = %v, want ErrInvalidInput", err)
	}
}

func assertOnlyFile(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != name {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only %s", names, name)
	}
}

func readSQLite(t *testing.T, path, table string, wantN int) []ngram.Record {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	rows, err := db.Query(fmt.Sprintf(`SELECT n, "count", ngram FROM %q ORDER BY "count" DESC, ngram`, table))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var got []ngram.Record
	for rows.Next() {
		var n int
		var count int64
		var gram string
		if err := rows.Scan(&n, &count, &gram); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if n != wantN {
			t.Errorf("n = %d, want %d", n, wantN)
		}
		got = append(got, ngram.Record{Gram: gram, Count: uint64(count)})
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return got
}
