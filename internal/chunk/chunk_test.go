package chunk

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

func TestWriteCountsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	path, err := w.WriteCounts(ngram.Counts{"THE CAT": 2, "CAT SAT": 1, "CAT RAN": 1})
	if err != nil {
		t.Fatalf("WriteCounts: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, FileExt) {
		t.Errorf("unexpected chunk path %s", path)
	}
	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []ngram.Record{{Gram: "CAT RAN", Count: 1}, {Gram: "CAT SAT", Count: 1}, {Gram: "THE CAT", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestEmptyChunk(t *testing.T) {
	path, err := NewWriter(t.TempDir()).Write(nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if r.Len() != 0 {
		t.Errorf("Len = %d", r.Len())
	}
	if _, ok, err := r.Next(); ok || err != nil {
		t.Errorf("Next on empty chunk = %v, %v", ok, err)
	}
}

func TestAppendRejectsUnsortedAndDuplicate(t *testing.T) {
	tests := []struct {
		name    string
		records []ngram.Record
	}{
		{"descending", []ngram.Record{{Gram: "B", Count: 1}, {Gram: "A", Count: 1}}},
		{"duplicate", []ngram.Record{{Gram: "A", Count: 1}, {Gram: "A", Count: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := NewWriter(dir).Write(tt.records)
			if !errors.Is(err, apperrors.ErrInvariant) {
				t.Fatalf("err = %v, want ErrInvariant", err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("aborted chunk left %d files", len(entries))
			}
		})
	}
}

func TestUniqueNames(t *testing.T) {
	w := NewWriter(t.TempDir())
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		path, err := w.Write([]ngram.Record{{Gram: "A", Count: 1}})
		if err != nil {
			t.Fatal(err)
		}
		if seen[path] {
			t.Fatalf("duplicate chunk name %s", path)
		}
		seen[path] = true
	}
}

func TestOpenReaderRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.ngc")
	if err := os.WriteFile(path, []byte("this is not a chunk file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestReaderDetectsUnsortedFile(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter(dir).Write([]ngram.Record{{Gram: "A", Count: 1}, {Gram: "B", Count: 1}})
	if err != nil {
		t.Fatal(err)
	}
	// Swap the two one-byte keys in place: fixstr headers are 0xa1.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := data[HeaderSize:]
	if body[0] != 0xa1 || body[1] != 'A' || body[3] != 0xa1 || body[4] != 'B' {
		t.Fatalf("unexpected encoding % x", body)
	}
	body[1], body[4] = 'B', 'A'
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ReadAll(path)
	if !errors.Is(err, apperrors.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
}

func TestHeaderCount(t *testing.T) {
	path, err := NewWriter(t.TempDir()).Write([]ngram.Record{{Gram: "A", Count: 1}, {Gram: "B", Count: 2}, {Gram: "C", Count: 3}})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != MagicBytes {
		t.Errorf("magic = %x", got)
	}
	if got := binary.LittleEndian.Uint64(data[8:16]); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestEach(t *testing.T) {
	path, err := NewWriter(t.TempDir()).Write([]ngram.Record{{Gram: "A", Count: 5}, {Gram: "B", Count: 7}})
	if err != nil {
		t.Fatal(err)
	}
	var total uint64
	if err := Each(path, func(r ngram.Record) error {
		total += r.Count
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if total != 12 {
		t.Errorf("total = %d, want 12", total)
	}
}
