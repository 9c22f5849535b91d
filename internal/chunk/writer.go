// Package chunk persists sorted n-gram records to scratch files and streams
// them back one record at a time. A chunk file is a fixed header followed by
// msgpack-encoded (n-gram, count) pairs in strictly ascending n-gram order.
package chunk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// MagicBytes identifies a valid .ngc chunk file.
const (
	MagicBytes    uint32 = 0x4E47434B
	FormatVersion uint32 = 1
	HeaderSize    int    = 16
	FileExt              = ".ngc"

	bufferSize = 1 << 16
)

// Writer creates chunk files inside a cache directory. Names carry a random
// UUID so concurrent writers never collide.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes chunks into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// File is a chunk being written. Records become visible under the final
// name only after Commit.
type File struct {
	f         *os.File
	buf       *bufio.Writer
	enc       *msgpack.Encoder
	tmpPath   string
	finalPath string
	count     uint64
	last      string
	done      bool
}

// Create opens a new chunk file for streaming writes.
func (w *Writer) Create() (*File, error) {
	finalPath := filepath.Join(w.dir, fmt.Sprintf("chunk_%s%s", uuid.NewString(), FileExt))
	tmpPath := finalPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCacheDir, apperrors.ExitFailure, "creating chunk file: %v", err)
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, apperrors.Newf(apperrors.ErrCacheDir, apperrors.ExitFailure, "writing chunk header: %v", err)
	}
	buf := bufio.NewWriterSize(f, bufferSize)
	return &File{
		f:         f,
		buf:       buf,
		enc:       msgpack.NewEncoder(buf),
		tmpPath:   tmpPath,
		finalPath: finalPath,
	}, nil
}

// Append writes the next record. Keys must be strictly increasing, so a
// repeated key is reported as an invariant violation.
func (c *File) Append(r ngram.Record) error {
	if c.count > 0 && r.Gram <= c.last {
		return apperrors.Invariantf("chunk %s: key %q does not follow %q", filepath.Base(c.finalPath), r.Gram, c.last)
	}
	if err := c.enc.EncodeString(r.Gram); err != nil {
		return fmt.Errorf("encoding n-gram %q: %w", r.Gram, err)
	}
	if err := c.enc.EncodeUint(r.Count); err != nil {
		return fmt.Errorf("encoding count for %q: %w", r.Gram, err)
	}
	c.last = r.Gram
	c.count++
	return nil
}

// Len returns the number of records appended so far.
func (c *File) Len() uint64 {
	return c.count
}

// Commit flushes, fsyncs and renames the file into place, returning its path.
func (c *File) Commit() (string, error) {
	if c.done {
		return "", fmt.Errorf("chunk %s already closed", c.finalPath)
	}
	c.done = true
	if err := c.buf.Flush(); err != nil {
		c.discard()
		return "", fmt.Errorf("flushing chunk: %w", err)
	}
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(header[8:16], c.count)
	if _, err := c.f.WriteAt(header, 0); err != nil {
		c.discard()
		return "", fmt.Errorf("updating chunk header: %w", err)
	}
	if err := c.f.Sync(); err != nil {
		c.discard()
		return "", fmt.Errorf("syncing chunk file: %w", err)
	}
	if err := c.f.Close(); err != nil {
		os.Remove(c.tmpPath)
		return "", fmt.Errorf("closing chunk file: %w", err)
	}
	if err := os.Rename(c.tmpPath, c.finalPath); err != nil {
		os.Remove(c.tmpPath)
		return "", fmt.Errorf("renaming chunk file: %w", err)
	}
	if err := syncDir(filepath.Dir(c.finalPath)); err != nil {
		return "", fmt.Errorf("syncing cache directory: %w", err)
	}
	return c.finalPath, nil
}

// Abort drops a chunk that will not be committed.
func (c *File) Abort() {
	if c.done {
		return
	}
	c.done = true
	c.discard()
}

func (c *File) discard() {
	c.f.Close()
	os.Remove(c.tmpPath)
}

// Write stores already sorted records as a new chunk.
func (w *Writer) Write(records []ngram.Record) (string, error) {
	cf, err := w.Create()
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if err := cf.Append(r); err != nil {
			cf.Abort()
			return "", err
		}
	}
	return cf.Commit()
}

// WriteCounts sorts counts by n-gram and stores them as a new chunk.
func (w *Writer) WriteCounts(counts ngram.Counts) (string, error) {
	return w.Write(counts.Sorted())
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
