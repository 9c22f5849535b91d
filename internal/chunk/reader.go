package chunk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// Reader is a forward-only cursor over one chunk file. It holds at most one
// decoded record at a time.
type Reader struct {
	file  *os.File
	path  string
	dec   *msgpack.Decoder
	count uint64
	read  uint64
	last  string
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chunk file: %w", err)
	}
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading chunk header %s: %w", filepath.Base(path), err)
	}
	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("invalid chunk file %s: bad magic bytes %x", filepath.Base(path), magic)
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported chunk version %d in %s", version, filepath.Base(path))
	}
	return &Reader{
		file:  f,
		path:  path,
		dec:   msgpack.NewDecoder(bufio.NewReaderSize(f, bufferSize)),
		count: binary.LittleEndian.Uint64(header[8:16]),
	}, nil
}

// Next returns the next record, or ok=false once the chunk is exhausted.
// Keys that are not strictly increasing are reported as an invariant
// violation.
func (r *Reader) Next() (rec ngram.Record, ok bool, err error) {
	if r.read == r.count {
		return ngram.Record{}, false, nil
	}
	gram, err := r.dec.DecodeString()
	if err != nil {
		return ngram.Record{}, false, fmt.Errorf("decoding record %d of %s: %w", r.read, filepath.Base(r.path), err)
	}
	count, err := r.dec.DecodeUint64()
	if err != nil {
		return ngram.Record{}, false, fmt.Errorf("decoding count of %q in %s: %w", gram, filepath.Base(r.path), err)
	}
	if r.read > 0 && gram <= r.last {
		return ngram.Record{}, false, apperrors.Invariantf("chunk %s: key %q does not follow %q", filepath.Base(r.path), gram, r.last)
	}
	r.last = gram
	r.read++
	return ngram.Record{Gram: gram, Count: count}, true, nil
}

// Len returns the number of records in the chunk.
func (r *Reader) Len() uint64 {
	return r.count
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll loads a whole chunk into memory.
func ReadAll(path string) ([]ngram.Record, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	records := make([]ngram.Record, 0, r.Len())
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return records, nil
		}
		records = append(records, rec)
	}
}

// Each streams every record of a chunk to fn.
func Each(path string, fn func(ngram.Record) error) error {
	r, err := OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
