package output

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// CSVFile writes a header row followed by one row per n-gram. The file is
// written next to Path and renamed over it.
type CSVFile struct {
	Path string
}

func (c *CSVFile) Write(ctx context.Context, size int, rows []ngram.Record) error {
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "creating output directory: %v", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.Path)+"-*.tmp")
	if err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "creating output file: %v", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	buf := bufio.NewWriter(tmp)
	w := csv.NewWriter(buf)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	n := strconv.Itoa(size)
	for i, r := range rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := w.Write([]string{n, strconv.FormatUint(r.Count, 10), r.Gram}); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing csv: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path); err != nil {
		return apperrors.Newf(apperrors.ErrSink, apperrors.ExitFailure, "replacing %s: %v", c.Path, err)
	}
	committed = true
	return nil
}

func (c *CSVFile) Close() error {
	return nil
}
