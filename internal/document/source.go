package document

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/logger"
)

const (
	extJSONL = ".jsonl"
	extText  = ".txt"
)

// SkipFunc is told about every document dropped as malformed.
type SkipFunc func(path string, line int, err error)

// Options configures file-backed sources.
type Options struct {
	// Fields are decoded from JSONL records; other fields are ignored.
	Fields []string
	// TextField names the field that holds the lines of a .txt document.
	TextField string
	OnSkip    SkipFunc
}

// Open returns a Source for a single .jsonl file or for a folder, which is
// walked recursively for .jsonl and .txt files.
func Open(path string, opts Options) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "opening source %s: %v", path, err)
	}
	if opts.TextField == "" {
		opts.TextField = "text"
	}
	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(path), extText) {
			return &TextFile{Path: path, Field: opts.TextField}, nil
		}
		return &JSONLFile{Path: path, Fields: opts.Fields, OnSkip: opts.OnSkip}, nil
	}
	files, err := ListFolder(path)
	if err != nil {
		return nil, err
	}
	sources := make(multiSource, 0, len(files))
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), extText) {
			sources = append(sources, &TextFile{Path: f, Field: opts.TextField})
		} else {
			sources = append(sources, &JSONLFile{Path: f, Fields: opts.Fields, OnSkip: opts.OnSkip})
		}
	}
	logger.WithComponent("document-source").Info("source folder listed",
		"path", path,
		"files", len(files),
	)
	return sources, nil
}

// ListFolder returns every .jsonl and .txt file under root, sorted by path.
func ListFolder(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case extJSONL, extText:
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing source folder %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

type multiSource []Source

func (m multiSource) Each(ctx context.Context, fn Handler) error {
	for _, src := range m {
		if err := src.Each(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}

// JSONLFile reads one JSON object per line.
type JSONLFile struct {
	Path   string
	Fields []string
	OnSkip SkipFunc
}

func (j *JSONLFile) Each(ctx context.Context, fn Handler) error {
	f, err := os.Open(j.Path)
	if err != nil {
		return fmt.Errorf("opening jsonl file: %w", err)
	}
	defer f.Close()
	log := logger.WithComponent("jsonl-source").With("path", j.Path)

	r := bufio.NewReaderSize(f, 1<<20)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading %s: %w", j.Path, readErr)
		}
		if len(line) > 0 {
			lineNo++
			if err := j.handleLine(ctx, line, lineNo, fn, log); err != nil {
				return err
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

func (j *JSONLFile) handleLine(ctx context.Context, line []byte, lineNo int, fn Handler, log *slog.Logger) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	doc, err := DecodeJSON(line, j.Fields)
	if err != nil {
		log.Warn("skipping malformed document", "line", lineNo, "error", err)
		if j.OnSkip != nil {
			j.OnSkip(j.Path, lineNo, err)
		}
		return nil
	}
	return fn(ctx, doc)
}

// DecodeJSON decodes one JSON object into a Document holding only fields.
func DecodeJSON(data []byte, fields []string) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDocument, err)
	}
	return FromMap(raw, fields)
}

// TextFile is a single document whose lines are the lines of the file.
type TextFile struct {
	Path  string
	Field string
}

func (t *TextFile) Each(ctx context.Context, fn Handler) error {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return fmt.Errorf("reading text file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, Document{t.Field: SplitLines(string(data))})
}
