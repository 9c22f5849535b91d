// Package document defines the Document handed to the n-gram extractor and
// the sources that produce documents from JSONL files, plain-text files and
// folders of either.
package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// Document maps a field name to its text lines. It is read-only once built.
type Document map[string][]string

// Handler receives each document produced by a Source.
type Handler func(ctx context.Context, doc Document) error

// Source produces a finite stream of documents. Order is not significant.
type Source interface {
	Each(ctx context.Context, fn Handler) error
}

// Slice is an in-memory Source.
type Slice []Document

func (s Slice) Each(ctx context.Context, fn Handler) error {
	for _, doc := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// ValidationError holds per-field type failures for one document.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, field := range names {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrMalformedDocument
}

// FromMap builds a Document from decoded JSON, keeping only the requested
// fields. A field may hold a list of strings (one per line) or a single
// string, which is split on newlines. Missing fields are skipped; any other
// value type makes the whole document invalid.
func FromMap(raw map[string]any, fields []string) (Document, error) {
	doc := make(Document, len(fields))
	errs := make(map[string]string)
	for _, field := range fields {
		value, ok := raw[field]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			doc[field] = SplitLines(v)
		case []string:
			doc[field] = v
		case []any:
			lines := make([]string, 0, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					errs[field] = fmt.Sprintf("line %d is %T, want string", i, item)
					break
				}
				lines = append(lines, s)
			}
			doc[field] = lines
		default:
			errs[field] = fmt.Sprintf("value is %T, want string or list of strings", value)
		}
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return doc, nil
}

// SplitLines splits text on \n, dropping a trailing \r from each line and a
// final empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
