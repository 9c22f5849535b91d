package ngram

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
)

// asciiPunctuation is the set of characters replaced by spaces when
// punctuation is not kept.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Options control n-gram length and line normalisation.
type Options struct {
	Size      int
	KeepCase  bool
	KeepPunct bool
}

// Normalizer folds case and strips punctuation from a line before it is
// split into tokens. It holds a stateful caser and must not be shared
// between goroutines.
type Normalizer struct {
	keepCase  bool
	keepPunct bool
	upper     cases.Caser
}

func NewNormalizer(keepCase, keepPunct bool) *Normalizer {
	return &Normalizer{
		keepCase:  keepCase,
		keepPunct: keepPunct,
		upper:     cases.Upper(language.Und),
	}
}

func (n *Normalizer) Normalize(line string) string {
	if !n.keepCase {
		line = n.upper.String(line)
	}
	if !n.keepPunct {
		line = strings.Map(func(r rune) rune {
			if r < 0x80 && strings.ContainsRune(asciiPunctuation, r) {
				return ' '
			}
			return r
		}, line)
	}
	return line
}

// Tokens normalises line and splits it on whitespace.
func (n *Normalizer) Tokens(line string) []string {
	return strings.Fields(n.Normalize(line))
}

// Extractor counts the n-grams of selected document fields. Each worker
// needs its own Extractor.
type Extractor struct {
	fields []string
	size   int
	norm   *Normalizer
}

func NewExtractor(fields []string, opts Options) (*Extractor, error) {
	if len(fields) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "no fields to extract")
	}
	if opts.Size < 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "n-gram size must be >= 1, got %d", opts.Size)
	}
	return &Extractor{
		fields: append([]string(nil), fields...),
		size:   opts.Size,
		norm:   NewNormalizer(opts.KeepCase, opts.KeepPunct),
	}, nil
}

// Extract returns the n-gram counts of one document. Fields missing from
// the document are skipped, as are lines with fewer than size tokens.
func (e *Extractor) Extract(doc document.Document) Counts {
	counts := make(Counts)
	for _, field := range e.fields {
		lines, ok := doc[field]
		if !ok {
			continue
		}
		for _, line := range lines {
			tokens := e.norm.Tokens(line)
			for i := 0; i+e.size <= len(tokens); i++ {
				counts[strings.Join(tokens[i:i+e.size], " ")]++
			}
		}
	}
	return counts
}
