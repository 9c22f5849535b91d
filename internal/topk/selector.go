// Package topk keeps the n-grams with the K highest counts from a single
// pass over aggregated records. Every n-gram tied with the lowest retained
// count is kept, so the result can hold more than K rows.
package topk

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
)

// Selector buckets retained n-grams by count. floor is the smallest
// retained count once the selector holds at least K n-grams.
type Selector struct {
	k        int
	buckets  map[uint64][]string
	retained int
	floor    uint64
	seen     uint64
}

func NewSelector(k int) *Selector {
	if k < 1 {
		k = 1
	}
	return &Selector{
		k:       k,
		buckets: make(map[uint64][]string),
		floor:   math.MaxUint64,
	}
}

// Add offers one aggregated record. Each n-gram must be offered once.
func (s *Selector) Add(r ngram.Record) {
	s.seen++
	switch {
	case s.retained < s.k:
		s.add(r)
		if r.Count < s.floor {
			s.floor = r.Count
		}
	case r.Count == s.floor:
		s.add(r)
	case r.Count > s.floor:
		s.add(r)
		if evict := len(s.buckets[s.floor]); s.retained-evict >= s.k {
			delete(s.buckets, s.floor)
			s.retained -= evict
			s.floor = s.minKey()
		}
	}
}

func (s *Selector) add(r ngram.Record) {
	s.buckets[r.Count] = append(s.buckets[r.Count], r.Gram)
	s.retained++
}

func (s *Selector) minKey() uint64 {
	lowest := uint64(math.MaxUint64)
	for count := range s.buckets {
		if count < lowest {
			lowest = count
		}
	}
	return lowest
}

// Len returns the number of n-grams currently retained.
func (s *Selector) Len() int {
	return s.retained
}

// Floor returns the lowest retained count, or 0 when nothing is retained.
func (s *Selector) Floor() uint64 {
	if s.retained == 0 {
		return 0
	}
	return s.floor
}

// Seen returns how many records were offered.
func (s *Selector) Seen() uint64 {
	return s.seen
}

// Results returns the retained n-grams ordered by count descending, then by
// n-gram ascending.
func (s *Selector) Results() []ngram.Record {
	out := make([]ngram.Record, 0, s.retained)
	for count, grams := range s.buckets {
		for _, g := range grams {
			out = append(out, ngram.Record{Gram: g, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Gram < out[j].Gram
	})
	return out
}
