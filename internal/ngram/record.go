// Package ngram turns documents into n-gram occurrence counts and buffers
// those counts in memory until they are large enough to spill as a chunk.
package ngram

import "sort"

// Record is one aggregated n-gram and its occurrence count.
type Record struct {
	Gram  string
	Count uint64
}

// Counts maps an n-gram to its occurrence count.
type Counts map[string]uint64

// Merge adds every count in other into c.
func (c Counts) Merge(other Counts) {
	for gram, count := range other {
		c[gram] += count
	}
}

// Total returns the sum of all counts.
func (c Counts) Total() uint64 {
	var total uint64
	for _, count := range c {
		total += count
	}
	return total
}

// Sorted returns the entries ordered by n-gram, ascending byte-wise.
func (c Counts) Sorted() []Record {
	records := make([]Record, 0, len(c))
	for gram, count := range c {
		records = append(records, Record{Gram: gram, Count: count})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Gram < records[j].Gram
	})
	return records
}
