package ngram

// Accumulator folds per-document counts into one table and hands the table
// out as a chunk once it holds more than threshold distinct n-grams. It is
// owned by a single goroutine.
type Accumulator struct {
	table     Counts
	threshold int
	chunks    int
}

func NewAccumulator(threshold int) *Accumulator {
	if threshold < 1 {
		threshold = 1
	}
	return &Accumulator{
		table:     make(Counts),
		threshold: threshold,
	}
}

// Add merges counts into the running table.
func (a *Accumulator) Add(counts Counts) {
	a.table.Merge(counts)
}

// Drain returns the table and starts a new one when the table has grown
// past the threshold.
func (a *Accumulator) Drain() (Counts, bool) {
	if len(a.table) <= a.threshold {
		return nil, false
	}
	return a.take(), true
}

// Flush returns whatever is left at the end of the stream.
func (a *Accumulator) Flush() (Counts, bool) {
	if len(a.table) == 0 {
		return nil, false
	}
	return a.take(), true
}

func (a *Accumulator) take() Counts {
	out := a.table
	a.table = make(Counts)
	a.chunks++
	return out
}

// Len returns the number of distinct n-grams buffered.
func (a *Accumulator) Len() int {
	return len(a.table)
}

// Chunks returns how many tables have been handed out.
func (a *Accumulator) Chunks() int {
	return a.chunks
}
