package merge

import (
	"container/heap"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/internal/ngram"
)

type cursor struct {
	rec    ngram.Record
	reader *chunk.Reader
	order  int
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].rec.Gram != h[j].rec.Gram {
		return h[i].rec.Gram < h[j].rec.Gram
	}
	return h[i].order < h[j].order
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeFiles streams the inputs through a min-heap keyed on each file's
// current record. Only one record per input is held in memory.
func mergeFiles(w *chunk.Writer, paths []string) (string, error) {
	readers := make([]*chunk.Reader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	h := make(cursorHeap, 0, len(paths))
	for i, p := range paths {
		r, err := chunk.OpenReader(p)
		if err != nil {
			return "", err
		}
		readers = append(readers, r)
		rec, ok, err := r.Next()
		if err != nil {
			return "", err
		}
		if ok {
			h = append(h, &cursor{rec: rec, reader: r, order: i})
		}
	}
	heap.Init(&h)

	out, err := w.Create()
	if err != nil {
		return "", err
	}
	var pending ngram.Record
	have := false
	for h.Len() > 0 {
		c := h[0]
		if have && c.rec.Gram == pending.Gram {
			pending.Count += c.rec.Count
		} else {
			if have {
				if err := out.Append(pending); err != nil {
					out.Abort()
					return "", err
				}
			}
			pending, have = c.rec, true
		}
		next, ok, err := c.reader.Next()
		if err != nil {
			out.Abort()
			return "", fmt.Errorf("advancing %s: %w", c.reader.Path(), err)
		}
		if ok {
			c.rec = next
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	if have {
		if err := out.Append(pending); err != nil {
			out.Abort()
			return "", err
		}
	}
	return out.Commit()
}
