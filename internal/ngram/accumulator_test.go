package ngram

import (
	"reflect"
	"testing"
)

func TestAccumulatorDrainsPastThreshold(t *testing.T) {
	acc := NewAccumulator(2)

	acc.Add(Counts{"A": 1, "B": 1})
	if _, ok := acc.Drain(); ok {
		t.Fatal("drained at threshold, want only when exceeded")
	}
	acc.Add(Counts{"A": 2})
	if acc.Len() != 2 {
		t.Fatalf("Len = %d, want 2", acc.Len())
	}
	acc.Add(Counts{"C": 1})
	chunk, ok := acc.Drain()
	if !ok {
		t.Fatal("expected a chunk once threshold exceeded")
	}
	if want := (Counts{"A": 3, "B": 1, "C": 1}); !reflect.DeepEqual(chunk, want) {
		t.Errorf("chunk = %v, want %v", chunk, want)
	}
	if acc.Len() != 0 {
		t.Errorf("Len after drain = %d", acc.Len())
	}

	acc.Add(Counts{"D": 4})
	rest, ok := acc.Flush()
	if !ok || !reflect.DeepEqual(rest, Counts{"D": 4}) {
		t.Errorf("Flush = %v, %v", rest, ok)
	}
	if _, ok := acc.Flush(); ok {
		t.Error("Flush on empty table returned a chunk")
	}
	if acc.Chunks() != 2 {
		t.Errorf("Chunks = %d, want 2", acc.Chunks())
	}
}

func TestCountsSorted(t *testing.T) {
	c := Counts{"B A": 1, "A": 3, "A B": 2, "a": 1}
	got := c.Sorted()
	want := []Record{{Gram: "A", Count: 3}, {Gram: "A B", Count: 2}, {Gram: "B A", Count: 1}, {Gram: "a", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted = %v, want %v", got, want)
	}
	if c.Total() != 7 {
		t.Errorf("Total = %d", c.Total())
	}
}
