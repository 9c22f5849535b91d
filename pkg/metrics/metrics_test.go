package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocumentsTotal.Add(3)
	m.MergeGroupsTotal.WithLabelValues("merged").Inc()
	m.LiveChunks.Set(4)

	if got := testutil.ToFloat64(m.DocumentsTotal); got != 3 {
		t.Errorf("DocumentsTotal = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.MergeGroupsTotal.WithLabelValues("merged")); got != 1 {
		t.Errorf("merged groups = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"ngram_documents_total", "ngram_live_chunks", "ngram_merge_groups_total"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewNopIsolated(t *testing.T) {
	// Two private registries must not collide on metric names.
	a := NewNop()
	b := NewNop()
	a.ChunksWrittenTotal.Inc()
	if got := testutil.ToFloat64(b.ChunksWrittenTotal); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
