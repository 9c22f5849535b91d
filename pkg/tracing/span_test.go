package tracing

import (
	"context"
	"testing"
	"time"
)

func TestSpanTree(t *testing.T) {
	recorded := make(map[string]time.Duration)
	ctx, root := Start(context.Background(), "run", "run-42", func(name string, d time.Duration) {
		recorded[name] = d
	})

	_, extract := StartChild(ctx, "extract")
	extract.SetAttr("documents", 10)
	extract.End()
	mergeCtx, merge := StartChild(ctx, "merge")
	_, round := StartChild(mergeCtx, "round")
	round.End()
	merge.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	if merge.RunID != "run-42" || round.RunID != "run-42" {
		t.Errorf("run id not inherited: %q %q", merge.RunID, round.RunID)
	}
	for _, name := range []string{"run", "extract", "merge", "round"} {
		if _, ok := recorded[name]; !ok {
			t.Errorf("span %q not recorded", name)
		}
	}

	var visited []string
	var depths []int
	root.Walk(func(depth int, s *Span) {
		visited = append(visited, s.Name)
		depths = append(depths, depth)
	})
	wantNames := []string{"run", "extract", "merge", "round"}
	wantDepths := []int{0, 1, 1, 2}
	for i := range wantNames {
		if visited[i] != wantNames[i] || depths[i] != wantDepths[i] {
			t.Errorf("walk[%d] = %s@%d, want %s@%d", i, visited[i], depths[i], wantNames[i], wantDepths[i])
		}
	}
}

func TestStartChildWithoutParent(t *testing.T) {
	ctx, span := StartChild(context.Background(), "orphan")
	span.End()
	if FromContext(ctx) != span {
		t.Error("child span not stored in context")
	}
	if span.RunID != "" {
		t.Errorf("orphan RunID = %q", span.RunID)
	}
}
