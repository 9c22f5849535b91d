package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("a", func(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} })
	c.Register("b", func(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusDegraded} })
	if got := c.Run(context.Background()).Status; got != StatusDegraded {
		t.Errorf("status = %s, want degraded", got)
	}
	c.Register("c", func(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusDown} })
	report := c.Run(context.Background())
	if report.Status != StatusDown || len(report.Components) != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestDirWritable(t *testing.T) {
	dir := t.TempDir()
	if got := DirWritable(dir)(context.Background()).Status; got != StatusUp {
		t.Errorf("existing dir = %s", got)
	}
	if got := DirWritable(filepath.Join(dir, "later"))(context.Background()).Status; got != StatusDegraded {
		t.Errorf("missing dir = %s", got)
	}
	if got := DirWritable(filepath.Join(dir, "no", "such"))(context.Background()).Status; got != StatusDown {
		t.Errorf("missing parent = %s", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("check left %d files", len(entries))
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("down", func(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusDown, Message: "gone"} })
	rec := httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Components["down"].Message != "gone" {
		t.Errorf("report = %+v", report)
	}
}
