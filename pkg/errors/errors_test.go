package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid input", fmt.Errorf("loading: %w", ErrInvalidInput), ExitUsage},
		{"invariant", Invariantf("key %q out of order", "A"), ExitInvariant},
		{"wrapped invariant", fmt.Errorf("merge: %w", ErrInvariant), ExitInvariant},
		{"aborted", fmt.Errorf("round 3: %w", ErrAborted), ExitAborted},
		{"app error override", New(ErrSink, 7, "boom"), 7},
		{"other", errors.New("disk full"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("writing chunk: %w", Invariantf("duplicate key %q", "THE CAT"))
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected errors.Is(err, ErrInvariant)")
	}
	want := `writing chunk: invariant violated: duplicate key "THE CAT"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
