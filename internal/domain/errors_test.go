package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("run workflow: %w", NotFound("Workflow", "wf-1"))

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is(err, ErrNotFound) for %v", err)
	}
	if errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("NotFound must not match InvalidParameterValue")
	}
	if got := CodeOf(err); got != CodeNotFound {
		t.Errorf("CodeOf = %q, want %q", got, CodeNotFound)
	}
}

func TestError_Message(t *testing.T) {
	err := NotFound("Schedule", "abc")
	want := "NotFound: Schedule 'abc' not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}
