package apperr

import (
	"errors"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := New(NotFound, "series %s missing", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is to match ErrNotFound sentinel")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Fatalf("did not expect match against a different kind")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(New(InvalidActor, "nope")) != InvalidActor {
		t.Fatalf("expected InvalidActor")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for non-apperr error")
	}
}
