package series

import (
	"testing"
	"time"
)

func TestInMemoryRematchStoreMatchesSecondRequest(t *testing.T) {
	s := newInMemoryRematchStore(0)

	matched, err := s.TakeOrRegister("s1", "p1", "p2")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if matched {
		t.Fatalf("expected first request to wait")
	}

	matched, err = s.TakeOrRegister("s1", "p2", "p1")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if !matched {
		t.Fatalf("expected second request to match")
	}

	// entry consumed: a third request starts a fresh wait
	matched, err = s.TakeOrRegister("s1", "p1", "p2")
	if err != nil {
		t.Fatalf("third request: %v", err)
	}
	if matched {
		t.Fatalf("expected the consumed entry to require a fresh pair")
	}
}

func TestInMemoryRematchStoreExpiresStaleEntry(t *testing.T) {
	s := newInMemoryRematchStore(60)
	clock := time.Now()
	s.now = func() time.Time { return clock }

	if _, err := s.TakeOrRegister("s1", "p1", "p2"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	clock = clock.Add(61 * time.Second)
	matched, err := s.TakeOrRegister("s1", "p2", "p1")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if matched {
		t.Fatalf("expected the stale entry to have expired instead of matching")
	}
}
