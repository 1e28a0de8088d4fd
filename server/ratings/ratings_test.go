package ratings

import "testing"

func TestComputeMPUpdatesWinLoss(t *testing.T) {
	newMP0, newMP1 := computeMPUpdates(1000, 1000, true)
	if newMP0 <= 1000 {
		t.Errorf("winner should gain: got %d", newMP0)
	}
	if newMP1 >= 1000 {
		t.Errorf("loser should lose: got %d", newMP1)
	}

	newMP0, newMP1 = computeMPUpdates(1000, 1000, false)
	if newMP0 >= 1000 {
		t.Errorf("loser (p0) should lose: got %d", newMP0)
	}
	if newMP1 <= 1000 {
		t.Errorf("winner (p1) should gain: got %d", newMP1)
	}
}

func TestComputeMPUpdatesUnderdogUpsetGainsMore(t *testing.T) {
	// p0 (800) beats p1 (1200): a bigger upset should net p0 a bigger gain
	// than an even match would.
	upsetMP0, _ := computeMPUpdates(800, 1200, true)
	evenMP0, _ := computeMPUpdates(1000, 1000, true)
	if upsetMP0-800 <= evenMP0-1000 {
		t.Errorf("expected the underdog's gain to exceed the even-match gain")
	}
}

func TestComputeMPUpdatesNeverNegative(t *testing.T) {
	_, newMP1 := computeMPUpdates(2000, 0, true)
	if newMP1 < 0 {
		t.Errorf("expected MindPoint to floor at 0, got %d", newMP1)
	}
}
