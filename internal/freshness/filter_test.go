package freshness

import (
	"testing"
	"time"

	"horse.fit/allball/internal/normalize"
)

func itemAged(now time.Time, age time.Duration) normalize.CanonicalItem {
	ts := now.Add(-age)
	return normalize.CanonicalItem{Title: "Headline", PublishedAt: &ts}
}

func TestStrictBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 7, 18, 0, 0, 0, time.UTC)
	f := New(3, Strict)

	if !f.Keep(itemAged(now, 2*time.Hour+59*time.Minute), now) {
		t.Fatalf("2h59m old item should be kept")
	}
	if f.Keep(itemAged(now, 3*time.Hour+time.Minute), now) {
		t.Fatalf("3h01m old item should be dropped in strict mode")
	}
	if f.Keep(normalize.CanonicalItem{Title: "Undated"}, now) {
		t.Fatalf("undated item should be dropped in strict mode")
	}
	if !f.Keep(itemAged(now, -30*time.Minute), now) {
		t.Fatalf("future-dated item should be kept")
	}
}

func TestAssumeFreshBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 7, 18, 0, 0, 0, time.UTC)
	f := New(3, AssumeFresh)

	if !f.Keep(itemAged(now, 2*time.Hour+59*time.Minute), now) {
		t.Fatalf("2h59m old item should be kept")
	}
	if !f.Keep(itemAged(now, 3*time.Hour+time.Minute), now) {
		t.Fatalf("3h01m old item should be kept in assume-fresh mode")
	}
	if !f.Keep(normalize.CanonicalItem{Title: "Undated"}, now) {
		t.Fatalf("undated item should be kept in assume-fresh mode")
	}
	if got := f.Classify(itemAged(now, 3*time.Hour+time.Minute), now); got != Stale {
		t.Fatalf("Classify() = %v, want Stale", got)
	}
}

func TestZeroMaxAgeDisablesAgeCheck(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 7, 18, 0, 0, 0, time.UTC)
	f := New(0, Strict)
	if !f.Keep(itemAged(now, 240*time.Hour), now) {
		t.Fatalf("age check should be disabled")
	}
	if f.Keep(normalize.CanonicalItem{Title: "Undated"}, now) {
		t.Fatalf("strict mode still needs a timestamp")
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Policy{"": Strict, "drop": Strict, "Assume_Fresh": AssumeFresh, "assume-fresh": AssumeFresh} {
		got, err := ParsePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParsePolicy("maybe"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
