package globaltime

import (
	"testing"
	"time"
)

func TestMockTimeAndAdvance(t *testing.T) {
	defer ResetTime()

	base := time.Date(2026, time.March, 14, 18, 30, 0, 0, time.FixedZone("CET", 3600))
	SetMockTime(base)
	if got := Now(); !got.Equal(base) {
		t.Fatalf("Now() = %s, want %s", got, base)
	}
	if got := UTC().Location(); got != time.UTC {
		t.Fatalf("UTC() location = %v, want UTC", got)
	}

	Advance(90 * time.Minute)
	if got := Since(base); got != 90*time.Minute {
		t.Fatalf("Since(base) = %s, want 1h30m", got)
	}

	SetMockTime(base)
	if got := Since(base); got != 0 {
		t.Fatalf("SetMockTime should clear the offset, got %s", got)
	}
}
