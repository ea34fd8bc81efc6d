package clock

import (
	"testing"
	"time"
)

func TestRealNowIsUTC(t *testing.T) {
	t.Parallel()

	c := New()
	if got := c.Now().Location(); got != time.UTC {
		t.Errorf("Now().Location() = %v, want UTC", got)
	}
}

func TestFakeAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if !f.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", f.Now(), start)
	}

	f.Advance(45 * time.Second)
	want := start.Add(45 * time.Second)
	if !f.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", f.Now(), want)
	}
}

func TestFakeSince(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	mark := f.Now()
	f.Advance(5 * time.Second)

	if got := f.Since(mark); got != 5*time.Second {
		t.Errorf("Since(mark) = %v, want 5s", got)
	}
}

func TestFakeSetNormalizesToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("TEST", 3600)
	f := NewFake(time.Now())
	f.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, loc))

	if got := f.Now().Location(); got != time.UTC {
		t.Errorf("Now().Location() = %v, want UTC", got)
	}
}
