package scheduler

import (
	"testing"
	"time"
)

func TestPushPopOrdersByEndTime(t *testing.T) {
	t.Parallel()
	s := New()
	now := time.Now()
	s.Push("late", now.Add(3*time.Hour), 1)
	s.Push("early", now.Add(time.Hour), 2)
	s.Push("mid", now.Add(2*time.Hour), 3)

	order := []string{}
	for {
		id, ok := s.Pop()
		if !ok {
			break
		}
		order = append(order, id)
	}

	want := []string{"early", "mid", "late"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("pop order = %v, want %v", order, want)
		}
	}
}

func TestPushTieBreaksByDiscoveryOrder(t *testing.T) {
	t.Parallel()
	s := New()
	same := time.Now().Add(time.Hour)
	s.Push("second", same, 2)
	s.Push("first", same, 1)
	s.Push("third", same, 3)

	for _, want := range []string{"first", "second", "third"} {
		id, ok := s.Pop()
		if !ok || id != want {
			t.Fatalf("expected %s next, got %s (ok=%v)", want, id, ok)
		}
	}
}

func TestPushIsIdempotentPerToken(t *testing.T) {
	t.Parallel()
	s := New()
	now := time.Now()
	s.Push("tok", now.Add(time.Hour), 1)
	s.Push("tok", now.Add(30*time.Minute), 2)

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after duplicate push, got %d", s.Len())
	}
	id, _ := s.Peek()
	if id != "tok" {
		t.Fatalf("unexpected head: %s", id)
	}
}

func TestPopEmpty(t *testing.T) {
	t.Parallel()
	s := New()
	if _, ok := s.Pop(); ok {
		t.Fatalf("expected empty pop to report ok=false")
	}
}

func TestUpdatePriorityReordersHeap(t *testing.T) {
	t.Parallel()
	s := New()
	now := time.Now()
	s.Push("a", now.Add(time.Hour), 1)
	s.Push("b", now.Add(2*time.Hour), 2)

	if !s.UpdatePriority("b", now.Add(10*time.Minute)) {
		t.Fatalf("UpdatePriority should succeed for queued token")
	}
	id, _ := s.Peek()
	if id != "b" {
		t.Fatalf("expected b to be reprioritized to the front, got %s", id)
	}
}

func TestRemoveDropsQueuedMarket(t *testing.T) {
	t.Parallel()
	s := New()
	now := time.Now()
	s.Push("a", now.Add(time.Hour), 1)
	s.Push("b", now.Add(2*time.Hour), 2)

	if !s.Remove("a") {
		t.Fatalf("Remove should succeed for queued token")
	}
	if s.Contains("a") {
		t.Fatalf("removed token should no longer be contained")
	}
	id, _ := s.Peek()
	if id != "b" {
		t.Fatalf("expected b to remain, got %s", id)
	}
}

func TestRemoveUnknownTokenIsFalse(t *testing.T) {
	t.Parallel()
	s := New()
	if s.Remove("ghost") {
		t.Fatalf("removing an unqueued token should report false")
	}
}
