// Package scheduler implements the priority queue that decides which
// Eligible market the execution pipeline services next (spec §5, C7):
// soonest end_time first, ties broken by discovery order so that scanning
// never starves a market that has been waiting longest.
//
// container/heap is stdlib, not an ecosystem dependency — no repo in the
// retrieval pool implements a priority queue, so there is no library
// convention to follow here (recorded in DESIGN.md).
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Item is one scheduled market. Priority is purely a function of EndTime
// and Seq; nothing about Item mutates after Push except via UpdatePriority.
type Item struct {
	TokenID string
	EndTime time.Time
	Seq     uint64 // discovery order, used as the tie-break
	index   int    // maintained by container/heap, do not set directly
}

// innerHeap implements container/heap.Interface. Earlier EndTime sorts
// first; equal EndTime breaks ties by lower Seq (earlier discovery).
type innerHeap []*Item

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool {
	if h[i].EndTime.Equal(h[j].EndTime) {
		return h[i].Seq < h[j].Seq
	}
	return h[i].EndTime.Before(h[j].EndTime)
}

func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *innerHeap) Push(x any) {
	item := x.(*Item)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Scheduler is a concurrency-safe min-heap of pending markets, ordered by
// end_time (spec §5 "Priority Scheduler"). One market appears at most once;
// Push on an already-queued token_id is a no-op, matching the fact that
// check_transitions only moves a market into Eligible from outside the
// queue (the FSM owns the single source of truth for whether a market is
// currently eligible).
type Scheduler struct {
	mu    sync.Mutex
	h     innerHeap
	index map[string]*Item
}

// New creates an empty scheduler.
func New() *Scheduler {
	s := &Scheduler{index: make(map[string]*Item)}
	heap.Init(&s.h)
	return s
}

// Push enqueues tokenID with the given end_time and discovery sequence. A
// token already present is left untouched — callers wanting to change a
// market's priority must call UpdatePriority explicitly.
func (s *Scheduler) Push(tokenID string, endTime time.Time, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[tokenID]; ok {
		return
	}
	item := &Item{TokenID: tokenID, EndTime: endTime, Seq: seq}
	heap.Push(&s.h, item)
	s.index[tokenID] = item
}

// Pop removes and returns the highest-priority (soonest end_time) token_id.
// The second return value is false if the queue is empty.
func (s *Scheduler) Pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.h.Len() == 0 {
		return "", false
	}
	item := heap.Pop(&s.h).(*Item)
	delete(s.index, item.TokenID)
	return item.TokenID, true
}

// Peek returns the highest-priority token_id without removing it.
func (s *Scheduler) Peek() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.h.Len() == 0 {
		return "", false
	}
	return s.h[0].TokenID, true
}

// UpdatePriority changes a queued market's end_time (e.g. if the market
// source revises it) and re-heapifies.
func (s *Scheduler) UpdatePriority(tokenID string, endTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.index[tokenID]
	if !ok {
		return false
	}
	item.EndTime = endTime
	heap.Fix(&s.h, item.index)
	return true
}

// Remove drops tokenID from the queue if present, e.g. when the FSM has
// moved it out of Eligible before the scheduler got to it.
func (s *Scheduler) Remove(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.index[tokenID]
	if !ok {
		return false
	}
	heap.Remove(&s.h, item.index)
	delete(s.index, tokenID)
	return true
}

// Len returns the number of markets currently queued.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Len()
}

// Contains reports whether tokenID is currently queued.
func (s *Scheduler) Contains(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[tokenID]
	return ok
}
