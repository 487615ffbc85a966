package scanner

import (
	"container/heap"
	"sync"
	"time"
)

// deadline is a single scheduled item
type deadline struct {
	id    uint64
	at    int64 // unix nanos
	index int   // index in the heap, maintained by heap package
}

// deadlineHeap is a min-heap of deadlines (part of heap.Interface)
type deadlineHeap []*deadline

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool { return h[i].at < h[j].at }

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	d := x.(*deadline)
	d.index = len(*h)
	*h = append(*h, d)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil // Avoid memory leak
	d.index = -1
	*h = old[:n-1]
	return d
}

// Schedule maps item ids to deadlines and hands out the ids whose deadline passed,
// earliest first. An id is scheduled at most once, adding it again moves its deadline.
//
// Thread-safety: This type is thread-safe.
type Schedule struct {
	mu   sync.Mutex
	heap deadlineHeap
	byID map[uint64]*deadline
}

// NewSchedule creates an empty schedule
func NewSchedule() *Schedule {
	return &Schedule{
		byID: make(map[uint64]*deadline),
	}
}

// Add schedules the id at the given time or moves its deadline if it is already scheduled
func (s *Schedule) Add(id uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.byID[id]; ok {
		d.at = at.UnixNano()
		heap.Fix(&s.heap, d.index)
		return
	}
	d := &deadline{id: id, at: at.UnixNano()}
	heap.Push(&s.heap, d)
	s.byID[id] = d
}

// Remove unschedules the id. It returns false if the id was not scheduled.
func (s *Schedule) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, d.index)
	delete(s.byID, id)
	return true
}

// Due removes and returns all ids whose deadline is not after now, earliest first
func (s *Schedule) Due(now time.Time) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := now.UnixNano()
	var due []uint64
	for len(s.heap) > 0 && s.heap[0].at <= limit {
		d := heap.Pop(&s.heap).(*deadline)
		delete(s.byID, d.id)
		due = append(due, d.id)
	}
	return due
}

// Next returns the earliest deadline
func (s *Schedule) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.heap) == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, s.heap[0].at), true
}

// Contains checks if the id is scheduled
func (s *Schedule) Contains(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of scheduled ids
func (s *Schedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}
