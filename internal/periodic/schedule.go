package periodic

import (
	"container/heap"
	"time"
)

// entry is one pending run: the time the callback becomes due and its
// index in the worker's registry. Entries are never updated in place; a
// rescheduled callback is popped, recomputed, and pushed as a new entry.
type entry struct {
	due   time.Time
	index int
}

// entryHeap implements heap.Interface ordered by due time ascending,
// ties broken by the lower callback index. The tie-break keeps pop order
// deterministic when callbacks share a due time: earlier-registered wins.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].index < h[j].index
	}
	return h[i].due.Before(h[j].due)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// schedule is the priority queue ordering pending work by due time. It
// is not safe for concurrent use; the worker's lock guards it.
type schedule struct {
	ordering entryHeap
}

func newSchedule() *schedule {
	return &schedule{}
}

// push inserts a pending run.
func (s *schedule) push(due time.Time, index int) {
	heap.Push(&s.ordering, entry{due: due, index: index})
}

// pop removes and returns the entry with the earliest due time.
func (s *schedule) pop() (time.Time, int) {
	e := heap.Pop(&s.ordering).(entry)
	return e.due, e.index
}

// size returns the number of pending entries.
func (s *schedule) size() int {
	return len(s.ordering)
}
