package search

import (
	"container/heap"

	"github.com/LyricZhao/DLMO/internal/trace"
)

// scheduleQueue is a priority queue keeping the preferred schedule on top.
type scheduleQueue struct {
	cmp   Comparator
	items []*trace.Schedule
}

func newScheduleQueue(cmp Comparator) *scheduleQueue {
	return &scheduleQueue{cmp: cmp}
}

func (q *scheduleQueue) Len() int           { return len(q.items) }
func (q *scheduleQueue) Less(i, j int) bool { return q.cmp.Less(q.items[i], q.items[j]) }
func (q *scheduleQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *scheduleQueue) Push(x interface{}) {
	q.items = append(q.items, x.(*trace.Schedule))
}

func (q *scheduleQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return x
}

func (q *scheduleQueue) push(s *trace.Schedule) { heap.Push(q, s) }

func (q *scheduleQueue) pop() *trace.Schedule {
	return heap.Pop(q).(*trace.Schedule)
}
