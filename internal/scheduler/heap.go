package scheduler

import "container/heap"

type entry struct {
	job      Job
	callback Callback
	seq      int64
	index    int
}

// jobHeap implements heap.Interface ordered by (due, seq).
type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if !h[i].job.Due.Equal(h[j].job.Due) {
		return h[i].job.Due.Before(h[j].job.Due)
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func (h *jobHeap) peek() *entry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// removeIf drops every entry matching pred and restores heap order.
func (h *jobHeap) removeIf(pred func(*entry) bool) int {
	kept := (*h)[:0]
	removed := 0
	for _, e := range *h {
		if pred(e) {
			e.index = -1
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(*h); i++ {
		(*h)[i] = nil
	}
	*h = kept
	for i, e := range *h {
		e.index = i
	}
	heap.Init(h)
	return removed
}
