package crawler

import (
	"cmp"
	"container/heap"
	"slices"
	"sync"

	"github.com/nao1215/wordcrawl/internal/model"
)

// PriorityFrontier is the queue shared by BestFirst tasks. Pop returns the
// node with the highest relevance class; nodes of equal class leave in the
// order they were pushed.
type PriorityFrontier struct {
	mu    sync.Mutex
	items nodeHeap
	seq   uint64
}

// NewPriorityFrontier creates an empty frontier.
func NewPriorityFrontier() *PriorityFrontier {
	return &PriorityFrontier{}
}

// Push adds node.
func (f *PriorityFrontier) Push(node model.CrawlNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	heap.Push(&f.items, queuedNode{node: node, seq: f.seq})
}

// Pop removes the best node. It returns false when the frontier is empty.
func (f *PriorityFrontier) Pop() (model.CrawlNode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return model.CrawlNode{}, false
	}
	item, _ := heap.Pop(&f.items).(queuedNode)
	return item.node, true
}

// Len returns the number of queued nodes.
func (f *PriorityFrontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type queuedNode struct {
	node model.CrawlNode
	seq  uint64
}

// nodeHeap implements heap.Interface.
type nodeHeap []queuedNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].node.Class != h[j].node.Class {
		return h[i].node.Class > h[j].node.Class
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	item, _ := x.(queuedNode)
	*h = append(*h, item)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BeamFrontier is the ordered list shared by Beam tasks.
//
// Each Beam task evaluates all children of its node outside the lock and
// then merges the surviving beam in one call. Append and sort happen under a
// single lock hold, so another task never pops from a list that holds new
// children in unsorted positions. The sort is stable: among nodes of the same
// class, those merged earlier are expanded first, which keeps a run
// reproducible with one worker.
type BeamFrontier struct {
	mu    sync.Mutex
	nodes []model.CrawlNode
}

// NewBeamFrontier creates an empty frontier.
func NewBeamFrontier() *BeamFrontier {
	return &BeamFrontier{}
}

// Merge appends children and re-sorts the whole list by descending class in
// one critical section. Nodes of equal class keep their relative order.
func (f *BeamFrontier) Merge(children ...model.CrawlNode) {
	if len(children) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, children...)
	slices.SortStableFunc(f.nodes, byClassDesc)
}

// PopFront removes the first node. It returns false when the frontier is
// empty.
func (f *BeamFrontier) PopFront() (model.CrawlNode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.nodes) == 0 {
		return model.CrawlNode{}, false
	}
	node := f.nodes[0]
	f.nodes[0] = model.CrawlNode{}
	f.nodes = f.nodes[1:]
	return node, true
}

// Len returns the number of queued nodes.
func (f *BeamFrontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

func byClassDesc(a, b model.CrawlNode) int {
	return cmp.Compare(b.Class, a.Class)
}
