package crawler

import (
	"context"
	"slices"

	"github.com/nao1215/wordcrawl/internal/model"
)

// Strategy explores the graph below one seed. Run is called once per seed,
// each call on its own worker, and returns when its work is exhausted, the
// termination policy fails, or ctx is done.
type Strategy interface {
	Run(ctx context.Context, seed string)
}

// newStrategy returns the strategy selected by kind, wired to state.
// Queue-based strategies get one frontier shared by every seed task.
func newStrategy(kind model.Strategy, state *runState, limits model.Limits) Strategy {
	switch kind {
	case model.StrategyBeam:
		return &Beam{state: state, frontier: NewBeamFrontier(), width: limits.BeamWidth}
	case model.StrategyDepthFirst:
		return &DepthFirst{state: state, maxDepth: limits.MaxDepth}
	default:
		return &BestFirst{state: state, frontier: NewPriorityFrontier()}
	}
}

// BestFirst always expands the most relevant node known to any seed task.
type BestFirst struct {
	state    *runState
	frontier *PriorityFrontier
}

// Run evaluates seed, queues it when relevant, and then expands nodes from
// the shared frontier.
func (b *BestFirst) Run(ctx context.Context, seed string) {
	if node, ok := b.state.visit(ctx, seed, 0); ok {
		b.frontier.Push(node)
	}

	for ctx.Err() == nil && b.state.proceed() {
		node, ok := b.frontier.Pop()
		if !ok {
			return
		}
		for _, link := range node.Links {
			if ctx.Err() != nil || !b.state.proceed() {
				return
			}
			if child, ok := b.state.visit(ctx, link, node.Depth+1); ok {
				b.frontier.Push(child)
			}
		}
	}
}

// Beam evaluates every child of an expanded node and keeps only the best
// width of them.
type Beam struct {
	state    *runState
	frontier *BeamFrontier
	width    int
}

// Run evaluates seed, queues it when relevant, and then expands nodes from
// the front of the shared frontier.
func (b *Beam) Run(ctx context.Context, seed string) {
	if node, ok := b.state.visit(ctx, seed, 0); ok {
		b.frontier.Merge(node)
	}

	for ctx.Err() == nil && b.state.proceed() {
		node, ok := b.frontier.PopFront()
		if !ok {
			return
		}
		b.frontier.Merge(b.expand(ctx, node)...)
	}
}

// expand returns the best relevant children of node, at most width of them.
func (b *Beam) expand(ctx context.Context, node model.CrawlNode) []model.CrawlNode {
	children := make([]model.CrawlNode, 0)
	for _, link := range node.Links {
		if ctx.Err() != nil || !b.state.proceed() {
			break
		}
		if child, ok := b.state.visit(ctx, link, node.Depth+1); ok {
			children = append(children, child)
		}
	}
	slices.SortStableFunc(children, byClassDesc)
	if len(children) > b.width {
		children = children[:b.width]
	}
	return children
}

// DepthFirst follows each relevant link as soon as it is found. Every seed
// task walks its own subtree; only the VisitedSet and the index are shared.
type DepthFirst struct {
	state    *runState
	maxDepth int
}

type frame struct {
	node model.CrawlNode
	next int
}

// Run walks the subtree of seed depth-first. Nodes at maxDepth are indexed
// but not expanded.
func (d *DepthFirst) Run(ctx context.Context, seed string) {
	root, ok := d.state.visit(ctx, seed, 0)
	if !ok {
		return
	}

	stack := []frame{{node: root}}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}
		top := &stack[len(stack)-1]
		if top.next >= len(top.node.Links) {
			stack = stack[:len(stack)-1]
			continue
		}
		link := top.node.Links[top.next]
		top.next++
		depth := top.node.Depth + 1

		if !d.state.proceed() {
			return
		}
		child, ok := d.state.visit(ctx, link, depth)
		if !ok || child.Depth >= d.maxDepth {
			continue
		}
		stack = append(stack, frame{node: child})
	}
}
