// Package crawler explores the link graph rooted at a set of seed pages and
// feeds the text of relevant pages into a word index.
//
// # Architecture
//
// A Coordinator obtains the seeds for a query, builds the shared state of one
// run (VisitedSet, index.WordIndex and, for the queue-based strategies, a
// frontier) and starts one Strategy task per seed on a bounded worker pool.
//
// Every strategy evaluates nodes the same way: the page is fetched, scored
// against each query term, and kept only if at least one term classifies it
// Medium or better. A kept page is indexed once, using the text extracted for
// the best-scoring term, and its links become candidates for expansion.
//
// # Strategies
//
//   - BestFirst: one priority frontier shared by all seed tasks, highest
//     relevance class first.
//   - Beam: every child of a node is evaluated, the best BeamWidth are merged
//     into a shared frontier under one lock.
//   - DepthFirst: each seed task walks its own subtree with an explicit stack
//     bounded by MaxDepth.
//
// # Termination
//
// Expansion continues while the Terminator accepts the current index size or
// visited count. The check happens before each URL is claimed, so a run can
// overshoot its limit by at most the number of workers that passed the check
// concurrently.
//
// # Usage
//
//	c, err := crawler.NewCoordinator(listing, fetchClient, pageScorer, opts,
//		crawler.WithDeadline(2*time.Minute))
//	report, err := c.Run(ctx, model.NewQuery("golang generics"))
package crawler
