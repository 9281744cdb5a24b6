package crawler

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/page"
)

const (
	urlSeed = "https://site.test/seed"
	urlA    = "https://site.test/a"
	urlB    = "https://site.test/b"
	urlC    = "https://site.test/c"
	urlD    = "https://site.test/d"
	urlE    = "https://site.test/e"
	urlF    = "https://site.test/f"
)

// testGraph returns a small site:
//
//	seed (high) -> a (medium) -> d (high)
//	            -> b (low)    -> f (high)
//	            -> c (high)   -> e (medium)
func testGraph() (*graphFetcher, scoreFunc) {
	fetcher := newGraphFetcher(
		doc(urlSeed, "seedword", urlA, urlB, urlC),
		doc(urlA, "appleword", urlD),
		doc(urlB, "bananaword", urlF),
		doc(urlC, "cherryword", urlE),
		doc(urlD, "dateword"),
		doc(urlE, "elderword"),
		doc(urlF, "figword"),
	)
	scorer := byURL(map[string]model.RelevanceClass{
		urlSeed: model.RelevanceHigh,
		urlA:    model.RelevanceMedium,
		urlB:    model.RelevanceLow,
		urlC:    model.RelevanceHigh,
		urlD:    model.RelevanceHigh,
		urlE:    model.RelevanceMedium,
		urlF:    model.RelevanceHigh,
	})
	return fetcher, scorer
}

func optionsFor(strategy model.Strategy) model.RunOptions {
	opts := model.DefaultRunOptions()
	opts.Strategy = strategy
	return opts
}

func assertOrder(t *testing.T, got, expected []string) {
	t.Helper()
	if !slices.Equal(got, expected) {
		t.Errorf("fetch order = %v, expected %v", got, expected)
	}
}

func TestBestFirst(t *testing.T) {
	t.Parallel()

	fetcher, scorer := testGraph()
	state := newTestState(t, fetcher, scorer, optionsFor(model.StrategyBestFirst))
	newStrategy(model.StrategyBestFirst, state, model.DefaultLimits()).Run(context.Background(), urlSeed)

	// c (high) is expanded before a (medium) although a was queued first.
	assertOrder(t, fetcher.fetched(), []string{urlSeed, urlA, urlB, urlC, urlE, urlD})

	if state.index.Count("bananaword") != 0 {
		t.Error("low page was indexed")
	}
	if state.visited.Contains(urlF) {
		t.Error("child of a low page was visited")
	}
	for _, w := range []string{"seedword", "appleword", "cherryword", "dateword", "elderword"} {
		if state.index.Count(w) != 1 {
			t.Errorf("Count(%q) = %d, expected 1", w, state.index.Count(w))
		}
	}
	if got := state.indexed.Load(); got != 5 {
		t.Errorf("indexed pages = %d, expected 5", got)
	}
}

func TestBeam(t *testing.T) {
	t.Parallel()

	fetcher, scorer := testGraph()
	limits := model.DefaultLimits()
	limits.BeamWidth = 1
	state := newTestState(t, fetcher, scorer, optionsFor(model.StrategyBeam))
	newStrategy(model.StrategyBeam, state, limits).Run(context.Background(), urlSeed)

	// Every child of seed is evaluated, but only c survives the beam.
	assertOrder(t, fetcher.fetched(), []string{urlSeed, urlA, urlB, urlC, urlE})

	if state.visited.Contains(urlD) {
		t.Error("child of a pruned node was visited")
	}
	if state.index.Count("appleword") != 1 {
		t.Error("pruned children are still indexed when evaluated")
	}
}

func TestBeamKeepsAtMostWidthChildren(t *testing.T) {
	t.Parallel()

	links := []string{urlA, urlB, urlC, urlD, urlE}
	fetcher := newGraphFetcher(
		doc(urlSeed, "seedword", links...),
		doc(urlA, "aword"), doc(urlB, "bword"), doc(urlC, "cword"), doc(urlD, "dword"), doc(urlE, "eword"),
	)
	scorer := byURL(map[string]model.RelevanceClass{
		urlSeed: model.RelevanceHigh,
		urlA:    model.RelevanceMedium,
		urlB:    model.RelevanceHigh,
		urlC:    model.RelevanceMedium,
		urlD:    model.RelevanceHigh,
		urlE:    model.RelevanceHigh,
	})
	state := newTestState(t, fetcher, scorer, optionsFor(model.StrategyBeam))
	beam := &Beam{state: state, frontier: NewBeamFrontier(), width: 3}

	root, ok := state.visit(context.Background(), urlSeed, 0)
	if !ok {
		t.Fatal("seed should be relevant")
	}
	children := beam.expand(context.Background(), root)

	if len(children) != 3 {
		t.Fatalf("expand() kept %d children, expected 3", len(children))
	}
	got := []string{children[0].URL, children[1].URL, children[2].URL}
	assertOrder(t, got, []string{urlB, urlD, urlE})
}

func TestDepthFirst(t *testing.T) {
	t.Parallel()

	t.Run("follows each relevant link before its siblings", func(t *testing.T) {
		t.Parallel()

		fetcher, scorer := testGraph()
		state := newTestState(t, fetcher, scorer, optionsFor(model.StrategyDepthFirst))
		newStrategy(model.StrategyDepthFirst, state, model.DefaultLimits()).Run(context.Background(), urlSeed)

		assertOrder(t, fetcher.fetched(), []string{urlSeed, urlA, urlD, urlB, urlC, urlE})
		if state.visited.Contains(urlF) {
			t.Error("child of a low page was visited")
		}
	})

	t.Run("max depth stops expansion", func(t *testing.T) {
		t.Parallel()

		fetcher, scorer := testGraph()
		limits := model.DefaultLimits()
		limits.MaxDepth = 1
		state := newTestState(t, fetcher, scorer, optionsFor(model.StrategyDepthFirst))
		newStrategy(model.StrategyDepthFirst, state, limits).Run(context.Background(), urlSeed)

		assertOrder(t, fetcher.fetched(), []string{urlSeed, urlA, urlB, urlC})
		if state.index.Count("appleword") != 1 {
			t.Error("node at max depth should still be indexed")
		}
	})

	t.Run("cyclic graph terminates", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(
			doc(urlA, "aword", urlB),
			doc(urlB, "bword", urlA, urlC),
			doc(urlC, "cword", urlA, urlB),
		)
		scorer := byURL(map[string]model.RelevanceClass{
			urlA: model.RelevanceHigh, urlB: model.RelevanceHigh, urlC: model.RelevanceHigh,
		})
		state := newTestState(t, fetcher, scorer, optionsFor(model.StrategyDepthFirst))
		newStrategy(model.StrategyDepthFirst, state, model.DefaultLimits()).Run(context.Background(), urlA)

		assertOrder(t, fetcher.fetched(), []string{urlA, urlB, urlC})
	})
}

func TestLowSeedIsNotExpanded(t *testing.T) {
	t.Parallel()

	for _, strategy := range []model.Strategy{model.StrategyBestFirst, model.StrategyBeam, model.StrategyDepthFirst} {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()

			fetcher := newGraphFetcher(doc(urlSeed, "seedword", urlA), doc(urlA, "aword"))
			scorer := byURL(map[string]model.RelevanceClass{urlA: model.RelevanceHigh})
			state := newTestState(t, fetcher, scorer, optionsFor(strategy))
			newStrategy(strategy, state, model.DefaultLimits()).Run(context.Background(), urlSeed)

			assertOrder(t, fetcher.fetched(), []string{urlSeed})
			if state.index.Size() != 0 {
				t.Errorf("index size = %d, expected 0", state.index.Size())
			}
		})
	}
}

func TestMaxVisitedGoal(t *testing.T) {
	t.Parallel()

	chain := []string{urlSeed, urlA, urlB, urlC, urlD, urlE, urlF}
	for _, strategy := range []model.Strategy{model.StrategyBestFirst, model.StrategyBeam, model.StrategyDepthFirst} {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()

			pages := make([]*page.Document, 0, len(chain))
			classes := make(map[string]model.RelevanceClass)
			for i, u := range chain {
				var links []string
				if i+1 < len(chain) {
					links = []string{chain[i+1]}
				}
				pages = append(pages, doc(u, "word", links...))
				classes[u] = model.RelevanceHigh
			}
			fetcher := newGraphFetcher(pages...)

			opts := optionsFor(strategy)
			opts.Goal = model.GoalMaxVisited
			opts.Limits.MaxVisited = 2
			state := newTestState(t, fetcher, byURL(classes), opts)
			newStrategy(strategy, state, opts.Limits).Run(context.Background(), urlSeed)

			// Expansion stops once the visited count exceeds the limit.
			if got := state.visited.Len(); got != 3 {
				t.Errorf("visited = %d, expected 3", got)
			}
		})
	}
}

func TestMaxWordsGoal(t *testing.T) {
	t.Parallel()

	fetcher := newGraphFetcher(
		doc(urlSeed, "one two three", urlA, urlB),
		doc(urlA, "four five", urlC),
		doc(urlB, "six"),
		doc(urlC, "seven"),
	)
	scorer := byURL(map[string]model.RelevanceClass{
		urlSeed: model.RelevanceHigh, urlA: model.RelevanceHigh, urlB: model.RelevanceHigh, urlC: model.RelevanceHigh,
	})
	opts := optionsFor(model.StrategyDepthFirst)
	opts.Limits.MaxWords = 4
	state := newTestState(t, fetcher, scorer, opts)
	newStrategy(model.StrategyDepthFirst, state, opts.Limits).Run(context.Background(), urlSeed)

	assertOrder(t, fetcher.fetched(), []string{urlSeed, urlA})
	if got := state.index.Size(); got != 5 {
		t.Errorf("index size = %d, expected 5", got)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("best term text is indexed once", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(doc(urlA, "unused"))
		scorer := scoreFunc(func(_ *page.Document, term string) (model.ScoredPage, error) {
			switch term {
			case "first":
				return model.ScoredPage{Body: "mediumtext", Class: model.RelevanceMedium}, nil
			case "second":
				return model.ScoredPage{Body: "hightext", Class: model.RelevanceHigh}, nil
			default:
				return model.ScoredPage{Body: "othertext", Class: model.RelevanceHigh}, nil
			}
		})
		state := newTestState(t, fetcher, scorer, model.DefaultRunOptions(), "first", "second", "third")

		node, ok := state.visit(context.Background(), urlA, 0)
		if !ok {
			t.Fatal("page should be relevant")
		}
		if node.Class != model.RelevanceHigh {
			t.Errorf("Class = %v, expected high", node.Class)
		}
		if state.index.Count("hightext") != 1 {
			t.Error("text of the first highest-scoring term should be indexed")
		}
		if state.index.Count("mediumtext") != 0 || state.index.Count("othertext") != 0 {
			t.Error("texts of other terms should not be indexed")
		}
	})

	t.Run("classifier error counts as low", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(doc(urlA, "aword", urlB))
		scorer := scoreFunc(func(*page.Document, string) (model.ScoredPage, error) {
			return model.ScoredPage{Class: model.RelevanceLow}, errors.New("classifier down")
		})
		state := newTestState(t, fetcher, scorer, model.DefaultRunOptions())

		if _, ok := state.visit(context.Background(), urlA, 0); ok {
			t.Error("page should not be relevant")
		}
		if got := state.counts()[model.RelevanceLow]; got != 1 {
			t.Errorf("low count = %d, expected 1", got)
		}
	})

	t.Run("unknown class counts as low", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(doc(urlA, "aword"))
		scorer := scoreFunc(func(*page.Document, string) (model.ScoredPage, error) {
			return model.ScoredPage{Body: "aword", Class: model.RelevanceHigh + 7}, nil
		})
		state := newTestState(t, fetcher, scorer, model.DefaultRunOptions())

		if _, ok := state.visit(context.Background(), urlA, 0); ok {
			t.Error("page with an unknown class should not be relevant")
		}
		if got := state.counts()[model.RelevanceLow]; got != 1 {
			t.Errorf("low count = %d, expected 1", got)
		}
	})

	t.Run("fetch error skips the page", func(t *testing.T) {
		t.Parallel()

		state := newTestState(t, newGraphFetcher(), byURL(nil), model.DefaultRunOptions())
		if _, ok := state.visit(context.Background(), urlA, 0); ok {
			t.Error("missing page should be skipped")
		}
		if !state.visited.Contains(urlA) {
			t.Error("skipped page should stay claimed")
		}
		total := 0
		for _, n := range state.counts() {
			total += n
		}
		if total != 0 {
			t.Errorf("fetch failures should not be classified, got %d", total)
		}
	})

	t.Run("already claimed URL is not fetched again", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(doc(urlA, "aword"))
		state := newTestState(t, fetcher, byURL(map[string]model.RelevanceClass{urlA: model.RelevanceHigh}), model.DefaultRunOptions())
		state.visit(context.Background(), urlA, 0)
		if _, ok := state.visit(context.Background(), urlA+"#again", 0); ok {
			t.Error("second visit should be refused")
		}
		if len(fetcher.fetched()) != 1 {
			t.Errorf("fetched %d times, expected 1", len(fetcher.fetched()))
		}
	})

	t.Run("identical content is indexed once", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(doc(urlA, "mirrorword"), doc(urlB, "mirrorword"))
		scorer := byURL(map[string]model.RelevanceClass{urlA: model.RelevanceHigh, urlB: model.RelevanceHigh})
		state := newTestState(t, fetcher, scorer, model.DefaultRunOptions())

		_, okA := state.visit(context.Background(), urlA, 0)
		_, okB := state.visit(context.Background(), urlB, 0)
		if !okA || !okB {
			t.Fatal("both pages are relevant and expandable")
		}
		if got := state.index.Count("mirrorword"); got != 1 {
			t.Errorf("Count = %d, expected 1", got)
		}
		if got := state.indexed.Load(); got != 1 {
			t.Errorf("indexed pages = %d, expected 1", got)
		}
	})

	t.Run("filtered link is not claimed", func(t *testing.T) {
		t.Parallel()

		fetcher := newGraphFetcher(doc(urlA, "aword"))
		state := newTestState(t, fetcher, byURL(nil), model.DefaultRunOptions())
		state.filter = LinkFilter{Ignore: []string{"/a"}}

		if _, ok := state.visit(context.Background(), urlA, 0); ok {
			t.Error("filtered link should be refused")
		}
		if state.visited.Len() != 0 || len(fetcher.fetched()) != 0 {
			t.Error("filtered link should be neither claimed nor fetched")
		}
	})
}

func TestStrategiesStopOnCancel(t *testing.T) {
	t.Parallel()

	for _, strategy := range []model.Strategy{model.StrategyBestFirst, model.StrategyBeam, model.StrategyDepthFirst} {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()

			fetcher, scorer := testGraph()
			state := newTestState(t, fetcher, scorer, optionsFor(strategy))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			newStrategy(strategy, state, model.DefaultLimits()).Run(ctx, urlSeed)

			if got := len(fetcher.fetched()); got > 1 {
				t.Errorf("fetched %d pages after cancellation, expected at most the seed", got)
			}
		})
	}
}
