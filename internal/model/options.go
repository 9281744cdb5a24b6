package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVariant is returned when a run option name does not match any
// known variant.
var ErrUnknownVariant = errors.New("unknown option variant")

// Strategy selects how the link graph is explored from each seed.
type Strategy int

const (
	// StrategyBestFirst expands the most relevant node found so far, using a
	// priority queue shared by every seed task.
	StrategyBestFirst Strategy = iota + 1

	// StrategyDepthFirst follows each relevant link immediately before moving
	// on to its siblings.
	StrategyDepthFirst

	// StrategyBeam keeps only the best BeamWidth children of each expanded node.
	StrategyBeam
)

// String returns the canonical name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyBestFirst:
		return "best-first"
	case StrategyDepthFirst:
		return "dfs"
	case StrategyBeam:
		return "beam"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a name (or the legacy numeric code) into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch normalizeVariant(s) {
	case "best-first", "bestfirst", "best", "1":
		return StrategyBestFirst, nil
	case "dfs", "depth-first", "depthfirst", "2":
		return StrategyDepthFirst, nil
	case "beam", "3":
		return StrategyBeam, nil
	default:
		return 0, fmt.Errorf("%w: strategy %q", ErrUnknownVariant, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ClassifierKind selects the relevance classifier implementation.
type ClassifierKind int

const (
	// ClassifierFuzzy is a rule-based fuzzy inference classifier.
	ClassifierFuzzy ClassifierKind = iota + 1

	// ClassifierCentroid is a nearest-centroid classifier trained on
	// labelled score samples.
	ClassifierCentroid
)

// String returns the canonical name of the classifier kind.
func (k ClassifierKind) String() string {
	switch k {
	case ClassifierFuzzy:
		return "fuzzy"
	case ClassifierCentroid:
		return "centroid"
	default:
		return "unknown"
	}
}

// ParseClassifierKind converts a name into a ClassifierKind.
func ParseClassifierKind(s string) (ClassifierKind, error) {
	switch normalizeVariant(s) {
	case "fuzzy", "fuzzy-logic":
		return ClassifierFuzzy, nil
	case "centroid", "nearest-centroid", "trained":
		return ClassifierCentroid, nil
	default:
		return 0, fmt.Errorf("%w: classifier %q", ErrUnknownVariant, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ClassifierKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ClassifierKind) UnmarshalText(text []byte) error {
	v, err := ParseClassifierKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MatchMode decides when a word of a page counts as an occurrence of a
// query term.
type MatchMode int

const (
	// MatchExact compares words case-insensitively.
	MatchExact MatchMode = iota + 1

	// MatchLevenshtein accepts words within a small edit distance of the term.
	MatchLevenshtein
)

// String returns the canonical name of the match mode.
func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchLevenshtein:
		return "levenshtein"
	default:
		return "unknown"
	}
}

// ParseMatchMode converts a name (or the legacy numeric code) into a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch normalizeVariant(s) {
	case "exact", "frequency", "1":
		return MatchExact, nil
	case "levenshtein", "fuzzy", "2":
		return MatchLevenshtein, nil
	default:
		return 0, fmt.Errorf("%w: match mode %q", ErrUnknownVariant, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MatchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MatchMode) UnmarshalText(text []byte) error {
	v, err := ParseMatchMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Goal selects the quantity that ends a crawl.
type Goal int

const (
	// GoalMaxWords stops once the index holds more than MaxWords distinct words.
	GoalMaxWords Goal = iota + 1

	// GoalMaxVisited stops once more than MaxVisited URLs have been claimed.
	GoalMaxVisited
)

// String returns the canonical name of the goal.
func (g Goal) String() string {
	switch g {
	case GoalMaxWords:
		return "max-words"
	case GoalMaxVisited:
		return "max-visited"
	default:
		return "unknown"
	}
}

// ParseGoal converts a name (or the legacy numeric code) into a Goal.
func ParseGoal(s string) (Goal, error) {
	switch normalizeVariant(s) {
	case "max-words", "words", "1":
		return GoalMaxWords, nil
	case "max-visited", "visited", "pages", "2":
		return GoalMaxVisited, nil
	default:
		return 0, fmt.Errorf("%w: goal %q", ErrUnknownVariant, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Goal) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Goal) UnmarshalText(text []byte) error {
	v, err := ParseGoal(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

func normalizeVariant(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "_", "-")
}

// Default limits used when nothing else is configured.
const (
	DefaultMaxWords        = 5500
	DefaultMaxVisited      = 80
	DefaultBeamWidth       = 3
	DefaultBranchingFactor = 12
	DefaultMaxDepth        = 64
	DefaultResultCount     = 30
)

// Limits holds the numeric bounds of a crawl.
type Limits struct {
	// MaxWords is the distinct-word threshold for GoalMaxWords.
	MaxWords int `json:"max_words" yaml:"max_words"`

	// MaxVisited is the claimed-URL threshold for GoalMaxVisited.
	MaxVisited int `json:"max_visited" yaml:"max_visited"`

	// BeamWidth is the number of children a Beam expansion keeps.
	BeamWidth int `json:"beam_width" yaml:"beam_width"`

	// BranchingFactor is the maximum number of seeds.
	BranchingFactor int `json:"branching_factor" yaml:"branching_factor"`

	// MaxDepth bounds the depth-first work stack.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
}

// DefaultLimits returns the standard crawl bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxWords:        DefaultMaxWords,
		MaxVisited:      DefaultMaxVisited,
		BeamWidth:       DefaultBeamWidth,
		BranchingFactor: DefaultBranchingFactor,
		MaxDepth:        DefaultMaxDepth,
	}
}

// RunOptions is the resolved configuration of one crawl.
// It is built once before the crawl starts and shared read-only by all workers.
type RunOptions struct {
	Strategy    Strategy       `json:"strategy" yaml:"strategy"`
	Classifier  ClassifierKind `json:"classifier" yaml:"classifier"`
	Match       MatchMode      `json:"match" yaml:"match"`
	Goal        Goal           `json:"goal" yaml:"goal"`
	ResultCount int            `json:"result_count" yaml:"result_count"`
	Limits      Limits         `json:"limits" yaml:"limits"`
}

// DefaultRunOptions returns options for a best-first, fuzzy, exact-match crawl
// bounded by the distinct-word goal.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Strategy:    StrategyBestFirst,
		Classifier:  ClassifierFuzzy,
		Match:       MatchExact,
		Goal:        GoalMaxWords,
		ResultCount: DefaultResultCount,
		Limits:      DefaultLimits(),
	}
}

// Validate reports the first invalid field.
func (o RunOptions) Validate() error {
	if o.Strategy.String() == "unknown" {
		return fmt.Errorf("%w: strategy %d", ErrUnknownVariant, int(o.Strategy))
	}
	if o.Classifier.String() == "unknown" {
		return fmt.Errorf("%w: classifier %d", ErrUnknownVariant, int(o.Classifier))
	}
	if o.Match.String() == "unknown" {
		return fmt.Errorf("%w: match mode %d", ErrUnknownVariant, int(o.Match))
	}
	if o.Goal.String() == "unknown" {
		return fmt.Errorf("%w: goal %d", ErrUnknownVariant, int(o.Goal))
	}
	if o.ResultCount < 1 {
		return errors.New("result count must be at least 1")
	}
	if o.Limits.MaxWords < 1 || o.Limits.MaxVisited < 1 {
		return errors.New("crawl limits must be at least 1")
	}
	if o.Limits.BeamWidth < 1 {
		return errors.New("beam width must be at least 1")
	}
	if o.Limits.BranchingFactor < 1 {
		return errors.New("branching factor must be at least 1")
	}
	if o.Limits.MaxDepth < 1 {
		return errors.New("max depth must be at least 1")
	}
	return nil
}
