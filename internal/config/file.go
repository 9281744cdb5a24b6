package config

import (
	"maps"
	"time"

	"github.com/nao1215/wordcrawl/internal/model"
)

// File represents the structure of the .wordcrawl configuration file.
// Every field is optional; unset fields keep the value already in Config.
type File struct {
	// Search selects the crawl variants and limits.
	Search SearchSettings `yaml:"search,omitempty"`

	// Scoring tunes how pages are rated against the query.
	Scoring ScoringSettings `yaml:"scoring,omitempty"`

	// Fetch configures the HTTP client.
	Fetch FetchSettings `yaml:"fetch,omitempty"`

	// Seeds configures where start pages come from.
	Seeds SeedSettings `yaml:"seeds,omitempty"`

	// Resources replaces embedded data files.
	Resources ResourceSettings `yaml:"resources,omitempty"`

	// Output configures the archive, metrics, and batch runs.
	Output OutputSettings `yaml:"output,omitempty"`
}

// SearchSettings holds the crawl options of the configuration file.
type SearchSettings struct {
	Strategy        *model.Strategy       `yaml:"strategy,omitempty"`
	Classifier      *model.ClassifierKind `yaml:"classifier,omitempty"`
	Match           *model.MatchMode      `yaml:"match,omitempty"`
	Goal            *model.Goal           `yaml:"goal,omitempty"`
	ResultCount     int                   `yaml:"result_count,omitempty"`
	MaxWords        int                   `yaml:"max_words,omitempty"`
	MaxVisited      int                   `yaml:"max_visited,omitempty"`
	BeamWidth       int                   `yaml:"beam_width,omitempty"`
	BranchingFactor int                   `yaml:"branching_factor,omitempty"`
	MaxDepth        int                   `yaml:"max_depth,omitempty"`
	Workers         int                   `yaml:"workers,omitempty"`
	Deadline        time.Duration         `yaml:"deadline,omitempty"`

	// IgnorePatterns are URL path patterns never followed.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns restrict followed links to matching paths.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`
}

// ScoringSettings holds the page scoring options of the configuration file.
// Zero is a meaningful value for each of them, so unset is nil.
type ScoringSettings struct {
	Weights     WeightSettings `yaml:"weights,omitempty"`
	MaxDistance *int           `yaml:"max_distance,omitempty"`
	Window      *int           `yaml:"window,omitempty"`
}

// WeightSettings holds the per-field weights of the configuration file.
type WeightSettings struct {
	Metadata *float64 `yaml:"metadata,omitempty"`
	Title    *float64 `yaml:"title,omitempty"`
	Headings *float64 `yaml:"headings,omitempty"`
	Body     *float64 `yaml:"body,omitempty"`
}

// FetchSettings holds the HTTP client options of the configuration file.
type FetchSettings struct {
	UserAgent     string            `yaml:"user_agent,omitempty"`
	Timeout       time.Duration     `yaml:"timeout,omitempty"`
	CrawlDelay    *time.Duration    `yaml:"crawl_delay,omitempty"`
	MaxBodySize   int64             `yaml:"max_body_size,omitempty"`
	PerHostLimit  int               `yaml:"per_host_limit,omitempty"`
	RespectRobots *bool             `yaml:"respect_robots,omitempty"`
	Proxy         string            `yaml:"proxy,omitempty"`
	Cookie        string            `yaml:"cookie,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"`
}

// SeedSettings holds the seed source options of the configuration file.
type SeedSettings struct {
	// URLTemplate is the search listing URL containing {query}.
	URLTemplate string `yaml:"url_template,omitempty"`

	// Selector is the CSS selector of result links.
	Selector string `yaml:"selector,omitempty"`

	// Static replaces the listing with fixed start pages.
	Static []string `yaml:"static,omitempty"`
}

// ResourceSettings holds the data file paths of the configuration file.
type ResourceSettings struct {
	Stopwords   string `yaml:"stopwords,omitempty"`
	FuzzyRules  string `yaml:"fuzzy_rules,omitempty"`
	TrainingSet string `yaml:"training_set,omitempty"`
}

// OutputSettings holds the archive and export options of the configuration file.
type OutputSettings struct {
	ArchiveDir  string `yaml:"archive_dir,omitempty"`
	SaveRuns    *bool  `yaml:"save_runs,omitempty"`
	MetricsFile string `yaml:"metrics_file,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
}

// Apply copies every value set in the file into cfg.
// Headers are merged; keys in the file win.
func (cf *File) Apply(cfg *Config) {
	cf.applySearch(cfg)
	cf.applyScoring(cfg)
	cf.applyFetch(cfg)

	if cf.Seeds.URLTemplate != "" {
		cfg.SeedURLTemplate = cf.Seeds.URLTemplate
	}
	if cf.Seeds.Selector != "" {
		cfg.SeedSelector = cf.Seeds.Selector
	}
	if len(cf.Seeds.Static) > 0 {
		cfg.Seeds = cf.Seeds.Static
	}

	if cf.Resources.Stopwords != "" {
		cfg.StopwordsFile = cf.Resources.Stopwords
	}
	if cf.Resources.FuzzyRules != "" {
		cfg.FuzzyRulesFile = cf.Resources.FuzzyRules
	}
	if cf.Resources.TrainingSet != "" {
		cfg.TrainingSetFile = cf.Resources.TrainingSet
	}

	if cf.Output.ArchiveDir != "" {
		cfg.DBDir = cf.Output.ArchiveDir
	}
	if cf.Output.SaveRuns != nil {
		cfg.SaveToDB = *cf.Output.SaveRuns
	}
	if cf.Output.MetricsFile != "" {
		cfg.MetricsFile = cf.Output.MetricsFile
	}
	if cf.Output.BatchSize != 0 {
		cfg.BatchSize = cf.Output.BatchSize
	}
}

func (cf *File) applySearch(cfg *Config) {
	s := cf.Search
	if s.Strategy != nil {
		cfg.Strategy = *s.Strategy
	}
	if s.Classifier != nil {
		cfg.Classifier = *s.Classifier
	}
	if s.Match != nil {
		cfg.Match = *s.Match
	}
	if s.Goal != nil {
		cfg.Goal = *s.Goal
	}
	if s.ResultCount != 0 {
		cfg.ResultCount = s.ResultCount
	}
	if s.MaxWords != 0 {
		cfg.Limits.MaxWords = s.MaxWords
	}
	if s.MaxVisited != 0 {
		cfg.Limits.MaxVisited = s.MaxVisited
	}
	if s.BeamWidth != 0 {
		cfg.Limits.BeamWidth = s.BeamWidth
	}
	if s.BranchingFactor != 0 {
		cfg.Limits.BranchingFactor = s.BranchingFactor
	}
	if s.MaxDepth != 0 {
		cfg.Limits.MaxDepth = s.MaxDepth
	}
	if s.Workers != 0 {
		cfg.Workers = s.Workers
	}
	if s.Deadline != 0 {
		cfg.Deadline = s.Deadline
	}
	if len(s.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = s.IgnorePatterns
	}
	if len(s.FollowPatterns) > 0 {
		cfg.FollowPatterns = s.FollowPatterns
	}
}

func (cf *File) applyScoring(cfg *Config) {
	sc := cf.Scoring
	for _, w := range []struct {
		src *float64
		dst *float64
	}{
		{sc.Weights.Metadata, &cfg.Weights.Metadata},
		{sc.Weights.Title, &cfg.Weights.Title},
		{sc.Weights.Headings, &cfg.Weights.Headings},
		{sc.Weights.Body, &cfg.Weights.Body},
	} {
		if w.src != nil {
			*w.dst = *w.src
		}
	}
	if sc.MaxDistance != nil {
		cfg.MaxDistance = *sc.MaxDistance
	}
	if sc.Window != nil {
		cfg.Window = *sc.Window
	}
}

func (cf *File) applyFetch(cfg *Config) {
	f := cf.Fetch
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.CrawlDelay != nil {
		cfg.CrawlDelay = *f.CrawlDelay
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if f.PerHostLimit != 0 {
		cfg.PerHostLimit = f.PerHostLimit
	}
	if f.RespectRobots != nil {
		cfg.RespectRobots = *f.RespectRobots
	}
	if f.Proxy != "" {
		cfg.ProxyAddress = f.Proxy
	}
	if f.Cookie != "" {
		cfg.Cookie = f.Cookie
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		maps.Copy(cfg.Headers, f.Headers)
	}
}
