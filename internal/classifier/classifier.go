package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/nao1215/wordcrawl/internal/model"
)

// Classifier errors.
var (
	// ErrNoRuleFired is returned when no fuzzy rule has a non-zero activation,
	// so the output cannot be defuzzified.
	ErrNoRuleFired = errors.New("no fuzzy rule fired")

	// ErrInvalidScore is returned for negative or NaN field scores.
	ErrInvalidScore = errors.New("invalid field score")

	// ErrEmptyTraining is returned when a relevance class has no samples.
	ErrEmptyTraining = errors.New("training set has a class without samples")

	// ErrInvalidRuleBase is returned when a fuzzy rule base cannot be used.
	ErrInvalidRuleBase = errors.New("invalid fuzzy rule base")
)

// Classifier assigns a relevance class to the weighted field scores of a page.
type Classifier interface {
	Classify(meta, title, headings, body float64) (model.RelevanceClass, error)
}

// Resources names optional files that replace the embedded classifier data.
// Empty paths select the embedded defaults.
type Resources struct {
	// FuzzyRules is a YAML fuzzy rule base.
	FuzzyRules string

	// TrainingSet is a YAML table of labelled samples.
	TrainingSet string
}

// New creates the classifier selected by kind.
func New(kind model.ClassifierKind, res Resources) (Classifier, error) {
	switch kind {
	case model.ClassifierFuzzy:
		if res.FuzzyRules != "" {
			return LoadFuzzyFile(res.FuzzyRules)
		}
		return DefaultFuzzy()
	case model.ClassifierCentroid:
		if res.TrainingSet != "" {
			return LoadCentroidFile(res.TrainingSet)
		}
		return DefaultCentroid()
	default:
		return nil, fmt.Errorf("%w: classifier %d", model.ErrUnknownVariant, int(kind))
	}
}

func validateScores(scores ...float64) error {
	for _, s := range scores {
		if math.IsNaN(s) || s < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidScore, s)
		}
	}
	return nil
}
