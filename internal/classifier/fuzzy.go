package classifier

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/wordcrawl/internal/model"
)

//go:embed fuzzy_rules.yaml
var defaultFuzzyRules []byte

// inputNames are the fuzzy input variables in Classify argument order.
var inputNames = [4]string{"meta", "title", "headings", "body"}

// trapezoid is a membership function rising on [a,b], flat on [b,c], falling on [c,d].
type trapezoid [4]float64

func (t trapezoid) membership(x float64) float64 {
	a, b, c, d := t[0], t[1], t[2], t[3]
	switch {
	case x < a || x > d:
		return 0
	case x >= b && x <= c:
		return 1
	case x < b:
		return (x - a) / (b - a)
	default:
		return (d - x) / (d - c)
	}
}

// ruleBaseFile is the YAML layout of a fuzzy rule base.
type ruleBaseFile struct {
	Inputs map[string]map[string][]float64 `yaml:"inputs"`
	Output struct {
		Min        float64              `yaml:"min"`
		Max        float64              `yaml:"max"`
		Step       float64              `yaml:"step"`
		Terms      map[string][]float64 `yaml:"terms"`
		Thresholds struct {
			High   float64 `yaml:"high"`
			Medium float64 `yaml:"medium"`
		} `yaml:"thresholds"`
	} `yaml:"output"`
	Rules []struct {
		All  []string `yaml:"all"`
		Any  []string `yaml:"any"`
		Then string   `yaml:"then"`
	} `yaml:"rules"`
}

// literal refers to one term of one input variable.
type literal struct {
	input int
	term  string
}

// condition is satisfied to the degree of its best alternative.
type condition []literal

type rule struct {
	conditions []condition
	any        bool
	then       model.RelevanceClass
}

// Fuzzy is a Mamdani fuzzy inference classifier.
type Fuzzy struct {
	inputs    [4]map[string]trapezoid
	outputs   map[model.RelevanceClass]trapezoid
	rules     []rule
	min       float64
	max       float64
	step      float64
	highCut   float64
	mediumCut float64
}

// DefaultFuzzy returns the classifier built from the embedded rule base.
func DefaultFuzzy() (*Fuzzy, error) {
	return LoadFuzzy(bytes.NewReader(defaultFuzzyRules))
}

// LoadFuzzyFile reads a YAML rule base from path.
func LoadFuzzyFile(path string) (*Fuzzy, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open fuzzy rule base: %w", err)
	}
	defer f.Close()
	return LoadFuzzy(f)
}

// LoadFuzzy parses a YAML rule base.
func LoadFuzzy(r io.Reader) (*Fuzzy, error) {
	var file ruleBaseFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse fuzzy rule base: %w", err)
	}

	fz := &Fuzzy{
		outputs:   make(map[model.RelevanceClass]trapezoid),
		min:       file.Output.Min,
		max:       file.Output.Max,
		step:      file.Output.Step,
		highCut:   file.Output.Thresholds.High,
		mediumCut: file.Output.Thresholds.Medium,
	}
	if fz.step <= 0 || fz.max <= fz.min {
		return nil, fmt.Errorf("%w: output range [%v, %v] step %v", ErrInvalidRuleBase, fz.min, fz.max, fz.step)
	}

	for i, name := range inputNames {
		terms, ok := file.Inputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing input %q", ErrInvalidRuleBase, name)
		}
		fz.inputs[i] = make(map[string]trapezoid, len(terms))
		for term, points := range terms {
			tz, err := toTrapezoid(points)
			if err != nil {
				return nil, fmt.Errorf("%w: input %s.%s: %v", ErrInvalidRuleBase, name, term, err)
			}
			fz.inputs[i][term] = tz
		}
	}

	for term, points := range file.Output.Terms {
		class, err := model.ParseRelevanceClass(term)
		if err != nil {
			return nil, fmt.Errorf("%w: output term: %v", ErrInvalidRuleBase, err)
		}
		tz, err := toTrapezoid(points)
		if err != nil {
			return nil, fmt.Errorf("%w: output %s: %v", ErrInvalidRuleBase, term, err)
		}
		fz.outputs[class] = tz
	}

	for i, r := range file.Rules {
		parsed, err := fz.parseRule(r.All, r.Any, r.Then)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalidRuleBase, i+1, err)
		}
		fz.rules = append(fz.rules, parsed)
	}
	if len(fz.rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidRuleBase)
	}
	return fz, nil
}

func toTrapezoid(points []float64) (trapezoid, error) {
	if len(points) != 4 {
		return trapezoid{}, fmt.Errorf("expected 4 points, got %d", len(points))
	}
	for i := 1; i < 4; i++ {
		if points[i] < points[i-1] {
			return trapezoid{}, fmt.Errorf("points %v are not ascending", points)
		}
	}
	return trapezoid{points[0], points[1], points[2], points[3]}, nil
}

func (fz *Fuzzy) parseRule(all, anyOf []string, then string) (rule, error) {
	if (len(all) == 0) == (len(anyOf) == 0) {
		return rule{}, fmt.Errorf("exactly one of all or any must be set")
	}
	class, err := model.ParseRelevanceClass(then)
	if err != nil {
		return rule{}, err
	}
	if _, ok := fz.outputs[class]; !ok {
		return rule{}, fmt.Errorf("output term %q is not defined", then)
	}

	r := rule{then: class, any: len(anyOf) > 0}
	exprs := all
	if r.any {
		exprs = anyOf
	}
	for _, expr := range exprs {
		cond, err := fz.parseCondition(expr)
		if err != nil {
			return rule{}, err
		}
		r.conditions = append(r.conditions, cond)
	}
	return r, nil
}

func (fz *Fuzzy) parseCondition(expr string) (condition, error) {
	var cond condition
	for _, alt := range strings.Split(expr, "|") {
		name, term, ok := strings.Cut(strings.TrimSpace(alt), ":")
		if !ok {
			return nil, fmt.Errorf("condition %q is not input:term", alt)
		}
		idx := -1
		for i, n := range inputNames {
			if n == name {
				idx = i
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown input %q", name)
		}
		if _, ok := fz.inputs[idx][term]; !ok {
			return nil, fmt.Errorf("unknown term %q of input %q", term, name)
		}
		cond = append(cond, literal{input: idx, term: term})
	}
	return cond, nil
}

// Score returns the defuzzified relevance score on the output range.
func (fz *Fuzzy) Score(meta, title, headings, body float64) (float64, error) {
	if err := validateScores(meta, title, headings, body); err != nil {
		return 0, err
	}
	values := [4]float64{meta, title, headings, body}

	activation := make(map[model.RelevanceClass]float64, len(fz.outputs))
	for _, r := range fz.rules {
		var degree float64
		for i, cond := range r.conditions {
			d := fz.conditionDegree(cond, values)
			switch {
			case i == 0:
				degree = d
			case r.any:
				degree = math.Max(degree, d)
			default:
				degree = math.Min(degree, d)
			}
		}
		activation[r.then] = math.Max(activation[r.then], degree)
	}

	var num, den float64
	steps := int(math.Round((fz.max - fz.min) / fz.step))
	for i := 0; i <= steps; i++ {
		x := fz.min + float64(i)*fz.step
		var mu float64
		for class, tz := range fz.outputs {
			mu = math.Max(mu, math.Min(activation[class], tz.membership(x)))
		}
		num += x * mu
		den += mu
	}
	if den == 0 {
		return 0, ErrNoRuleFired
	}
	return num / den, nil
}

func (fz *Fuzzy) conditionDegree(cond condition, values [4]float64) float64 {
	var degree float64
	for _, lit := range cond {
		degree = math.Max(degree, fz.inputs[lit.input][lit.term].membership(values[lit.input]))
	}
	return degree
}

// Classify implements Classifier. The rounded score is compared against the
// High and Medium thresholds of the rule base.
func (fz *Fuzzy) Classify(meta, title, headings, body float64) (model.RelevanceClass, error) {
	score, err := fz.Score(meta, title, headings, body)
	if err != nil {
		return model.RelevanceLow, err
	}
	rounded := math.Round(score)
	switch {
	case rounded >= fz.highCut:
		return model.RelevanceHigh, nil
	case rounded >= fz.mediumCut:
		return model.RelevanceMedium, nil
	default:
		return model.RelevanceLow, nil
	}
}
