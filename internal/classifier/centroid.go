package classifier

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/wordcrawl/internal/model"
)

//go:embed training.yaml
var defaultTrainingSet []byte

// trainingFile is the YAML layout of a labelled sample table.
// Each sample lists the meta, title, headings, and body scores.
type trainingFile struct {
	Samples map[string][][]float64 `yaml:"samples"`
}

// Centroid classifies a page by the closest class centroid in log1p space.
// Taking the logarithm keeps a single huge body count from outweighing the
// other fields.
type Centroid struct {
	centroids map[model.RelevanceClass][4]float64
}

// DefaultCentroid returns the classifier trained on the embedded sample table.
func DefaultCentroid() (*Centroid, error) {
	return LoadCentroid(bytes.NewReader(defaultTrainingSet))
}

// LoadCentroidFile trains a classifier from the YAML sample table at path.
func LoadCentroidFile(path string) (*Centroid, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open training set: %w", err)
	}
	defer f.Close()
	return LoadCentroid(f)
}

// LoadCentroid trains a classifier from a YAML sample table.
func LoadCentroid(r io.Reader) (*Centroid, error) {
	var file trainingFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse training set: %w", err)
	}

	samples := make(map[model.RelevanceClass][][4]float64)
	for label, rows := range file.Samples {
		class, err := model.ParseRelevanceClass(label)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if len(row) != 4 {
				return nil, fmt.Errorf("sample %v of class %s: expected 4 scores", row, label)
			}
			if err := validateScores(row...); err != nil {
				return nil, fmt.Errorf("sample of class %s: %w", label, err)
			}
			samples[class] = append(samples[class], [4]float64{row[0], row[1], row[2], row[3]})
		}
	}
	return NewCentroid(samples)
}

// NewCentroid trains a classifier from labelled samples. Every relevance
// class must have at least one sample.
func NewCentroid(samples map[model.RelevanceClass][][4]float64) (*Centroid, error) {
	c := &Centroid{centroids: make(map[model.RelevanceClass][4]float64)}
	for _, class := range model.RelevanceClasses() {
		rows := samples[class]
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyTraining, class)
		}
		var sum [4]float64
		for _, row := range rows {
			f := features(row)
			for i := range sum {
				sum[i] += f[i]
			}
		}
		for i := range sum {
			sum[i] /= float64(len(rows))
		}
		c.centroids[class] = sum
	}
	return c, nil
}

func features(scores [4]float64) [4]float64 {
	var f [4]float64
	for i, s := range scores {
		f[i] = math.Log1p(s)
	}
	return f
}

// Classify implements Classifier.
func (c *Centroid) Classify(meta, title, headings, body float64) (model.RelevanceClass, error) {
	if err := validateScores(meta, title, headings, body); err != nil {
		return model.RelevanceLow, err
	}
	f := features([4]float64{meta, title, headings, body})

	best := model.RelevanceLow
	bestDist := math.Inf(1)
	for _, class := range model.RelevanceClasses() {
		centroid := c.centroids[class]
		var dist float64
		for i := range f {
			d := f[i] - centroid[i]
			dist += d * d
		}
		if dist < bestDist {
			best, bestDist = class, dist
		}
	}
	return best, nil
}
