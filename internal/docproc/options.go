package docproc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFilenameWeight makes one filename hit worth five content matches.
	DefaultFilenameWeight = 5.0

	// DefaultConfidenceThreshold is the confidence a winner must exceed to be
	// reported instead of CategoryUnknown.
	DefaultConfidenceThreshold = 0.1
)

// ClassifierOptions tunes the classifier. Both constants above are empirical;
// override them here rather than editing the defaults.
type ClassifierOptions struct {
	FilenameWeight      float64              `json:"filename_weight" yaml:"filename_weight"`
	ConfidenceThreshold float64              `json:"confidence_threshold" yaml:"confidence_threshold"`
	CategoryWeights     map[Category]float64 `json:"category_weights,omitempty" yaml:"category_weights,omitempty"`
}

// DefaultClassifierOptions returns the stock tuning.
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{
		FilenameWeight:      DefaultFilenameWeight,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// LoadClassifierOptions reads a YAML tuning file. Keys missing from the file
// keep their default values. An empty path yields the defaults.
func LoadClassifierOptions(path string) (ClassifierOptions, error) {
	opts := DefaultClassifierOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read classifier config %s: %w", path, err)
	}
	return ParseClassifierOptions(data)
}

// ParseClassifierOptions decodes YAML on top of the defaults.
func ParseClassifierOptions(data []byte) (ClassifierOptions, error) {
	opts := DefaultClassifierOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return DefaultClassifierOptions(), fmt.Errorf("parse classifier config: %w", err)
	}
	for c := range opts.CategoryWeights {
		if !c.Valid() {
			return DefaultClassifierOptions(), fmt.Errorf("parse classifier config: unknown category %q", c)
		}
	}
	if opts.FilenameWeight < 0 || opts.ConfidenceThreshold < 0 || opts.ConfidenceThreshold >= 1 {
		return DefaultClassifierOptions(), fmt.Errorf("parse classifier config: weights must be non-negative and threshold in [0,1)")
	}
	return opts, nil
}
