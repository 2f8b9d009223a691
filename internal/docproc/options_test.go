package docproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassifierOptions(t *testing.T) {
	opts, err := ParseClassifierOptions([]byte(`
confidence_threshold: 0.25
category_weights:
  zuschlagskriterien: 2
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultFilenameWeight, opts.FilenameWeight)
	assert.Equal(t, 0.25, opts.ConfidenceThreshold)
	assert.Equal(t, map[Category]float64{CategoryZuschlagskriterien: 2}, opts.CategoryWeights)
}

func TestParseClassifierOptions_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown category": "category_weights:\n  angebot: 1\n",
		"threshold of one": "confidence_threshold: 1\n",
		"negative weight":  "filename_weight: -1\n",
		"not yaml":         "filename_weight: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			opts, err := ParseClassifierOptions([]byte(doc))
			assert.Error(t, err)
			assert.Equal(t, DefaultClassifierOptions(), opts)
		})
	}
}

func TestLoadClassifierOptions(t *testing.T) {
	opts, err := LoadClassifierOptions("")
	require.NoError(t, err)
	assert.Equal(t, DefaultClassifierOptions(), opts)

	path := filepath.Join(t.TempDir(), "classifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filename_weight: 3\n"), 0o600))

	opts, err = LoadClassifierOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, opts.FilenameWeight)

	_, err = LoadClassifierOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
