package docproc

import (
	"math"
	"sort"
	"unicode/utf8"
)

// Classifier combines filename heuristics with content pattern scores.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	opts ClassifierOptions
}

// NewClassifier returns a Classifier using opts as given.
func NewClassifier(opts ClassifierOptions) *Classifier {
	return &Classifier{opts: opts}
}

// Classify decides the document category for a filename and its text.
func (c *Classifier) Classify(filename, text string) ClassificationResult {
	filenameScores := ScoreFilename(filename)
	contentScores := scoreContent(text, c.opts.CategoryWeights)

	chars := utf8.RuneCountInString(text)
	kilochars := float64(chars) / 1000
	totalMatches := 0

	type ranked struct {
		category Category
		score    float64
	}
	ranking := make([]ranked, 0, len(contentPatterns))
	scores := make(map[Category]CategoryScore, len(contentPatterns))

	for _, cat := range Categories() {
		cs := contentScores[cat]
		final := cs.Score + filenameScores[cat]*c.opts.FilenameWeight

		var density float64
		if chars > 0 {
			density = float64(cs.MatchCount) / kilochars
		}

		scores[cat] = CategoryScore{Score: final, MatchCount: cs.MatchCount, Density: density}
		ranking = append(ranking, ranked{category: cat, score: final})
		totalMatches += cs.MatchCount
	}

	// Stable so equal scores keep declaration order.
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].score > ranking[j].score })
	winner := ranking[0]

	var confidence float64
	if totalMatches > 0 {
		confidence = math.Min(winner.score/float64(totalMatches), 1.0)
	}

	category := CategoryUnknown
	if confidence > c.opts.ConfidenceThreshold {
		category = winner.category
	}

	return ClassificationResult{
		Category:   category,
		Confidence: confidence,
		Scores:     scores,
	}
}

// EstimatePageCount guesses a page count from text length at 2000
// characters per page. Used when the extractor's count is not available.
func EstimatePageCount(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 2000))
}
