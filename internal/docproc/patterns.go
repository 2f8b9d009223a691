package docproc

import "regexp"

// categoryPatterns is one row of the content pattern table.
type categoryPatterns struct {
	category Category
	weight   float64
	patterns []*regexp.Regexp
}

func ci(expr string) *regexp.Regexp { return regexp.MustCompile(`(?i)` + expr) }

// contentPatterns holds German procurement terminology per category, in
// declaration order. It is never mutated; weight overrides are applied by the
// Classifier at scoring time.
var contentPatterns = []categoryPatterns{
	{
		category: CategoryLeistungsbeschreibung,
		weight:   1.0,
		patterns: []*regexp.Regexp{
			ci(`leistungsbeschreibung`),
			ci(`leistungsverzeichnis`),
			ci(`technische\s+spezifikation`),
			ci(`pflichtenheft`),
			ci(`lastenheft`),
			ci(`leistungsumfang`),
			ci(`\bLV\b`),
		},
	},
	{
		category: CategoryEignungskriterien,
		weight:   1.0,
		patterns: []*regexp.Regexp{
			ci(`eignungskriterien`),
			ci(`eignungsnachweis`),
			ci(`pr(?:ä|ae)qualifikation`),
			ci(`qualifikation`),
			ci(`fachkunde`),
			ci(`leistungsf(?:ä|ae)higkeit`),
			ci(`zuverl(?:ä|ae)ssigkeit`),
			ci(`referenzen`),
		},
	},
	{
		category: CategoryZuschlagskriterien,
		weight:   1.0,
		patterns: []*regexp.Regexp{
			ci(`zuschlagskriterien`),
			ci(`bewertungsmatrix`),
			ci(`bewertungskriterien`),
			ci(`gewichtung`),
			ci(`wirtschaftlichste[sn]?\s+angebot`),
			ci(`preis-leistungs-verh(?:ä|ae)ltnis`),
			ci(`punkte(?:system|vergabe|skala)`),
		},
	},
}

// ContentScore is the raw content signal for one category.
type ContentScore struct {
	Score      float64
	MatchCount int
}

// ScoreContent counts non-overlapping pattern matches per category using the
// built-in weights. Every category is present in the result.
func ScoreContent(text string) map[Category]ContentScore {
	return scoreContent(text, nil)
}

func scoreContent(text string, weights map[Category]float64) map[Category]ContentScore {
	scores := make(map[Category]ContentScore, len(contentPatterns))
	for _, cp := range contentPatterns {
		weight := cp.weight
		if w, ok := weights[cp.category]; ok {
			weight = w
		}
		count := 0
		if text != "" {
			for _, re := range cp.patterns {
				count += len(re.FindAllStringIndex(text, -1))
			}
		}
		scores[cp.category] = ContentScore{
			Score:      float64(count) * weight,
			MatchCount: count,
		}
	}
	return scores
}
