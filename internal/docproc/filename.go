package docproc

import "strings"

// filenameKeywords maps each category to the substrings that mark it in a
// filename. Order follows Categories().
var filenameKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryLeistungsbeschreibung, []string{"leistung", "lv", "spezifikation"}},
	{CategoryEignungskriterien, []string{"eignung", "qualifikation", "nachweis"}},
	{CategoryZuschlagskriterien, []string{"zuschlag", "bewertung", "kriterien"}},
}

// ScoreFilename returns 1.0 for every category whose keywords occur in name.
// Categories without a hit are absent from the map.
func ScoreFilename(name string) map[Category]float64 {
	lower := strings.ToLower(name)
	scores := make(map[Category]float64, len(filenameKeywords))
	for _, fk := range filenameKeywords {
		for _, kw := range fk.keywords {
			if strings.Contains(lower, kw) {
				scores[fk.category] = 1.0
				break
			}
		}
	}
	return scores
}
