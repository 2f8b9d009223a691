package services

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/vergabeflow/internal/docproc"
	"github.com/Lllllllleong/vergabeflow/internal/models"
)

// MaxPromptExcerpts caps how many reference excerpts go into one prompt.
const MaxPromptExcerpts = 5

var documentInstructions = map[docproc.Category]string{
	docproc.CategoryLeistungsbeschreibung: `Erstelle eine vollständige Leistungsbeschreibung.
Gliedere in: 1. Ausgangslage und Ziel, 2. Leistungsumfang, 3. Technische und fachliche Anforderungen,
4. Termine und Fristen, 5. Abnahme und Dokumentation, 6. Mitwirkungspflichten des Auftraggebers.`,
	docproc.CategoryEignungskriterien: `Erstelle die Eignungskriterien.
Gliedere in: 1. Befähigung und Erlaubnis zur Berufsausübung, 2. Wirtschaftliche und finanzielle Leistungsfähigkeit,
3. Technische und berufliche Leistungsfähigkeit (Referenzen, Personal), 4. Geforderte Nachweise und Eigenerklärungen.`,
	docproc.CategoryZuschlagskriterien: `Erstelle die Zuschlagskriterien.
Gliedere in: 1. Wertungsmethode, 2. Kriterien mit Gewichtung in Prozent (Summe 100 %),
3. Bewertungsmatrix mit Punkteskala, 4. Ermittlung des wirtschaftlichsten Angebots.`,
}

// BuildPrompt assembles the user prompt asking for one document of a
// request. References of the requested type come first; at most
// MaxPromptExcerpts excerpts are included.
func BuildPrompt(req models.ProcurementRequest, docType docproc.Category, refs []models.ReferenceDocument) (string, error) {
	instructions, ok := documentInstructions[docType]
	if !ok {
		return "", fmt.Errorf("no prompt template for document type %q", docType)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Auftrag: %s\n\n", models.DocumentTitle(docType))
	b.WriteString(instructions)
	b.WriteString("\n\n## Beschaffungsvorhaben\n\n")
	fmt.Fprintf(&b, "Titel: %s\n", req.Title)
	if req.Budget != "" {
		fmt.Fprintf(&b, "Budget: %s\n", req.Budget)
	}
	if req.Deadline != "" {
		fmt.Fprintf(&b, "Frist: %s\n", req.Deadline)
	}
	fmt.Fprintf(&b, "\nBeschreibung:\n%s\n", req.Description)

	selected := selectExcerpts(docType, refs)
	if len(selected) > 0 {
		b.WriteString("\n## Auszüge aus Referenzdokumenten\n")
		for _, ref := range selected {
			fmt.Fprintf(&b, "\n### %s (%s)\n%s\n", ref.Filename, ref.DocumentType, ref.Excerpt)
		}
	}
	return b.String(), nil
}

func selectExcerpts(docType docproc.Category, refs []models.ReferenceDocument) []models.ReferenceDocument {
	var matching, other []models.ReferenceDocument
	for _, ref := range refs {
		if strings.TrimSpace(ref.Excerpt) == "" {
			continue
		}
		if ref.DocumentType == string(docType) {
			matching = append(matching, ref)
		} else {
			other = append(other, ref)
		}
	}
	selected := append(matching, other...)
	if len(selected) > MaxPromptExcerpts {
		selected = selected[:MaxPromptExcerpts]
	}
	return selected
}
