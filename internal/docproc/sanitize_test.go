package docproc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"control characters", "Text\x00with\x1Fcontrol\x7Fcharacters.", "Textwithcontrolcharacters."},
		{"script block", "Vorher <SCRIPT type=\"x\">alert('x')\n</script > nachher", "Vorher nachher"},
		{"script blocks are non-greedy", "a<script>x</script>b<script>y</script>c", "abc"},
		{"tags", "<p>Leistung</p> <b>und</b> Preis", "Leistung und Preis"},
		{"whitespace runs", "  viel     Platz \t hier ", "viel Platz hier"},
		{"empty", "", ""},
		{"only markup", "<div><br/></div>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_ControlCharsRemovedBeforeTags(t *testing.T) {
	// A control byte inside a tag must not stop the tag from being removed.
	assert.Equal(t, "ab", Sanitize("a<b\x00r>b"))
}

func TestSanitize_LineBreaksSeparateWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line feed", "Zeile\neins", "Zeile eins"},
		{"crlf", "Technische\r\nSpezifikation", "Technische Spezifikation"},
		{"page separator", "Seite eins.\n\nSeite zwei.", "Seite eins. Seite zwei."},
		{"tab", "Pos.\t1", "Pos. 1"},
		{"form feed", "Ende\fAnfang", "Ende Anfang"},
		{"break inside tag", "a<b\nr>b", "ab"},
		{"other controls still dropped", "Leis\x01tung\x1B", "Leistung"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	in := strings.Repeat("ä", MaxTextLength+50)
	out := Sanitize(in)
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(out))
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"Text\x00with\x1Fcontrol\x7Fcharacters.",
		"<<b>b> a < b > c <script>x",
		"<scr<script></script>ipt>alert(1)</script>",
		"  Leistungsbeschreibung \n\n Seite 2 <i>kursiv</i>  ",
		"\u0085 führend   und   innen",
		strings.Repeat("Wort ", MaxTextLength/4),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}
