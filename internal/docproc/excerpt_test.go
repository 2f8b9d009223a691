package docproc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"first three long sentences",
			"Kurz. Dies ist der erste lange Satz! Ist das der zweite lange Satz? Hier folgt der dritte lange Satz. Der vierte lange Satz fehlt.",
			"Dies ist der erste lange Satz. Ist das der zweite lange Satz. Hier folgt der dritte lange Satz",
		},
		{"nothing long enough", "Ja. Nein. Vielleicht.", ""},
		{"no terminator", "Ein Text ohne Satzzeichen am Ende", "Ein Text ohne Satzzeichen am Ende"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.in))
		})
	}
}

func TestExcerpt_Truncates(t *testing.T) {
	long := strings.Repeat("Vergabeunterlagen ", 40) + "."
	out := Excerpt(long)

	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, 303, utf8.RuneCountInString(out))
}

func TestExcerpt_LengthBound(t *testing.T) {
	inputs := []string{
		strings.Repeat("ä", 1000),
		strings.Repeat("Ein ausreichend langer Satz. ", 50),
		strings.Repeat("x", 299) + ". " + strings.Repeat("y", 299),
	}
	for _, in := range inputs {
		assert.LessOrEqual(t, utf8.RuneCountInString(Excerpt(in)), 303)
	}
}
