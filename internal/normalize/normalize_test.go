package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"  ",
		"Trash Taxi of GA, LLC.",
		"Trash Taxi Of Gallc",
		"ACME   CORP",
		"gérard & fils s.a.",
		"Smith​ & Wesson",
		"A-1 Hauling",
	}
	for _, in := range inputs {
		once := Name(in)
		assert.Equal(t, once, Name(once), "normalize(normalize(%q))", in)
	}
}

func TestNameNoiseOnly(t *testing.T) {
	for _, in := range []string{"...", "!!!", "***", "​​", ". . .", "%%$#@"} {
		assert.Equal(t, "", Name(in), "input %q", in)
	}
}

func TestNameStripsInvisible(t *testing.T) {
	for _, r := range []rune{'\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad'} {
		in := "Acme" + string(r) + " Corp"
		assert.Equal(t, "Acme Corp", Name(in), "rune U+%04X", r)
	}
}

func TestNameCollapsesVariants(t *testing.T) {
	assert.Equal(t, Name("Trash Taxi Of GA LLC"), Name("Trash Taxi Of Gallc"))
}

func TestName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ga.", "Ga"},
		{"ACME CORP.", "Acme Corp"},
		{"acme   corp", "Acme Corp"},
		{"Smith & Sons, Inc.", "Smith & Sons Inc"},
		{"A-1  Hauling", "A-1 Hauling"},
		{"  Joe's Towing  ", "Joes Towing"},
		{"Café​ Au Lait", "Café Au Lait"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Name(tc.in), "input %q", tc.in)
	}
}
