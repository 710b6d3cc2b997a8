// Package normalize canonicalizes free-text organization names into stable
// comparison keys. OCR output renders the same legal entity with inconsistent
// capitalization, punctuation and invisible characters; records are indexed
// by the normalized form so that exact-match lookups still succeed.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reNonAllowed = regexp.MustCompile(`[^\p{L}\p{N}&\- ]`)
)

// overrides is a closed list of known equivalent spellings the generic
// algorithm cannot collapse, checked after generic normalization. First match
// wins and the substitution is applied once, no cascading.
var overrides = []struct {
	variant   string
	canonical string
}{
	{"Trash Taxi Of Gallc", "Trash Taxi Of Ga Llc"},
	{"Waste Management Inc", "Waste Management Of Ga Inc"},
	{"Republic Services Llc", "Republic Services Inc"},
}

// Name canonicalizes a raw organization name. It is a pure function of its
// input, idempotent, and never fails: blank or garbage input yields "".
func Name(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = stripInvisible(s)
	s = strings.ReplaceAll(s, ".", "")
	s = reSpaces.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, "")
	s = titleCase(strings.ToLower(strings.TrimSpace(s)))

	for _, o := range overrides {
		if s == o.variant {
			return o.canonical
		}
	}
	return s
}

// stripInvisible removes zero-width and other format characters that OCR
// occasionally embeds inside names.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, s)
}

func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
