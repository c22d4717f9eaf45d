package common

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	trailingPunct  = regexp.MustCompile(`[?.!,;:]+$`)
)

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NormalizeText lowercases s, collapses whitespace, drops immediately
// repeated words ("go go goa" -> "go goa") and squeezes runs of three or
// more identical letters down to two ("hiiii" -> "hii").
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRuns.ReplaceAllString(s, " ")
	if s == "" {
		return s
	}

	words := strings.Split(s, " ")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(out) > 0 && out[len(out)-1] == w {
			continue
		}
		out = append(out, w)
	}
	s = strings.Join(out, " ")

	return squeezeLetters(s)
}

// TrimPunctuation strips trailing sentence punctuation.
func TrimPunctuation(s string) string {
	return trailingPunct.ReplaceAllString(strings.TrimSpace(s), "")
}

// TitleCase upper-cases the first letter of each word and lower-cases the rest.
func TitleCase(s string) string {
	// A Caser keeps state between calls and must not be shared.
	return cases.Title(language.Und).String(s)
}

func squeezeLetters(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	run := 0
	var prev rune
	for _, r := range s {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > 2 && unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
