// Package analysis turns free text into the normalised term sets used by the
// index and the keyword strategy.
//
// A term is a run of at least two word characters (letters, digits or
// underscore), lower cased, with ё folded to е and reduced to its Snowball
// base form. Cyrillic words use the Russian stemmer, Latin words the English
// one. Terms containing digits or mixed scripts are kept as they are.
package analysis

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinTermLength is the shortest run of word characters kept as a term.
const MinTermLength = 2

var lower = cases.Lower(language.Und)

var yoFolder = strings.NewReplacer("ё", "е", "Ё", "е")

// Words splits text into lower-cased word runs of at least MinTermLength
// runes, in order of appearance. Duplicates are kept.
func Words(text string) []string {
	text = yoFolder.Replace(lower.String(text))

	var words []string
	var b strings.Builder
	n := 0
	flush := func() {
		if n >= MinTermLength {
			words = append(words, b.String())
		}
		b.Reset()
		n = 0
	}
	for _, r := range text {
		if isWordRune(r) {
			b.WriteRune(r)
			n++
			continue
		}
		flush()
	}
	flush()
	return words
}

// Normalize returns the sorted, deduplicated set of base forms found in text.
func Normalize(text string) []string {
	words := Words(text)
	if len(words) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		t := Stem(w)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Stem reduces a single lower-cased word to its base form.
func Stem(word string) string {
	lang := stemLanguage(word)
	if lang == "" {
		return word
	}
	stemmed, err := snowball.Stem(word, lang, true)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}

func stemLanguage(word string) string {
	cyrillic, latin := false, false
	for _, r := range word {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic = true
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			latin = true
		default:
			return ""
		}
	}
	switch {
	case cyrillic && !latin:
		return "russian"
	case latin && !cyrillic:
		return "english"
	default:
		return ""
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
