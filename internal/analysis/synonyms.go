package analysis

import "sort"

// Synonyms maps a normalised term to the normalised terms it also matches.
type Synonyms map[string][]string

// NewSynonyms normalises a raw synonym table. Keys and values pass through
// Normalize, so "самолёт" and "самолеты" land on the same entry and a
// multi-word value contributes each of its terms.
func NewSynonyms(raw map[string][]string) Synonyms {
	s := make(Synonyms, len(raw))
	for key, values := range raw {
		for _, k := range Normalize(key) {
			set := make(map[string]struct{}, len(s[k])+len(values))
			for _, existing := range s[k] {
				set[existing] = struct{}{}
			}
			for _, v := range values {
				for _, t := range Normalize(v) {
					if t != k {
						set[t] = struct{}{}
					}
				}
			}
			s[k] = sortedSet(set)
		}
	}
	return s
}

// Expand returns terms plus every synonym of every term, sorted and
// deduplicated. Expansion is a single step; synonyms of synonyms are not
// followed.
func (s Synonyms) Expand(terms []string) []string {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
		for _, syn := range s[t] {
			set[syn] = struct{}{}
		}
	}
	return sortedSet(set)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
