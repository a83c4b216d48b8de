package enrich

import (
	"strings"

	"poiatlas/pkg/textutil"
)

// Kind is the coarse POI type inferred from a name.
type Kind int

const (
	KindGeneric Kind = iota
	KindViewpoint
	KindChurch
	KindRuins
)

func (k Kind) String() string {
	switch k {
	case KindViewpoint:
		return "viewpoint"
	case KindChurch:
		return "church"
	case KindRuins:
		return "ruins"
	}
	return "generic"
}

// Pattern groups, already normalized. Single words match whole tokens,
// phrases match as substrings.
var (
	viewpointTerms = []string{"miradouro", "miradoiro", "mirante", "mirador", "viewpoint", "belvedere", "overlook",
		"ponto panoramico", "vista panoramica", "scenic view"}
	churchTerms = []string{"igreja", "capela", "se", "basilica", "santuario", "ermida", "matriz", "convento",
		"mosteiro", "church", "chapel", "cathedral", "chiesa", "iglesia"}
	ruinsTerms = []string{"ruinas", "ruina", "ruins", "ruin", "vestigios", "castro", "citania"}
)

// Classify maps a name onto a Kind; viewpoint terms take precedence.
func Classify(name string) Kind {
	switch {
	case matchesAny(name, viewpointTerms):
		return KindViewpoint
	case matchesAny(name, churchTerms):
		return KindChurch
	case matchesAny(name, ruinsTerms):
		return KindRuins
	}
	return KindGeneric
}

// IsViewpointTitle reports whether a title names a viewpoint.
func IsViewpointTitle(title string) bool {
	return matchesAny(title, viewpointTerms)
}

func matchesAny(s string, terms []string) bool {
	tokens := textutil.Tokens(s)
	if len(tokens) == 0 {
		return false
	}
	var phrases []string
	for _, t := range terms {
		if strings.Contains(t, " ") {
			phrases = append(phrases, t)
			continue
		}
		if _, ok := tokens[t]; ok {
			return true
		}
	}
	return len(phrases) > 0 && textutil.ContainsAny(s, phrases)
}
