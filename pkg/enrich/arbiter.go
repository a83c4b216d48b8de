package enrich

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"poiatlas/pkg/model"
	"poiatlas/pkg/textutil"
)

// SourceWeights rank description providers. Feature tags are OSM data and weigh the same.
var SourceWeights = map[model.Source]int{
	model.SourceWikipedia:   1000,
	model.SourceOpenTripMap: 750,
	model.SourceOSM:         550,
	model.SourceFeature:     550,
	model.SourceWikidata:    200,
}

const (
	maxLengthBonus = 600
	nameBoostUnit  = 20
)

// ScoredCandidate is a description candidate with its arbitration score.
type ScoredCandidate struct {
	model.DescriptionCandidate
	Score int `json:"score"`
}

// ScoreDescription returns weight + min(600, len) + 20*(10 if exact + round(8*overlap)).
func ScoreDescription(target string, c model.DescriptionCandidate) int {
	length := utf8.RuneCountInString(strings.TrimSpace(c.Text))
	if length > maxLengthBonus {
		length = maxLengthBonus
	}
	exact := 0
	if textutil.SameName(target, c.Title) {
		exact = 10
	}
	overlap := int(math.Round(8 * textutil.TokenOverlap(target, c.Title)))
	return SourceWeights[c.Source] + length + nameBoostUnit*(exact+overlap)
}

// RankDescriptions scores non-empty candidates and sorts them best first.
// Equal scores keep discovery order.
func RankDescriptions(target string, cands []model.DescriptionCandidate) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, ScoredCandidate{DescriptionCandidate: c, Score: ScoreDescription(target, c)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// PickDescription returns the best candidate, or false when none has text.
func PickDescription(target string, cands []model.DescriptionCandidate) (model.DescriptionCandidate, bool) {
	ranked := RankDescriptions(target, cands)
	if len(ranked) == 0 {
		return model.DescriptionCandidate{}, false
	}
	return ranked[0].DescriptionCandidate, true
}
