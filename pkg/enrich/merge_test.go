package enrich

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poiatlas/pkg/commons"
	"poiatlas/pkg/model"
)

func TestMerge_LeftBias(t *testing.T) {
	a := &model.PoiInfo{
		Label:        "Castelo de Guimarães",
		Description:  "from a",
		Image:        "https://example.org/a.jpg",
		Inception:    "1139",
		WikipediaURL: "https://pt.wikipedia.org/wiki/Castelo_de_Guimar%C3%A3es",
		WikidataID:   "Q1031489",
		Website:      "https://a.example.org",
		Coords:       &model.Coords{Lat: 41.4479, Lon: -8.2902},
	}
	b := &model.PoiInfo{
		Label:        "Guimarães Castle",
		Description:  "from b",
		Image:        "https://example.org/b.jpg",
		Inception:    "0950",
		WikipediaURL: "https://en.wikipedia.org/wiki/Guimar%C3%A3es_Castle",
		WikidataID:   "Q2",
		Website:      "https://b.example.org",
		HistoryText:  "b history",
		Coords:       &model.Coords{Lat: 1, Lon: 1},
	}

	m := Merge(a, b)
	assert.Equal(t, a.Label, m.Label)
	assert.Equal(t, a.Description, m.Description)
	assert.Equal(t, a.Image, m.Image)
	assert.Equal(t, a.Inception, m.Inception)
	assert.Equal(t, a.WikipediaURL, m.WikipediaURL)
	assert.Equal(t, a.WikidataID, m.WikidataID)
	assert.Equal(t, a.Website, m.Website)
	assert.Equal(t, *a.Coords, *m.Coords)
	assert.Equal(t, "b history", m.HistoryText, "gaps are filled from b")

	// Fresh record, inputs untouched.
	m.Coords.Lat = 0
	assert.Equal(t, 41.4479, a.Coords.Lat)
	assert.Equal(t, "Guimarães Castle", b.Label)
}

func TestMerge_UnionCommutative(t *testing.T) {
	a := &model.PoiInfo{
		InstanceOf: []string{"castelo", "monumento"},
		Heritage:   []string{"Monumento Nacional"},
		Architects: []string{"A"},
		OldNames:   []string{"Old"},
	}
	b := &model.PoiInfo{
		InstanceOf: []string{"monumento", "fortaleza"},
		LocatedIn:  []string{"Guimarães"},
		Materials:  []string{"granito"},
		Architects: []string{"B", "A"},
	}
	ab, ba := Merge(a, b), Merge(b, a)

	sorted := func(s []string) []string {
		out := append([]string(nil), s...)
		sort.Strings(out)
		return out
	}
	for _, pair := range [][2][]string{
		{ab.InstanceOf, ba.InstanceOf},
		{ab.LocatedIn, ba.LocatedIn},
		{ab.Heritage, ba.Heritage},
		{ab.Architects, ba.Architects},
		{ab.ArchitectureStyles, ba.ArchitectureStyles},
		{ab.Materials, ba.Materials},
		{ab.Builders, ba.Builders},
	} {
		assert.Equal(t, sorted(pair[0]), sorted(pair[1]))
	}
	assert.Equal(t, []string{"castelo", "monumento", "fortaleza"}, ab.InstanceOf, "first-seen order")
	assert.Equal(t, []string{"Old"}, ab.OldNames)
}

func TestMerge_RatingDedup(t *testing.T) {
	a := &model.PoiInfo{Ratings: []model.Rating{{Source: model.SourceGoogle, Value: 4}}}
	b := &model.PoiInfo{Ratings: []model.Rating{
		{Source: model.SourceGoogle, Value: 2},
		{Source: model.SourceOpenTripMap, Value: 3},
	}}
	m := Merge(a, b)
	assert.Equal(t, []model.Rating{
		{Source: model.SourceGoogle, Value: 4},
		{Source: model.SourceOpenTripMap, Value: 3},
	}, m.Ratings)
}

func TestMerge_NestedFieldWise(t *testing.T) {
	a := &model.PoiInfo{
		Contacts:     &model.Contacts{Phone: "+351 1"},
		OpeningHours: &model.OpeningHours{IsOpenNow: model.BoolPtr(false)},
		BuiltPeriod:  &model.BuiltPeriod{Start: model.StringPtr("1139")},
	}
	b := &model.PoiInfo{
		Contacts:     &model.Contacts{Phone: "+351 2", Email: "b@example.pt", Website: "https://b"},
		OpeningHours: &model.OpeningHours{Raw: "Mo-Su 10:00-18:00", IsOpenNow: model.BoolPtr(true), NextChange: "18:00"},
		BuiltPeriod:  &model.BuiltPeriod{Start: model.StringPtr("1000"), End: model.StringPtr("1200")},
	}
	m := Merge(a, b)
	assert.Equal(t, &model.Contacts{Phone: "+351 1", Email: "b@example.pt", Website: "https://b"}, m.Contacts)
	assert.Equal(t, "Mo-Su 10:00-18:00", m.OpeningHours.Raw)
	assert.False(t, *m.OpeningHours.IsOpenNow)
	assert.Equal(t, "18:00", m.OpeningHours.NextChange)
	assert.Equal(t, "1139", *m.BuiltPeriod.Start)
	assert.Equal(t, "1200", *m.BuiltPeriod.End)
	assert.Nil(t, m.BuiltPeriod.Opened)

	// Mutating the result leaves the inputs alone.
	*m.BuiltPeriod.Start = "x"
	*m.OpeningHours.IsOpenNow = true
	assert.Equal(t, "1139", *a.BuiltPeriod.Start)
	assert.False(t, *a.OpeningHours.IsOpenNow)
}

func TestMerge_ImagesNormalizedInOrder(t *testing.T) {
	a := &model.PoiInfo{Images: []string{
		"https://commons.wikimedia.org/wiki/File:Castelo_de_Guimar%C3%A3es.jpg",
		"https://example.org/x.jpg",
	}}
	b := &model.PoiInfo{Images: []string{
		"https://commons.wikimedia.org/wiki/Special:Redirect/file/Castelo de Guimarães.jpg",
		"https://example.org/y.jpg",
	}}
	m := Merge(a, b)
	assert.Equal(t, []string{
		commons.FilePathPrefix + "Castelo_de_Guimarães.jpg",
		"https://example.org/x.jpg",
		"https://example.org/y.jpg",
	}, m.Images)
}

func TestMerge_EmptyNestedStaysNil(t *testing.T) {
	m := Merge(&model.PoiInfo{Contacts: &model.Contacts{}}, nil)
	assert.Nil(t, m.Contacts)
	assert.Nil(t, m.OpeningHours)
	assert.Nil(t, m.BuiltPeriod)
	assert.False(t, m.HasSignal())
}

func TestMergeAll_PriorityOrder(t *testing.T) {
	m := MergeAll(nil, &model.PoiInfo{Label: "first"}, &model.PoiInfo{Label: "second", Website: "w"})
	require.NotNil(t, m)
	assert.Equal(t, "first", m.Label)
	assert.Equal(t, "w", m.Website)
}
