package overpass

import (
	"strings"

	"poiatlas/pkg/model"
)

// Tags is the practical subset of an OSM tag set.
type Tags struct {
	Name         string
	Phone        string
	Email        string
	Website      string
	OpeningHours string
	Description  string
	StartDate    string
	Wikidata     string
	Wikipedia    string
}

// ParseTags reads t, preferring Portuguese variants and plain keys over contact: keys.
func ParseTags(t map[string]string) Tags {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(t[k]); v != "" {
				return v
			}
		}
		return ""
	}
	return Tags{
		Name:         get("name:pt", "name"),
		Phone:        firstValue(get("phone", "contact:phone")),
		Email:        firstValue(get("email", "contact:email")),
		Website:      firstValue(get("website", "contact:website", "url")),
		OpeningHours: get("opening_hours"),
		Description:  get("description:pt", "description", "description:en"),
		StartDate:    get("start_date"),
		Wikidata:     get("wikidata"),
		Wikipedia:    get("wikipedia"),
	}
}

// firstValue keeps the first entry of a ";"-separated multi-value tag.
func firstValue(v string) string {
	if i := strings.Index(v, ";"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// Fragment converts the tags into a partial record.
func (t Tags) Fragment() *model.PoiInfo {
	f := &model.PoiInfo{
		Label:       t.Name,
		Description: t.Description,
		Website:     t.Website,
		WikidataID:  strings.ToUpper(t.Wikidata),
		BuiltPeriod: ParseStartDate(t.StartDate),
	}
	if c := (&model.Contacts{Phone: t.Phone, Email: t.Email, Website: t.Website}); !c.IsEmpty() {
		f.Contacts = c
	}
	if t.OpeningHours != "" {
		f.OpeningHours = &model.OpeningHours{Raw: t.OpeningHours}
	}
	if f.BuiltPeriod != nil && f.BuiltPeriod.Start != nil {
		f.Inception = *f.BuiltPeriod.Start
	}
	return f
}
