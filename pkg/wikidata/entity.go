package wikidata

import (
	"context"
	"fmt"
	"strings"

	"poiatlas/pkg/commons"
	"poiatlas/pkg/model"
)

// Properties read from entity claims.
const (
	PropInstanceOf = "P31"
	PropLocatedIn  = "P131"
	PropHeritage   = "P1435"
	PropArchitect  = "P84"
	PropStyle      = "P149"
	PropMaterial   = "P186"
	PropBuilder    = "P193"
	PropInception  = "P571"
	PropStartTime  = "P580"
	PropEndTime    = "P582"
	PropOpened     = "P1619"
	PropImage      = "P18"
	PropCoords     = "P625"
	PropWebsite    = "P856"
	PropSIPAID     = "P1700"
)

// linkedProps hold entity references whose labels are resolved in one batch.
var linkedProps = []string{PropInstanceOf, PropLocatedIn, PropHeritage, PropArchitect, PropStyle, PropMaterial, PropBuilder}

// Entity is the parsed subset of a Wikidata item.
type Entity struct {
	ID          string
	Label       string
	Description string
	Links       map[string][]string // property -> target QIDs, claim order
	Inception   *string
	End         *string
	Opened      *string
	Image       string
	Coords      *model.Coords
	Website     string
	SIPAID      string
	Sitelinks   map[string]string // "ptwiki" -> title
}

func parseEntity(id string, raw rawEntity, langs []string) *Entity {
	e := &Entity{
		ID:          id,
		Label:       pickLang(raw.Labels, langs),
		Description: pickLang(raw.Descriptions, langs),
		Links:       make(map[string][]string),
		Sitelinks:   make(map[string]string),
	}

	var startTime *string
	for prop, claims := range raw.Claims {
		for _, claim := range claims {
			if claim.Rank == "deprecated" || claim.Mainsnak == nil {
				continue
			}
			snak := claim.Mainsnak
			switch prop {
			case PropInception:
				if e.Inception == nil {
					e.Inception = timeValue(snak)
				}
			case PropStartTime:
				if startTime == nil {
					startTime = timeValue(snak)
				}
			case PropEndTime:
				if e.End == nil {
					e.End = timeValue(snak)
				}
			case PropOpened:
				if e.Opened == nil {
					e.Opened = timeValue(snak)
				}
			case PropImage:
				if e.Image == "" {
					e.Image = commons.FilePathURL(stringValue(snak))
				}
			case PropCoords:
				if e.Coords == nil {
					e.Coords = coordValue(snak)
				}
			case PropWebsite:
				if e.Website == "" {
					e.Website = stringValue(snak)
				}
			case PropSIPAID:
				if e.SIPAID == "" {
					e.SIPAID = stringValue(snak)
				}
			default:
				if target := itemValue(snak); target != "" {
					e.Links[prop] = appendUnique(e.Links[prop], target)
				}
			}
		}
	}

	if e.Inception == nil {
		e.Inception = startTime
	}

	for site, link := range raw.Sitelinks {
		if link.Title != "" {
			e.Sitelinks[site] = link.Title
		}
	}
	return e
}

// LinkedIDs returns every entity referenced by the label-resolved properties.
func (e *Entity) LinkedIDs() []string {
	var ids []string
	for _, p := range linkedProps {
		for _, id := range e.Links[p] {
			ids = appendUnique(ids, id)
		}
	}
	return ids
}

// WikipediaTitle returns the first sitelink in langs order.
func (e *Entity) WikipediaTitle(langs []string) (lang, title string, ok bool) {
	for _, l := range langs {
		if t, found := e.Sitelinks[l+"wiki"]; found {
			return l, t, true
		}
	}
	return "", "", false
}

// Fragment converts the entity into a partial record. Linked entities are
// rendered through labels; references without a label are omitted.
func (e *Entity) Fragment(labels map[string]string, langs []string) *model.PoiInfo {
	resolve := func(prop string) []string {
		var out []string
		for _, id := range e.Links[prop] {
			if l := labels[id]; l != "" {
				out = appendUnique(out, l)
			}
		}
		return out
	}

	f := &model.PoiInfo{
		Label:              e.Label,
		Description:        e.Description,
		Image:              e.Image,
		Coords:             e.Coords,
		WikidataID:         e.ID,
		SIPAID:             e.SIPAID,
		Website:            e.Website,
		InstanceOf:         resolve(PropInstanceOf),
		LocatedIn:          resolve(PropLocatedIn),
		Heritage:           resolve(PropHeritage),
		Architects:         resolve(PropArchitect),
		ArchitectureStyles: resolve(PropStyle),
		Materials:          resolve(PropMaterial),
		Builders:           resolve(PropBuilder),
	}
	if e.Inception != nil {
		f.Inception = *e.Inception
	}
	if e.Inception != nil || e.End != nil || e.Opened != nil {
		f.BuiltPeriod = &model.BuiltPeriod{Start: e.Inception, End: e.End, Opened: e.Opened}
	}
	if lang, title, ok := e.WikipediaTitle(langs); ok {
		f.WikipediaURL = fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", lang, strings.ReplaceAll(title, " ", "_"))
	}
	return f
}

// FetchFragment loads an entity and resolves the labels of its linked entities.
// A failed label lookup degrades to a fragment without the linked lists.
func (c *Client) FetchFragment(ctx context.Context, id string) (*model.PoiInfo, *Entity, error) {
	e, err := c.GetEntity(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	labels, err := c.GetLabels(ctx, e.LinkedIDs())
	if err != nil {
		c.Logger.Warn("Wikidata label lookup failed", "id", e.ID, "error", err)
	}
	return e.Fragment(labels, c.Languages), e, nil
}

// FormatTime renders a Wikidata time value by its precision: yyyy (9 or coarser),
// yyyy-mm (10) or yyyy-mm-dd (11+). The leading "+" is stripped; dates before
// the common era yield nil.
func FormatTime(t string, precision int) *string {
	t = strings.TrimSpace(t)
	if t == "" || strings.HasPrefix(t, "-") {
		return nil
	}
	t = strings.TrimPrefix(t, "+")
	if i := strings.Index(t, "T"); i >= 0 {
		t = t[:i]
	}
	parts := strings.Split(t, "-")
	if len(parts) != 3 || !allDigits(parts[0]) {
		return nil
	}
	year := strings.TrimLeft(parts[0], "0")
	if year == "" {
		return nil
	}
	if len(year) < 4 {
		year = strings.Repeat("0", 4-len(year)) + year
	}
	month, day := parts[1], parts[2]

	out := year
	switch {
	case precision >= 11 && month != "00" && day != "00":
		out = year + "-" + month + "-" + day
	case precision >= 10 && month != "00":
		out = year + "-" + month
	}
	return &out
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// -- Snak helpers: every level may be absent --

func snakValue(snak map[string]interface{}) interface{} {
	dv, ok := snak["datavalue"].(map[string]interface{})
	if !ok {
		return nil
	}
	return dv["value"]
}

func itemValue(snak map[string]interface{}) string {
	if val, ok := snakValue(snak).(map[string]interface{}); ok {
		if id, ok := val["id"].(string); ok {
			return id
		}
	}
	return ""
}

func stringValue(snak map[string]interface{}) string {
	if s, ok := snakValue(snak).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func timeValue(snak map[string]interface{}) *string {
	val, ok := snakValue(snak).(map[string]interface{})
	if !ok {
		return nil
	}
	t, _ := val["time"].(string)
	p, _ := val["precision"].(float64)
	return FormatTime(t, int(p))
}

func coordValue(snak map[string]interface{}) *model.Coords {
	val, ok := snakValue(snak).(map[string]interface{})
	if !ok {
		return nil
	}
	lat, okLat := val["latitude"].(float64)
	lon, okLon := val["longitude"].(float64)
	if !okLat || !okLon {
		return nil
	}
	return &model.Coords{Lat: lat, Lon: lon}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
