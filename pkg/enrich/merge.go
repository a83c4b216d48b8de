// Package enrich combines provider fragments into one POI record.
package enrich

import "poiatlas/pkg/model"

// Merge combines two fragments into a fresh record. Scalars keep a's value when
// it is non-empty; list fields are unioned in first-seen order; nested records
// merge field by field. Neither input is modified.
func Merge(a, b *model.PoiInfo) *model.PoiInfo {
	if a == nil {
		a = &model.PoiInfo{}
	}
	if b == nil {
		b = &model.PoiInfo{}
	}

	out := &model.PoiInfo{
		Label:            firstString(a.Label, b.Label),
		Description:      firstString(a.Description, b.Description),
		HistoryText:      firstString(a.HistoryText, b.HistoryText),
		ArchitectureText: firstString(a.ArchitectureText, b.ArchitectureText),
		Image:            firstString(NormalizeImageURL(a.Image), NormalizeImageURL(b.Image)),
		Inception:        firstString(a.Inception, b.Inception),
		WikipediaURL:     firstString(a.WikipediaURL, b.WikipediaURL),
		WikidataID:       firstString(a.WikidataID, b.WikidataID),
		SIPAID:           firstString(a.SIPAID, b.SIPAID),
		Website:          firstString(a.Website, b.Website),

		OldNames:           union(a.OldNames, b.OldNames),
		Images:             DedupImages(append(append([]string(nil), a.Images...), b.Images...), 0),
		InstanceOf:         union(a.InstanceOf, b.InstanceOf),
		LocatedIn:          union(a.LocatedIn, b.LocatedIn),
		Heritage:           union(a.Heritage, b.Heritage),
		Architects:         union(a.Architects, b.Architects),
		ArchitectureStyles: union(a.ArchitectureStyles, b.ArchitectureStyles),
		Materials:          union(a.Materials, b.Materials),
		Builders:           union(a.Builders, b.Builders),

		Ratings: mergeRatings(a.Ratings, b.Ratings),
	}

	switch {
	case a.Coords != nil:
		c := *a.Coords
		out.Coords = &c
	case b.Coords != nil:
		c := *b.Coords
		out.Coords = &c
	}

	if c := mergeContacts(a.Contacts, b.Contacts); !c.IsEmpty() {
		out.Contacts = c
	}
	if o := mergeOpeningHours(a.OpeningHours, b.OpeningHours); !o.IsEmpty() {
		out.OpeningHours = o
	}
	if bp := mergeBuiltPeriod(a.BuiltPeriod, b.BuiltPeriod); !bp.IsEmpty() {
		out.BuiltPeriod = bp
	}
	return out
}

// MergeAll folds fragments left to right, so earlier fragments take priority.
func MergeAll(fragments ...*model.PoiInfo) *model.PoiInfo {
	out := &model.PoiInfo{}
	for _, f := range fragments {
		out = Merge(out, f)
	}
	return out
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstPtr[T any](a, b *T) *T {
	p := a
	if p == nil {
		p = b
	}
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func mergeRatings(a, b []model.Rating) []model.Rating {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[model.Source]bool)
	var out []model.Rating
	for _, list := range [][]model.Rating{a, b} {
		for _, r := range list {
			if seen[r.Source] {
				continue
			}
			seen[r.Source] = true
			out = append(out, r)
		}
	}
	return out
}

func mergeContacts(a, b *model.Contacts) *model.Contacts {
	if a == nil {
		a = &model.Contacts{}
	}
	if b == nil {
		b = &model.Contacts{}
	}
	return &model.Contacts{
		Phone:   firstString(a.Phone, b.Phone),
		Email:   firstString(a.Email, b.Email),
		Website: firstString(a.Website, b.Website),
	}
}

func mergeOpeningHours(a, b *model.OpeningHours) *model.OpeningHours {
	if a == nil {
		a = &model.OpeningHours{}
	}
	if b == nil {
		b = &model.OpeningHours{}
	}
	return &model.OpeningHours{
		Raw:        firstString(a.Raw, b.Raw),
		IsOpenNow:  firstPtr(a.IsOpenNow, b.IsOpenNow),
		NextChange: firstString(a.NextChange, b.NextChange),
	}
}

func mergeBuiltPeriod(a, b *model.BuiltPeriod) *model.BuiltPeriod {
	if a == nil {
		a = &model.BuiltPeriod{}
	}
	if b == nil {
		b = &model.BuiltPeriod{}
	}
	return &model.BuiltPeriod{
		Start:  firstPtr(a.Start, b.Start),
		End:    firstPtr(a.End, b.End),
		Opened: firstPtr(a.Opened, b.Opened),
	}
}
