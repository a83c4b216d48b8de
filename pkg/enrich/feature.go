package enrich

import (
	"poiatlas/pkg/model"
	"poiatlas/pkg/overpass"
	"poiatlas/pkg/textutil"
)

// applyFeature overlays the tags of the clicked map feature onto info. Feature
// values replace provider values. The feature name replaces a differing label,
// which is kept in OldNames. An empty label is left empty so a bare name never
// counts as a find.
func applyFeature(info *model.PoiInfo, t overpass.Tags, withDescription bool) {
	if withDescription && t.Description != "" {
		info.Description = t.Description
	}

	if t.OpeningHours != "" {
		if info.OpeningHours == nil {
			info.OpeningHours = &model.OpeningHours{}
		}
		info.OpeningHours.Raw = t.OpeningHours
	}

	if t.Phone != "" || t.Email != "" || t.Website != "" {
		if info.Contacts == nil {
			info.Contacts = &model.Contacts{}
		}
		if t.Phone != "" {
			info.Contacts.Phone = t.Phone
		}
		if t.Email != "" {
			info.Contacts.Email = t.Email
		}
		if t.Website != "" {
			info.Contacts.Website = t.Website
			info.Website = t.Website
		}
	}

	if bp := overpass.ParseStartDate(t.StartDate); bp != nil {
		if info.BuiltPeriod == nil {
			info.BuiltPeriod = &model.BuiltPeriod{}
		}
		info.BuiltPeriod.Start = bp.Start
		info.BuiltPeriod.End = bp.End
		if bp.Start != nil {
			info.Inception = *bp.Start
		}
	}

	if t.Name != "" && info.Label != "" && !textutil.SameName(info.Label, t.Name) {
		info.OldNames = union(info.OldNames, []string{info.Label})
		info.Label = t.Name
	}
}
