package model

// Source identifies which external provider produced a piece of data.
type Source string

const (
	SourceWikipedia   Source = "wikipedia"
	SourceWikidata    Source = "wikidata"
	SourceOSM         Source = "osm"
	SourceOpenTripMap Source = "opentripmap"
	SourceGoogle      Source = "google"
	SourceSIPA        Source = "sipa"
	SourceFeature     Source = "feature" // tags of the map feature the user clicked
)

// Coords is a WGS84 position.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Contacts holds practical contact data. Empty strings mean "unknown".
type Contacts struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// IsEmpty reports whether no contact field is set.
func (c *Contacts) IsEmpty() bool {
	return c == nil || (c.Phone == "" && c.Email == "" && c.Website == "")
}

// OpeningHours holds the raw opening_hours expression and, when a provider knows it,
// the current open state and the time of the next change.
type OpeningHours struct {
	Raw        string `json:"raw,omitempty"`
	IsOpenNow  *bool  `json:"isOpenNow,omitempty"`
	NextChange string `json:"nextChange,omitempty"`
}

// IsEmpty reports whether no opening hours field is set.
func (o *OpeningHours) IsEmpty() bool {
	return o == nil || (o.Raw == "" && o.IsOpenNow == nil && o.NextChange == "")
}

// Rating is a 0..5 score from one provider.
type Rating struct {
	Source Source  `json:"source"`
	Value  float64 `json:"value"`
	Votes  int     `json:"votes,omitempty"`
}

// BuiltPeriod holds construction dates as yyyy, yyyy-mm or yyyy-mm-dd strings.
// A nil bound is unknown.
type BuiltPeriod struct {
	Start  *string `json:"start"`
	End    *string `json:"end"`
	Opened *string `json:"opened"`
}

// IsEmpty reports whether no bound is known.
func (b *BuiltPeriod) IsEmpty() bool {
	return b == nil || (b.Start == nil && b.End == nil && b.Opened == nil)
}

// PoiInfo is the unified enrichment record for one point of interest.
// The same type is used for the per-provider fragments that get merged into it;
// every field is optional.
type PoiInfo struct {
	Label            string   `json:"label,omitempty"`
	Description      string   `json:"description,omitempty"`
	HistoryText      string   `json:"historyText,omitempty"`
	ArchitectureText string   `json:"architectureText,omitempty"`
	OldNames         []string `json:"oldNames,omitempty"`

	Image  string   `json:"image,omitempty"`
	Images []string `json:"images,omitempty"`

	Coords *Coords `json:"coords,omitempty"`

	WikipediaURL string   `json:"wikipediaUrl,omitempty"`
	WikidataID   string   `json:"wikidataId,omitempty"`
	SIPAID       string   `json:"sipaId,omitempty"`
	Inception    string   `json:"inception,omitempty"`
	InstanceOf   []string `json:"instanceOf,omitempty"`
	LocatedIn    []string `json:"locatedIn,omitempty"`
	Heritage     []string `json:"heritage,omitempty"`

	Website      string        `json:"website,omitempty"`
	Contacts     *Contacts     `json:"contacts,omitempty"`
	OpeningHours *OpeningHours `json:"openingHours,omitempty"`

	Ratings []Rating `json:"ratings,omitempty"`

	Architects         []string     `json:"architects,omitempty"`
	ArchitectureStyles []string     `json:"architectureStyles,omitempty"`
	Materials          []string     `json:"materials,omitempty"`
	Builders           []string     `json:"builders,omitempty"`
	BuiltPeriod        *BuiltPeriod `json:"builtPeriod,omitempty"`
}

// HasSignal reports whether the record carries anything worth showing.
// A record without signal is treated as "nothing found".
func (p *PoiInfo) HasSignal() bool {
	if p == nil {
		return false
	}
	return p.Label != "" ||
		p.Description != "" ||
		p.Image != "" ||
		len(p.Images) > 0 ||
		p.Website != "" ||
		!p.Contacts.IsEmpty() ||
		!p.OpeningHours.IsEmpty() ||
		len(p.Ratings) > 0 ||
		!p.BuiltPeriod.IsEmpty()
}

// Clone returns a deep copy so cached records can be handed out without aliasing.
func (p *PoiInfo) Clone() *PoiInfo {
	if p == nil {
		return nil
	}
	c := *p
	c.OldNames = cloneStrings(p.OldNames)
	c.Images = cloneStrings(p.Images)
	c.InstanceOf = cloneStrings(p.InstanceOf)
	c.LocatedIn = cloneStrings(p.LocatedIn)
	c.Heritage = cloneStrings(p.Heritage)
	c.Architects = cloneStrings(p.Architects)
	c.ArchitectureStyles = cloneStrings(p.ArchitectureStyles)
	c.Materials = cloneStrings(p.Materials)
	c.Builders = cloneStrings(p.Builders)
	if p.Coords != nil {
		v := *p.Coords
		c.Coords = &v
	}
	if p.Contacts != nil {
		v := *p.Contacts
		c.Contacts = &v
	}
	if p.OpeningHours != nil {
		v := *p.OpeningHours
		if p.OpeningHours.IsOpenNow != nil {
			b := *p.OpeningHours.IsOpenNow
			v.IsOpenNow = &b
		}
		c.OpeningHours = &v
	}
	if p.Ratings != nil {
		c.Ratings = append([]Rating(nil), p.Ratings...)
	}
	if p.BuiltPeriod != nil {
		c.BuiltPeriod = &BuiltPeriod{
			Start:  cloneStringPtr(p.BuiltPeriod.Start),
			End:    cloneStringPtr(p.BuiltPeriod.End),
			Opened: cloneStringPtr(p.BuiltPeriod.Opened),
		}
	}
	return &c
}

// Fragment is a partial record produced by one provider call.
type Fragment struct {
	Source Source
	Info   *PoiInfo
}

// DescriptionCandidate is one provider's proposal for the final description.
type DescriptionCandidate struct {
	Text   string  `json:"text"`
	Source Source  `json:"source"`
	Title  string  `json:"title"`
	Coords *Coords `json:"coords,omitempty"`
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
