// Package places looks up viewpoints through the Google Places API (New).
package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	placesapi "google.golang.org/api/places/v1"

	"poiatlas/pkg/geo"
	"poiatlas/pkg/model"
	"poiatlas/pkg/textutil"
	"poiatlas/pkg/tracker"
)

const (
	provider         = "google"
	defaultPhotoBase = "https://places.googleapis.com/v1/"
)

var (
	// ErrNoKey is returned when no API key is configured.
	ErrNoKey = errors.New("places: api key not configured")
	// ErrNoMatch is returned when the search yields no place.
	ErrNoMatch = errors.New("places: no matching place")
)

// Keywords are the multilingual viewpoint terms searches are biased towards,
// tried in order.
var Keywords = []string{"miradouro", "viewpoint", "mirador", "belvedere", "overlook", "mirante"}

const (
	searchFields  = "places.id,places.displayName,places.rating,places.userRatingCount,places.location"
	detailsFields = "id,displayName,rating,userRatingCount,websiteUri,internationalPhoneNumber,location," +
		"regularOpeningHours,currentOpeningHours,photos"
)

// Client wraps the Places service.
type Client struct {
	svc        *placesapi.Service
	key        string
	tracker    *tracker.Tracker
	photoBase  string
	Radius     float64 // meters
	MaxPhotos  int
	PhotoWidth int
}

// NewClient creates a Places client. An empty endpoint selects the public API.
func NewClient(ctx context.Context, key, endpoint string, t *tracker.Tracker) (*Client, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	opts := []option.ClientOption{option.WithAPIKey(key)}
	photoBase := defaultPhotoBase
	if endpoint != "" {
		endpoint = strings.TrimRight(endpoint, "/") + "/"
		opts = append(opts, option.WithEndpoint(endpoint))
		photoBase = endpoint + "v1/"
	}
	svc, err := placesapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create places service: %w", err)
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		svc:        svc,
		key:        key,
		tracker:    t,
		photoBase:  photoBase,
		Radius:     3000,
		MaxPhotos:  8,
		PhotoWidth: 1600,
	}, nil
}

// Candidate is one search result reduced to what picking needs.
type Candidate struct {
	ID       string
	Name     string
	Rating   float64
	Location geo.Point
	Distance float64 // meters from the search center
}

// QueryText returns the text query for a viewpoint near the user: the name itself
// when it already names a viewpoint, otherwise the name prefixed with "miradouro".
func QueryText(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && textutil.ContainsAny(name, Keywords) {
		return name
	}
	return strings.TrimSpace(Keywords[0] + " " + name)
}

// QueryTexts returns the text queries in the order they are tried: the name
// alone when it names a viewpoint, otherwise one query per keyword.
func QueryTexts(name string) []string {
	name = strings.TrimSpace(name)
	if name != "" && textutil.ContainsAny(name, Keywords) {
		return []string{name}
	}
	out := make([]string, 0, len(Keywords))
	for _, kw := range Keywords {
		out = append(out, strings.TrimSpace(kw+" "+name))
	}
	return out
}

// Pick returns the candidate with the highest overlap*10 + rating; earlier
// results win ties.
func Pick(cands []Candidate, name string) *Candidate {
	if len(cands) == 0 {
		return nil
	}
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	score := func(c Candidate) float64 {
		return textutil.TokenOverlap(name, c.Name)*10 + c.Rating
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return score(cands[idx[a]]) > score(cands[idx[b]])
	})
	return &cands[idx[0]]
}

// Search tries the viewpoint queries for name in turn and returns the results
// of the first one with a place inside Radius of lat/lon. The API only biases
// towards the circle, so farther places are dropped here.
func (c *Client) Search(ctx context.Context, name string, lat, lon float64) ([]Candidate, error) {
	center := geo.Point{Lat: lat, Lon: lon}
	for _, text := range QueryTexts(name) {
		cands, err := c.searchText(ctx, text, center)
		if err != nil {
			return nil, err
		}
		if len(cands) > 0 {
			return cands, nil
		}
	}
	c.tracker.TrackAPIZero(provider)
	return nil, nil
}

func (c *Client) searchText(ctx context.Context, text string, center geo.Point) ([]Candidate, error) {
	lat, lon := center.Lat, center.Lon
	req := &placesapi.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery:    text,
		LanguageCode: "pt",
		LocationBias: &placesapi.GoogleMapsPlacesV1SearchTextRequestLocationBias{
			Circle: &placesapi.GoogleMapsPlacesV1Circle{
				Center: &placesapi.GoogleTypeLatLng{Latitude: lat, Longitude: lon},
				Radius: c.Radius,
			},
		},
	}
	resp, err := c.svc.Places.SearchText(req).Fields(googleapi.Field(searchFields)).Context(ctx).Do()
	if err != nil {
		c.tracker.TrackAPIFailure(provider)
		return nil, fmt.Errorf("places search: %w", err)
	}
	c.tracker.TrackAPISuccess(provider)

	var out []Candidate
	for _, p := range resp.Places {
		if p == nil || p.Id == "" || p.Location == nil {
			continue
		}
		cand := Candidate{
			ID:       p.Id,
			Rating:   p.Rating,
			Location: geo.Point{Lat: p.Location.Latitude, Lon: p.Location.Longitude},
		}
		cand.Distance = geo.Distance(center, cand.Location)
		if cand.Distance > c.Radius {
			slog.Debug("Places result outside radius", "query", text, "id", p.Id, "distance_m", int(cand.Distance))
			continue
		}
		if p.DisplayName != nil {
			cand.Name = p.DisplayName.Text
		}
		out = append(out, cand)
	}
	return out, nil
}

// Details fetches one place by ID.
func (c *Client) Details(ctx context.Context, id string) (*placesapi.GoogleMapsPlacesV1Place, error) {
	name := id
	if !strings.HasPrefix(name, "places/") {
		name = "places/" + id
	}
	p, err := c.svc.Places.Get(name).Fields(googleapi.Field(detailsFields)).LanguageCode("pt").Context(ctx).Do()
	if err != nil {
		c.tracker.TrackAPIFailure(provider)
		return nil, fmt.Errorf("places details %s: %w", id, err)
	}
	c.tracker.TrackAPISuccess(provider)
	return p, nil
}

// Lookup searches around lat/lon, picks the best match for name and returns
// its details as a fragment.
func (c *Client) Lookup(ctx context.Context, name string, lat, lon float64) (*model.PoiInfo, error) {
	cands, err := c.Search(ctx, name, lat, lon)
	if err != nil {
		return nil, err
	}
	best := Pick(cands, name)
	if best == nil {
		return nil, ErrNoMatch
	}
	slog.Debug("Places pick", "query", name, "id", best.ID, "name", best.Name)

	p, err := c.Details(ctx, best.ID)
	if err != nil {
		return nil, err
	}
	return c.Fragment(p), nil
}

// Fragment converts a place into a partial record.
func (c *Client) Fragment(p *placesapi.GoogleMapsPlacesV1Place) *model.PoiInfo {
	f := &model.PoiInfo{Website: p.WebsiteUri}
	if p.DisplayName != nil {
		f.Label = p.DisplayName.Text
	}
	if p.Location != nil {
		f.Coords = &model.Coords{Lat: p.Location.Latitude, Lon: p.Location.Longitude}
	}
	if p.Rating > 0 {
		f.Ratings = []model.Rating{{Source: model.SourceGoogle, Value: p.Rating, Votes: int(p.UserRatingCount)}}
	}
	if p.InternationalPhoneNumber != "" || p.WebsiteUri != "" {
		f.Contacts = &model.Contacts{Phone: p.InternationalPhoneNumber, Website: p.WebsiteUri}
	}

	hours := p.CurrentOpeningHours
	if hours == nil {
		hours = p.RegularOpeningHours
	}
	if hours != nil {
		oh := &model.OpeningHours{
			Raw:       strings.Join(hours.WeekdayDescriptions, "; "),
			IsOpenNow: model.BoolPtr(hours.OpenNow),
		}
		if hours.OpenNow {
			oh.NextChange = hours.NextCloseTime
		} else {
			oh.NextChange = hours.NextOpenTime
		}
		f.OpeningHours = oh
	}

	for _, ph := range p.Photos {
		if len(f.Images) >= c.MaxPhotos {
			break
		}
		if ph == nil || ph.Name == "" {
			continue
		}
		f.Images = append(f.Images, c.photoURL(ph.Name))
	}
	if len(f.Images) > 0 {
		f.Image = f.Images[0]
	}
	return f
}

func (c *Client) photoURL(name string) string {
	q := url.Values{}
	q.Set("maxWidthPx", fmt.Sprint(c.PhotoWidth))
	q.Set("key", c.key)
	return c.photoBase + name + "/media?" + q.Encode()
}
