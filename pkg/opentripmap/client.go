// Package opentripmap looks up places near a coordinate on OpenTripMap.
package opentripmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"poiatlas/pkg/articleproc"
	"poiatlas/pkg/model"
	"poiatlas/pkg/request"
	"poiatlas/pkg/textutil"
)

const defaultEndpoint = "https://api.opentripmap.com/0.1"

var (
	// ErrNoKey is returned when no API key is configured.
	ErrNoKey = errors.New("opentripmap: api key not configured")
	// ErrNoMatch is returned when nothing is found within the radius.
	ErrNoMatch = errors.New("opentripmap: no place nearby")
)

// Client queries the OpenTripMap places API.
type Client struct {
	request  *request.Client
	Endpoint string
	Key      string
	Lang     string
	Radius   float64 // meters
}

// NewClient creates a new OpenTripMap client.
func NewClient(r *request.Client, endpoint, key string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		request:  r,
		Endpoint: strings.TrimRight(endpoint, "/"),
		Key:      key,
		Lang:     "en",
		Radius:   300,
	}
}

// Enabled reports whether the client has a key.
func (c *Client) Enabled() bool {
	return c != nil && c.Key != ""
}

// Rate is the OpenTripMap popularity rate: 0..3, optionally suffixed "h" for
// cultural heritage. It decodes from both JSON numbers and strings.
type Rate struct {
	Value    float64
	Heritage bool
}

// UnmarshalJSON accepts 3, "3" and "3h".
func (r *Rate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "h") {
		r.Heritage = true
		s = strings.TrimSuffix(s, "h")
	}
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	r.Value = v
	return nil
}

// Stars scales the rate to 0..5 with one decimal.
func (r Rate) Stars() float64 {
	v := math.Max(0, math.Min(3, r.Value))
	return math.Round(v*5/3*10) / 10
}

type point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place is one entry of a radius search.
type Place struct {
	XID   string  `json:"xid"`
	Name  string  `json:"name"`
	Dist  float64 `json:"dist"`
	Rate  Rate    `json:"rate"`
	Kinds string  `json:"kinds"`
	Point *point  `json:"point"`
}

// Details is the object returned for one xid.
type Details struct {
	XID      string `json:"xid"`
	Name     string `json:"name"`
	Rate     Rate   `json:"rate"`
	Image    string `json:"image"`
	URL      string `json:"url"`
	Wikidata string `json:"wikidata"`
	Preview  *struct {
		Source string `json:"source"`
	} `json:"preview"`
	WikipediaExtracts *struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"wikipedia_extracts"`
	Info *struct {
		Descr string `json:"descr"`
	} `json:"info"`
	Point *point `json:"point"`
}

// Nearby lists places within the configured radius of lat/lon, filtered by name when given.
func (c *Client) Nearby(ctx context.Context, name string, lat, lon float64) ([]Place, error) {
	if !c.Enabled() {
		return nil, ErrNoKey
	}
	q := url.Values{}
	q.Set("radius", strconv.FormatFloat(c.Radius, 'f', 0, 64))
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "json")
	q.Set("limit", "10")
	if name != "" {
		q.Set("name", name)
	}
	cacheKey := fmt.Sprintf("otm:radius:%s:%s:%s", q.Get("lat"), q.Get("lon"), name)
	q.Set("apikey", c.Key)

	body, err := c.request.Get(ctx, fmt.Sprintf("%s/%s/places/radius?%s", c.Endpoint, c.Lang, q.Encode()), cacheKey)
	if err != nil {
		return nil, err
	}
	var places []Place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("failed to decode opentripmap radius: %w", err)
	}
	return places, nil
}

// Details fetches the detail object of one xid.
func (c *Client) Details(ctx context.Context, xid string) (*Details, error) {
	if !c.Enabled() {
		return nil, ErrNoKey
	}
	u := fmt.Sprintf("%s/%s/places/xid/%s?apikey=%s", c.Endpoint, c.Lang, url.PathEscape(xid), url.QueryEscape(c.Key))
	body, err := c.request.Get(ctx, u, "otm:xid:"+xid)
	if err != nil {
		return nil, err
	}
	var d Details
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to decode opentripmap details: %w", err)
	}
	return &d, nil
}

// Lookup finds the place best matching name near lat/lon and returns its details as a fragment.
func (c *Client) Lookup(ctx context.Context, name string, lat, lon float64) (*model.PoiInfo, error) {
	places, err := c.Nearby(ctx, name, lat, lon)
	if err != nil {
		return nil, err
	}
	best := Pick(places, name)
	if best == nil {
		return nil, ErrNoMatch
	}
	d, err := c.Details(ctx, best.XID)
	if err != nil {
		return nil, err
	}
	return d.Fragment(), nil
}

// Pick orders places by name overlap, then distance, and returns the first one with an xid.
func Pick(places []Place, name string) *Place {
	idx := make([]int, 0, len(places))
	for i := range places {
		if places[i].XID != "" {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := places[idx[a]], places[idx[b]]
		oa, ob := textutil.TokenOverlap(name, pa.Name), textutil.TokenOverlap(name, pb.Name)
		if oa != ob {
			return oa > ob
		}
		return pa.Dist < pb.Dist
	})
	return &places[idx[0]]
}

// Fragment converts details into a partial record.
func (d *Details) Fragment() *model.PoiInfo {
	f := &model.PoiInfo{
		Label:      strings.TrimSpace(d.Name),
		Website:    d.URL,
		WikidataID: strings.ToUpper(d.Wikidata),
	}
	if d.WikipediaExtracts != nil && strings.TrimSpace(d.WikipediaExtracts.Text) != "" {
		f.Description = strings.TrimSpace(d.WikipediaExtracts.Text)
	} else if d.Info != nil && d.Info.Descr != "" {
		if txt, err := articleproc.PlainText(strings.NewReader(d.Info.Descr)); err == nil {
			f.Description = txt
		}
	}
	if d.Preview != nil && d.Preview.Source != "" {
		f.Image = d.Preview.Source
		f.Images = append(f.Images, d.Preview.Source)
	}
	if d.Image != "" {
		if f.Image == "" {
			f.Image = d.Image
		}
		f.Images = append(f.Images, d.Image)
	}
	if d.Rate.Value > 0 {
		f.Ratings = []model.Rating{{Source: model.SourceOpenTripMap, Value: d.Rate.Stars()}}
	}
	if d.Point != nil && (d.Point.Lat != 0 || d.Point.Lon != 0) {
		f.Coords = &model.Coords{Lat: d.Point.Lat, Lon: d.Point.Lon}
	}
	return f
}
