// Package overpass resolves OSM elements through the Overpass API and reads
// their practical tags.
package overpass

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"poiatlas/pkg/geo"
	"poiatlas/pkg/model"
	"poiatlas/pkg/request"
	"poiatlas/pkg/textutil"
)

const defaultEndpoint = "https://overpass-api.de/api/interpreter"

// ErrNoMatch is returned when the query yields no usable element.
var ErrNoMatch = errors.New("overpass: no matching element")

// Client executes Overpass lookups.
type Client struct {
	request    *request.Client
	Endpoint   string
	Radius     float64 // meters, name lookups only
	MinOverlap float64 // token overlap an element name needs to be accepted
}

// NewClient creates a new Overpass client. An empty endpoint selects the public instance.
func NewClient(r *request.Client, endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		request:    r,
		Endpoint:   endpoint,
		Radius:     350,
		MinOverlap: 0.5,
	}
}

// Query identifies the element to look up. The first populated form wins:
// OSMID ("node/123"), then WikidataID, then Name near Lat/Lon.
type Query struct {
	OSMID      string
	WikidataID string
	Name       string
	Lat, Lon   float64
	HasCoords  bool
}

var reOSMID = regexp.MustCompile(`^(node|way|relation|n|w|r)/(\d+)$`)

// BuildQuery renders the Overpass QL for q.
func (c *Client) BuildQuery(q Query) (string, error) {
	const head = "[out:json][timeout:25];"
	if id := strings.ToLower(strings.TrimSpace(q.OSMID)); id != "" {
		m := reOSMID.FindStringSubmatch(id)
		if m == nil {
			return "", fmt.Errorf("invalid osm id %q", q.OSMID)
		}
		typ := m[1]
		switch typ {
		case "n":
			typ = "node"
		case "w":
			typ = "way"
		case "r":
			typ = "relation"
		}
		return fmt.Sprintf("%s%s(%s);out tags center;", head, typ, m[2]), nil
	}
	if qid := strings.ToUpper(strings.TrimSpace(q.WikidataID)); qid != "" {
		return fmt.Sprintf(`%snwr["wikidata"="%s"];out tags center 5;`, head, qid), nil
	}
	if strings.TrimSpace(q.Name) != "" && q.HasCoords {
		return fmt.Sprintf(`%snwr(around:%s,%s,%s)["name"];out tags center;`, head,
			strconv.FormatFloat(c.Radius, 'f', 0, 64),
			strconv.FormatFloat(q.Lat, 'f', 6, 64),
			strconv.FormatFloat(q.Lon, 'f', 6, 64)), nil
	}
	return "", fmt.Errorf("overpass query needs an osm id, a wikidata id or a name with coordinates")
}

// Element is one OSM object of an Overpass response.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// Position returns the node position or the way/relation center.
func (e *Element) Position() *model.Coords {
	if e.Lat != nil && e.Lon != nil {
		return &model.Coords{Lat: *e.Lat, Lon: *e.Lon}
	}
	if e.Center != nil {
		return &model.Coords{Lat: e.Center.Lat, Lon: e.Center.Lon}
	}
	return nil
}

type response struct {
	Elements []Element `json:"elements"`
}

// Fetch executes the query for q and returns every element.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Element, error) {
	ql, err := c.BuildQuery(q)
	if err != nil {
		return nil, err
	}

	hash := md5.Sum([]byte(ql))
	cacheKey := "osm:" + hex.EncodeToString(hash[:])
	form := url.Values{"data": {ql}}.Encode()
	body, err := c.request.PostWithCache(ctx, c.Endpoint, []byte(form),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"}, cacheKey)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}
	return resp.Elements, nil
}

// Lookup resolves q to one element and returns its tags as a fragment.
func (c *Client) Lookup(ctx context.Context, q Query) (*model.PoiInfo, error) {
	elements, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	var el *Element
	if strings.TrimSpace(q.OSMID) == "" && strings.TrimSpace(q.WikidataID) == "" {
		el = PickByName(elements, q.Name, geo.Point{Lat: q.Lat, Lon: q.Lon}, c.MinOverlap)
	} else {
		for i := range elements {
			if len(elements[i].Tags) > 0 {
				el = &elements[i]
				break
			}
		}
	}
	if el == nil {
		return nil, ErrNoMatch
	}

	f := ParseTags(el.Tags).Fragment()
	f.Coords = el.Position()
	return f, nil
}

// PickByName returns the element whose name best overlaps name, closer elements
// winning ties. Elements below minOverlap are never picked.
func PickByName(elements []Element, name string, near geo.Point, minOverlap float64) *Element {
	var best *Element
	bestOverlap, bestDist := -1.0, 0.0
	for i := range elements {
		e := &elements[i]
		candidate := e.Tags["name"]
		overlap := textutil.TokenOverlap(name, candidate)
		if alt := textutil.TokenOverlap(name, e.Tags["name:pt"]); alt > overlap {
			overlap = alt
		}
		if overlap < minOverlap {
			continue
		}
		dist := 0.0
		if p := e.Position(); p != nil {
			dist = geo.Distance(near, geo.Point{Lat: p.Lat, Lon: p.Lon})
		}
		if overlap > bestOverlap || (overlap == bestOverlap && dist < bestDist) {
			best, bestOverlap, bestDist = e, overlap, dist
		}
	}
	return best
}
