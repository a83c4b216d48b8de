// Package main provides a one-shot CLI that enriches a single POI, or builds a
// district gallery, and prints the result as JSON. It uses the same config and
// cache database as the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"poiatlas/internal/app"
	"poiatlas/pkg/config"
	"poiatlas/pkg/enrich"
)

type options struct {
	name     string
	coords   string
	category string
	wikidata string
	wiki     string
	osm      string
	sipa     string
	district string
	lang     string
	count    int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/poiatlas.yaml", "Path to config file")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall lookup timeout")
	var o options
	flag.StringVar(&o.name, "name", "", "Approximate POI name")
	flag.StringVar(&o.coords, "at", "", "Approximate coordinates as lat,lon")
	flag.StringVar(&o.category, "category", "", "Caller category (e.g. restaurant)")
	flag.StringVar(&o.wikidata, "wikidata", "", "Wikidata QID")
	flag.StringVar(&o.wiki, "wikipedia", "", "Wikipedia reference as lang:Title")
	flag.StringVar(&o.osm, "osm", "", "OSM reference as type/id")
	flag.StringVar(&o.sipa, "sipa", "", "SIPA record id")
	flag.StringVar(&o.district, "district", "", "Build a district gallery for this Wikipedia title instead")
	flag.StringVar(&o.lang, "lang", "", "Wikipedia language for -district (default: first configured)")
	flag.IntVar(&o.count, "count", 0, "Gallery size for -district")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svcs, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	var out any
	if o.district != "" {
		lang := o.lang
		if lang == "" {
			lang = cfg.Enrich.Languages[0]
		}
		out, err = svcs.Enricher.DistrictGallery(ctx, lang, o.district, o.count)
	} else {
		q, qerr := buildQuery(o)
		if qerr != nil {
			return qerr
		}
		out, err = svcs.Enricher.FetchPoiInfo(ctx, q)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// buildQuery turns the command line flags into an enrichment query.
func buildQuery(o options) (enrich.Query, error) {
	q := enrich.Query{
		WikidataID: strings.TrimSpace(o.wikidata),
		Wikipedia:  strings.TrimSpace(o.wiki),
		OSMID:      strings.TrimSpace(o.osm),
		SIPAID:     strings.TrimSpace(o.sipa),
		Category:   strings.TrimSpace(o.category),
		Approx:     enrich.Approx{Name: strings.TrimSpace(o.name)},
	}
	if o.coords != "" {
		lat, lon, err := parseCoords(o.coords)
		if err != nil {
			return q, err
		}
		q.Approx.Lat, q.Approx.Lon = &lat, &lon
	}
	if q.Approx.Name == "" && q.Approx.Lat == nil && q.WikidataID == "" && q.Wikipedia == "" && q.OSMID == "" && q.SIPAID == "" {
		return q, errors.New("nothing to look up: pass -name, -at or an identifier")
	}
	return q, nil
}

func parseCoords(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid coordinates %q, want lat,lon", s)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %s", s)
	}
	return lat, lon, nil
}
