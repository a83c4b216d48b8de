package enrich

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"poiatlas/pkg/geo"
	"poiatlas/pkg/logging"
	"poiatlas/pkg/model"
	"poiatlas/pkg/opentripmap"
	"poiatlas/pkg/overpass"
	"poiatlas/pkg/places"
	"poiatlas/pkg/request"
	"poiatlas/pkg/sipa"
	"poiatlas/pkg/textutil"
	"poiatlas/pkg/wikidata"
	"poiatlas/pkg/wikipedia"
)

// WikipediaSource is the Wikipedia adapter.
type WikipediaSource interface {
	SummaryFragment(ctx context.Context, lang, title string, near *geo.Point, maxKm float64) (*model.PoiInfo, error)
	GetMediaList(ctx context.Context, lang, title string) ([]string, error)
	GetSections(ctx context.Context, lang, title string) (*wikipedia.Sections, error)
	GeoSearch(ctx context.Context, lang string, lat, lon float64, radiusM, limit int) ([]wikipedia.GeoResult, error)
	Search(ctx context.Context, lang, query string, limit int) ([]string, error)
	PageImages(ctx context.Context, lang, title string, limit int) ([]wikipedia.ImageInfo, error)
}

// WikidataSource is the Wikidata adapter.
type WikidataSource interface {
	Search(ctx context.Context, name string) (string, error)
	FetchFragment(ctx context.Context, id string) (*model.PoiInfo, *wikidata.Entity, error)
}

// OSMSource is the Overpass adapter.
type OSMSource interface {
	Lookup(ctx context.Context, q overpass.Query) (*model.PoiInfo, error)
}

// OTMSource is the OpenTripMap adapter.
type OTMSource interface {
	Enabled() bool
	Lookup(ctx context.Context, name string, lat, lon float64) (*model.PoiInfo, error)
}

// PlacesSource is the Google Places adapter.
type PlacesSource interface {
	Lookup(ctx context.Context, name string, lat, lon float64) (*model.PoiInfo, error)
}

// SIPASource is the heritage registry adapter.
type SIPASource interface {
	Lookup(ctx context.Context, id, pageURL string) (*model.PoiInfo, error)
}

// ImageProber checks image liveness.
type ImageProber interface {
	FilterLive(ctx context.Context, urls []string, want int) ([]string, int)
	FilterHeadAlive(ctx context.Context, urls []string, want int) ([]string, int)
}

// Sources groups the adapters. A nil source is skipped.
type Sources struct {
	Wikipedia WikipediaSource
	Wikidata  WikidataSource
	OSM       OSMSource
	OTM       OTMSource
	Places    PlacesSource
	SIPA      SIPASource
}

// Result is an enriched record plus the image candidates not yet probed,
// which a background pass may use to complete the gallery.
type Result struct {
	Info *model.PoiInfo
	Pool []string
	Kind Kind
}

// Enricher runs the category-gated enrichment pipeline.
type Enricher struct {
	src    Sources
	prober ImageProber
	opts   Options
	logger *slog.Logger
}

// New creates an Enricher. A nil prober keeps images unprobed.
func New(src Sources, prober ImageProber, opts Options) *Enricher {
	return &Enricher{
		src:    src,
		prober: prober,
		opts:   opts,
		logger: slog.With("component", "enricher"),
	}
}

// FetchPoiInfo returns the enriched record for q, or nil when nothing was found.
func (e *Enricher) FetchPoiInfo(ctx context.Context, q Query) (*model.PoiInfo, error) {
	res, err := e.Enrich(ctx, q)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Info, nil
}

// Enrich runs the pipeline. Adapter failures degrade to missing fragments; the
// only error is a cancelled context. A nil result means nothing was found.
func (e *Enricher) Enrich(ctx context.Context, q Query) (*Result, error) {
	log, _ := logging.WithTrace(e.logger)

	name := q.Name()
	if name == "" && !q.hasIdentifiers() {
		log.Debug("No identifying information, skipping")
		return nil, nil
	}
	pt := q.Point()
	kind := Classify(name)
	commercial := e.isCommercial(q.CategoryName())
	tags := overpass.ParseTags(q.featureTags())

	log.Debug("Enriching", "name", name, "kind", kind.String(), "commercial", commercial, "has_coords", pt != nil)

	var info *model.PoiInfo
	if kind == KindViewpoint && pt != nil && e.src.Places != nil {
		info = e.viewpoint(ctx, log, name, *pt)
		applyFeature(info, tags, true)
	} else {
		info = e.general(ctx, log, q, name, pt, commercial, tags)
		applyFeature(info, tags, false)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := e.finishImages(ctx, info)
	if !info.HasSignal() {
		log.Debug("Nothing found", "name", name)
		return nil, nil
	}
	log.Info("Enriched POI", "name", name, "label", info.Label, "images", len(info.Images), "pool", len(pool))
	return &Result{Info: info, Pool: pool, Kind: kind}, nil
}

func (e *Enricher) viewpoint(ctx context.Context, log *slog.Logger, name string, pt geo.Point) *model.PoiInfo {
	frag, err := e.src.Places.Lookup(ctx, name, pt.Lat, pt.Lon)
	if err != nil {
		e.adapterFailed(log, "google", err)
	}
	return Merge(nil, frag)
}

func (e *Enricher) general(ctx context.Context, log *slog.Logger, q Query, name string, pt *geo.Point, commercial bool, tags overpass.Tags) *model.PoiInfo {
	var (
		wdFrag, wpFrag, mediaFrag, sectFrag, osmFrag, otmFrag, sipaFrag *model.PoiInfo
		wdFetched                                                       bool
		lang, title                                                     string
	)

	if !commercial {
		// A known entity may name its own article.
		if q.WikidataID != "" && q.Wikipedia == "" && e.src.Wikidata != nil {
			var ent *wikidata.Entity
			wdFrag, ent = e.fetchWikidata(ctx, log, q.WikidataID, pt)
			wdFetched = true
			if ent != nil {
				lang, title, _ = ent.WikipediaTitle(e.opts.Languages)
			}
		}
		if title == "" {
			lang, title = e.resolveWikipedia(ctx, log, q, name, pt)
		}
	}

	var g errgroup.Group
	if title != "" && e.src.Wikipedia != nil {
		g.Go(func() error {
			wpFrag, mediaFrag, sectFrag = e.fetchWikipedia(ctx, log, lang, title, pt)
			return nil
		})
	}
	if e.src.OSM != nil {
		g.Go(func() error {
			osmFrag = e.fetchOSM(ctx, log, q, name, pt)
			return nil
		})
	}
	if e.src.OTM != nil && e.src.OTM.Enabled() && pt != nil && name != "" {
		g.Go(func() error {
			f, err := e.src.OTM.Lookup(ctx, name, pt.Lat, pt.Lon)
			if err != nil {
				e.adapterFailed(log, "opentripmap", err)
			}
			otmFrag = f
			return nil
		})
	}
	_ = g.Wait()

	if !commercial {
		if !wdFetched && e.src.Wikidata != nil {
			wdID := firstNonEmpty(q.WikidataID, field(wpFrag, wdIDOf), field(osmFrag, wdIDOf))
			if wdID == "" && name != "" {
				id, err := e.src.Wikidata.Search(ctx, name)
				if err != nil {
					e.adapterFailed(log, "wikidata", err)
				}
				wdID = id
			}
			if wdID != "" {
				wdFrag, _ = e.fetchWikidata(ctx, log, wdID, pt)
			}
		}

		sipaID := firstNonEmpty(q.SIPAID, field(wdFrag, func(f *model.PoiInfo) string { return f.SIPAID }))
		if e.src.SIPA != nil && (sipaID != "" || q.SIPAURL != "") {
			f, err := e.src.SIPA.Lookup(ctx, sipaID, q.SIPAURL)
			if err != nil {
				e.adapterFailed(log, "sipa", err)
			}
			sipaFrag = f
		}
	}

	info := MergeAll(wpFrag, mediaFrag, wdFrag, sectFrag, osmFrag, otmFrag, sipaFrag)

	cands := make([]model.DescriptionCandidate, 0, 5)
	for _, c := range []struct {
		frag *model.PoiInfo
		src  model.Source
	}{
		{wpFrag, model.SourceWikipedia},
		{wdFrag, model.SourceWikidata},
		{osmFrag, model.SourceOSM},
		{otmFrag, model.SourceOpenTripMap},
	} {
		if c.frag != nil && c.frag.Description != "" {
			cands = append(cands, model.DescriptionCandidate{
				Text: c.frag.Description, Source: c.src, Title: c.frag.Label, Coords: c.frag.Coords,
			})
		}
	}
	if tags.Description != "" {
		cands = append(cands, model.DescriptionCandidate{Text: tags.Description, Source: model.SourceFeature, Title: tags.Name})
	}

	target := name
	if target == "" {
		target = info.Label
	}
	if best, ok := PickDescription(target, cands); ok {
		info.Description = best.Text
		logging.Trace(log, "Description picked", "source", best.Source, "title", best.Title, "candidates", len(cands))
	}
	return info
}

// resolveWikipedia finds an article for the POI: an explicit tag, then a
// coordinate search, then a text search, each in language order.
func (e *Enricher) resolveWikipedia(ctx context.Context, log *slog.Logger, q Query, name string, pt *geo.Point) (lang, title string) {
	if q.Wikipedia != "" {
		if l, t, ok := wikipedia.ParseTag(q.Wikipedia); ok {
			return l, t
		}
	}
	if e.src.Wikipedia == nil || name == "" {
		return "", ""
	}

	if pt != nil {
		for _, l := range e.opts.Languages {
			results, err := e.src.Wikipedia.GeoSearch(ctx, l, pt.Lat, pt.Lon, int(e.opts.GeoSearchRadius), 20)
			if err != nil {
				e.adapterFailed(log, "wikipedia", err)
				continue
			}
			if best := BestGeoCandidate(name, results, e.opts.GeoSearchRadius, e.opts.OverlapThreshold); best != nil {
				log.Debug("Geosearch match", "lang", l, "title", best.Title, "dist", best.Dist)
				return l, best.Title
			}
		}
	}

	for _, l := range e.opts.Languages {
		titles, err := e.src.Wikipedia.Search(ctx, l, name, 5)
		if err != nil {
			e.adapterFailed(log, "wikipedia", err)
			continue
		}
		for _, t := range titles {
			if textutil.TokenOverlap(name, t) >= e.opts.OverlapThreshold {
				log.Debug("Text search match", "lang", l, "title", t)
				return l, t
			}
		}
	}
	return "", ""
}

// GeoScore is overlap*8 + max(0, 1-dist/radius)*3, plus 5 for viewpoint titles.
func GeoScore(name string, r wikipedia.GeoResult, radius float64) (score, overlap float64, viewpoint bool) {
	overlap = textutil.TokenOverlap(name, r.Title)
	viewpoint = IsViewpointTitle(r.Title)
	proximity := 0.0
	if radius > 0 {
		proximity = math.Max(0, 1-r.Dist/radius)
	}
	score = overlap*8 + proximity*3
	if viewpoint {
		score += 5
	}
	return score, overlap, viewpoint
}

// BestGeoCandidate returns the top-scoring result if it names a viewpoint or
// overlaps name by at least threshold. Earlier results win ties.
func BestGeoCandidate(name string, results []wikipedia.GeoResult, radius, threshold float64) *wikipedia.GeoResult {
	var best *wikipedia.GeoResult
	var bestScore, bestOverlap float64
	var bestViewpoint bool
	for i := range results {
		s, o, v := GeoScore(name, results[i], radius)
		if best == nil || s > bestScore {
			best, bestScore, bestOverlap, bestViewpoint = &results[i], s, o, v
		}
	}
	if best == nil || (!bestViewpoint && bestOverlap < threshold) {
		return nil
	}
	return best
}

func (e *Enricher) fetchWikipedia(ctx context.Context, log *slog.Logger, lang, title string, pt *geo.Point) (summary, media, sections *model.PoiInfo) {
	summary, err := e.src.Wikipedia.SummaryFragment(ctx, lang, title, pt, e.opts.MaxDistanceKm)
	if err != nil {
		e.adapterFailed(log, "wikipedia", err)
		return nil, nil, nil
	}

	if urls, err := e.src.Wikipedia.GetMediaList(ctx, lang, title); err != nil {
		e.adapterFailed(log, "wikipedia", err)
	} else if len(urls) > 0 {
		media = &model.PoiInfo{Images: urls}
	}

	if s, err := e.src.Wikipedia.GetSections(ctx, lang, title); err != nil {
		e.adapterFailed(log, "wikipedia", err)
	} else if s.History != "" || s.Architecture != "" {
		sections = &model.PoiInfo{HistoryText: s.History, ArchitectureText: s.Architecture}
	}
	return summary, media, sections
}

func (e *Enricher) fetchWikidata(ctx context.Context, log *slog.Logger, id string, pt *geo.Point) (*model.PoiInfo, *wikidata.Entity) {
	frag, ent, err := e.src.Wikidata.FetchFragment(ctx, id)
	if err != nil {
		e.adapterFailed(log, "wikidata", err)
		return nil, nil
	}
	if pt != nil && frag.Coords != nil && e.opts.MaxDistanceKm > 0 {
		if d := geo.DistanceKm(*pt, geo.Point{Lat: frag.Coords.Lat, Lon: frag.Coords.Lon}); d > e.opts.MaxDistanceKm {
			log.Info("Wikidata entity too far, discarded", "id", id, "km", math.Round(d))
			return nil, nil
		}
	}
	return frag, ent
}

func (e *Enricher) fetchOSM(ctx context.Context, log *slog.Logger, q Query, name string, pt *geo.Point) *model.PoiInfo {
	oq := overpass.Query{OSMID: q.OSMID, WikidataID: q.WikidataID, Name: name}
	if pt != nil {
		oq.Lat, oq.Lon, oq.HasCoords = pt.Lat, pt.Lon, true
	}
	if oq.OSMID == "" && oq.WikidataID == "" && (name == "" || !oq.HasCoords) {
		return nil
	}
	f, err := e.src.OSM.Lookup(ctx, oq)
	if err != nil {
		e.adapterFailed(log, "osm", err)
		return nil
	}
	return f
}

// finishImages normalizes and probes the gallery: the first GalleryLive live
// candidates among the first ModalPrecap are kept and the first survivor becomes
// the primary image. It returns the candidates left for background refinement.
func (e *Enricher) finishImages(ctx context.Context, info *model.PoiInfo) []string {
	all := DedupImages(append([]string{info.Image}, info.Images...), e.opts.ImagePool)
	if len(all) == 0 {
		info.Image, info.Images = "", nil
		return nil
	}

	head := all[:min(len(all), e.opts.ModalPrecap)]
	var live []string
	used := 0
	if e.prober != nil {
		live, used = e.prober.FilterLive(ctx, head, e.opts.GalleryLive)
	} else {
		used = min(len(head), e.opts.GalleryLive)
		live = append([]string(nil), head[:used]...)
	}

	info.Images = live
	info.Image = ""
	if len(live) > 0 {
		info.Image = live[0]
	}
	return append([]string(nil), all[used:]...)
}

// Refine probes pool for more live images until the gallery reaches
// GalleryTarget. It returns the extended gallery, or nil when nothing was added.
func (e *Enricher) Refine(ctx context.Context, current, pool []string) []string {
	need := e.opts.GalleryTarget - len(current)
	if need <= 0 || len(pool) == 0 {
		return nil
	}
	var extra []string
	if e.prober != nil {
		extra, _ = e.prober.FilterLive(ctx, pool, need)
	} else {
		extra = pool[:min(len(pool), need)]
	}
	if len(extra) == 0 {
		return nil
	}
	return DedupImages(append(append([]string(nil), current...), extra...), e.opts.GalleryTarget)
}

func (e *Enricher) isCommercial(category string) bool {
	c := textutil.Normalize(category)
	if c == "" {
		return false
	}
	for _, cc := range e.opts.CommercialCategories {
		if textutil.Normalize(cc) == c {
			return true
		}
	}
	return false
}

// adapterFailed logs a failed adapter call. Misses are expected and logged at debug level.
func (e *Enricher) adapterFailed(log *slog.Logger, provider string, err error) {
	if isMiss(err) {
		log.Debug("Adapter found nothing", "provider", provider, "error", err)
		return
	}
	log.Warn("Adapter failed", "provider", provider, "error", err)
}

func isMiss(err error) bool {
	for _, target := range []error{
		wikipedia.ErrNotFound, wikipedia.ErrTooFar, wikidata.ErrNotFound,
		overpass.ErrNoMatch, opentripmap.ErrNoMatch, places.ErrNoMatch, sipa.ErrNoReference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return request.IsNotFound(err)
}

func wdIDOf(f *model.PoiInfo) string { return f.WikidataID }

func field(f *model.PoiInfo, get func(*model.PoiInfo) string) string {
	if f == nil {
		return ""
	}
	return get(f)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
