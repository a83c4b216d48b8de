package enrich

import (
	"context"
	"errors"
)

// ErrNoWikipedia is returned when galleries are requested without a Wikipedia source.
var ErrNoWikipedia = errors.New("enrich: wikipedia source not configured")

const galleryCandidates = 50

// DistrictGallery builds a ranked, HEAD-probed photo gallery from the files of
// a district article. count is capped at DistrictGallery.
func (e *Enricher) DistrictGallery(ctx context.Context, lang, title string, count int) ([]GalleryImage, error) {
	if e.src.Wikipedia == nil {
		return nil, ErrNoWikipedia
	}
	if count <= 0 || count > e.opts.DistrictGallery {
		count = e.opts.DistrictGallery
	}

	infos, err := e.src.Wikipedia.PageImages(ctx, lang, title, galleryCandidates)
	if err != nil {
		return nil, err
	}
	imgs := make([]GalleryImage, 0, len(infos))
	for _, ii := range infos {
		imgs = append(imgs, GalleryImage{URL: ii.URL, Title: ii.Title, Width: ii.Width, Height: ii.Height})
	}
	ranked := RankDistrictImages(FilterDistrictImages(imgs))

	if e.prober == nil {
		return ranked[:min(len(ranked), count)], nil
	}

	urls := make([]string, len(ranked))
	byURL := make(map[string]GalleryImage, len(ranked))
	for i, img := range ranked {
		urls[i] = img.URL
		byURL[img.URL] = img
	}
	live, _ := e.prober.FilterHeadAlive(ctx, urls, count)
	out := make([]GalleryImage, 0, len(live))
	for _, u := range live {
		out = append(out, byURL[u])
	}
	e.logger.Debug("District gallery", "title", title, "candidates", len(infos), "kept", len(out))
	return out, nil
}
