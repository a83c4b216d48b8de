package enrich

import (
	"poiatlas/pkg/config"
)

// Options holds the pipeline heuristics.
type Options struct {
	Languages            []string
	MaxDistanceKm        float64
	GeoSearchRadius      float64 // meters
	OverlapThreshold     float64
	ImagePool            int
	ModalPrecap          int
	GalleryLive          int
	GalleryTarget        int
	DistrictGallery      int
	CommercialCategories []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFrom(config.DefaultConfig().Enrich)
}

// OptionsFrom maps the YAML enrich section onto Options.
func OptionsFrom(c config.EnrichConfig) Options {
	return Options{
		Languages:            append([]string(nil), c.Languages...),
		MaxDistanceKm:        c.MaxDistance.Kilometers(),
		GeoSearchRadius:      c.GeoSearchRadius.Meters(),
		OverlapThreshold:     c.OverlapThreshold,
		ImagePool:            c.ImagePool,
		ModalPrecap:          c.ModalPrecap,
		GalleryLive:          c.GalleryLive,
		GalleryTarget:        c.GalleryTarget,
		DistrictGallery:      c.DistrictGallery,
		CommercialCategories: append([]string(nil), c.CommercialCategories...),
	}
}
