package api

import (
	"context"
	"net/http"
	"strconv"

	"poiatlas/pkg/enrich"
)

// GalleryBuilder builds district photo galleries.
type GalleryBuilder interface {
	DistrictGallery(ctx context.Context, lang, title string, count int) ([]enrich.GalleryImage, error)
}

// GalleryHandler serves district galleries.
type GalleryHandler struct {
	builder     GalleryBuilder
	defaultLang string
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(b GalleryBuilder, defaultLang string) *GalleryHandler {
	if defaultLang == "" {
		defaultLang = "pt"
	}
	return &GalleryHandler{builder: b, defaultLang: defaultLang}
}

// Handle serves GET /api/districts/{title}/gallery?lang=pt&count=10.
func (h *GalleryHandler) Handle(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = h.defaultLang
	}
	count := 0
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		count = n
	}

	imgs, err := h.builder.DistrictGallery(r.Context(), lang, title, count)
	if err != nil {
		http.Error(w, "failed to build gallery", http.StatusBadGateway)
		return
	}
	if imgs == nil {
		imgs = []enrich.GalleryImage{}
	}
	writeJSON(w, imgs)
}
