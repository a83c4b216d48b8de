// Package commons builds and normalizes Wikimedia Commons file URLs.
package commons

import (
	"net/url"
	"regexp"
	"strings"
)

// FilePathPrefix is the canonical direct-file form every Commons URL is rewritten to.
const FilePathPrefix = "https://commons.wikimedia.org/wiki/Special:FilePath/"

var reCommonsFile = regexp.MustCompile(`(?i)^https?://commons\.wikimedia\.org/wiki/(?:Special:Redirect/file/|Special:FilePath/|File:|Ficheiro:)([^?#]+)(.*)$`)

// nameEscaper escapes the characters that would end the path segment. Everything
// else stays readable, so normalized URLs keep their UTF-8 names.
var nameEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// FilePathURL returns the canonical URL for a Commons file name. A leading
// "File:"/"Ficheiro:" namespace is dropped and spaces become underscores.
func FilePathURL(name string) string {
	name = FileName(name)
	if name == "" {
		return ""
	}
	return FilePathPrefix + nameEscaper.Replace(name)
}

// FileName strips the namespace prefix and normalizes spaces.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, ":"); i > 0 {
		switch strings.ToLower(name[:i]) {
		case "file", "ficheiro", "image", "imagem":
			name = name[i+1:]
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// NormalizeURL rewrites Special:Redirect/file, File: and Ficheiro: Commons links to
// the Special:FilePath form. A query string is kept. Other URLs pass through unchanged.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	m := reCommonsFile.FindStringSubmatch(u)
	if m == nil {
		return u
	}
	name := m[1]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return FilePathPrefix + nameEscaper.Replace(strings.ReplaceAll(name, " ", "_")) + m[2]
}

// IsUnwantedImage checks if a filename or URL represents a vector graphic, icon, map, or other unwanted type.
func IsUnwantedImage(name string) bool {
	lower := strings.ToLower(name)

	// 1. Unwanted Extensions
	badExtensions := []string{".svg", ".gif", ".tif", ".ogv", ".webm", ".pdf"}
	for _, ext := range badExtensions {
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"/") || strings.Contains(lower, ext+".png") {
			return true
		}
	}

	// 2. Unwanted Keywords in Filename
	badKeywords := []string{
		"logo", "icon", "flag", "coat of arms", "coat_of_arms", "brasão", "brasao",
		"locator", "diagram", "chart", "signature",
		"stub", "placeholder", "missing",
	}
	for _, kw := range badKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BlockedTerms flag non-photographic assets in district galleries.
var BlockedTerms = []string{
	"coat of arms", "coat_of_arms", "brasão", "brasao", "escudo", "bandeira", "flag",
	"logo", "logotipo", "symbol", "símbolo", "simbolo", "seal", "map", "mapa", "locator", "outline",
}

// IsBlockedDistrictImage reports whether a gallery URL or title names a
// non-photographic asset or an SVG file.
func IsBlockedDistrictImage(s string) bool {
	lower := strings.ToLower(s)
	if unescaped, err := url.PathUnescape(lower); err == nil {
		lower = unescaped
	}
	if strings.HasSuffix(lower, ".svg") || strings.Contains(lower, ".svg/") || strings.Contains(lower, ".svg.png") {
		return true
	}
	for _, t := range BlockedTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
