package overpass

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"poiatlas/pkg/model"
)

var (
	reDate    = regexp.MustCompile(`^(\d{4})(?:-(\d{2})(?:-(\d{2}))?)?$`)
	reCentury = regexp.MustCompile(`^c(\d{1,2})$`)
	reDecade  = regexp.MustCompile(`^(\d{3})0s$`)
)

// ParseStartDate reads an OSM start_date value. Supported forms are yyyy,
// yyyy-mm, yyyy-mm-dd, open-ended "yyyy+", ranges "a..b", decades "1890s" and
// centuries "C15". Approximation markers ("~", "c.", "circa") are ignored.
// Unrecognised values yield nil.
func ParseStartDate(s string) *model.BuiltPeriod {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"~", "circa ", "ca. ", "c. "} {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "~"))
	if s == "" {
		return nil
	}

	if from, to, ok := strings.Cut(s, ".."); ok {
		start, _ := parseBound(from)
		_, end := parseBound(to)
		if start == nil && end == nil {
			return nil
		}
		return &model.BuiltPeriod{Start: start, End: end}
	}

	if open, ok := strings.CutSuffix(s, "+"); ok {
		start, _ := parseBound(open)
		if start == nil {
			return nil
		}
		return &model.BuiltPeriod{Start: start}
	}

	start, end := parseBound(s)
	if start == nil {
		return nil
	}
	bp := &model.BuiltPeriod{Start: start}
	if end != nil && *end != *start {
		bp.End = end
	}
	return bp
}

// parseBound returns the earliest and latest date a single token can denote.
func parseBound(s string) (lo, hi *string) {
	s = strings.TrimSpace(s)
	if m := reDate.FindStringSubmatch(s); m != nil {
		if m[2] != "" && !inRange(m[2], 1, 12) {
			return nil, nil
		}
		if m[3] != "" && !inRange(m[3], 1, 31) {
			return nil, nil
		}
		return &s, &s
	}
	if m := reDecade.FindStringSubmatch(s); m != nil {
		a, b := m[1]+"0", m[1]+"9"
		return &a, &b
	}
	if m := reCentury.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n == 0 {
			return nil, nil
		}
		a, b := fmt.Sprintf("%04d", (n-1)*100+1), fmt.Sprintf("%04d", n*100)
		return &a, &b
	}
	return nil, nil
}

func inRange(s string, lo, hi int) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= lo && n <= hi
}
