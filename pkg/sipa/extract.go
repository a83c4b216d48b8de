package sipa

import (
	"regexp"
	"strconv"
	"strings"

	"poiatlas/pkg/model"
	"poiatlas/pkg/textutil"
)

// MaxBlockLen caps each extracted block, in runes.
const MaxBlockLen = 4000

// Block labels in preference order.
var (
	historyLabels      = []string{"Nota Histórico-Artística", "História"}
	architectureLabels = []string{"Descrição", "Arquitectura", "Arquitetura"}
	chronologyLabels   = []string{"Cronologia", "Datação"}
)

// otherLabels end a block without being extracted.
var otherLabels = []string{
	"Designação", "Localização", "Acesso", "Protecção", "Proteção", "Enquadramento",
	"Tipologia", "Características Particulares", "Dados Técnicos", "Materiais",
	"Época Construção", "Arquitecto / Construtor / Autor", "Tipo Intervenção", "Intervenção Realizada",
	"Utilização Inicial", "Utilização Actual", "Propriedade", "Afectação", "Observações",
	"Bibliografia", "Documentação Gráfica", "Documentação Fotográfica", "Documentação Administrativa",
	"Autor e Data", "Actualização",
}

// Record holds the labeled blocks of one SIPA page.
type Record struct {
	History      string
	Architecture string
	Chronology   string
	Date         *DateToken
}

// Parse splits page text into blocks and extracts the construction date.
func Parse(text string) *Record {
	sections := splitByHeading(text)
	rec := &Record{
		History:      pick(sections, historyLabels),
		Architecture: pick(sections, architectureLabels),
		Chronology:   pick(sections, chronologyLabels),
	}
	for _, t := range []string{rec.Chronology, rec.Architecture, rec.History} {
		if d := ExtractDate(t); d != nil {
			rec.Date = d
			break
		}
	}
	return rec
}

// Fragment converts the record into a partial record.
func (r *Record) Fragment() *model.PoiInfo {
	f := &model.PoiInfo{
		HistoryText:      r.History,
		ArchitectureText: r.Architecture,
	}
	if f.HistoryText == "" {
		f.HistoryText = r.Chronology
	}
	if r.Date != nil {
		f.BuiltPeriod = &model.BuiltPeriod{Start: model.StringPtr(r.Date.Start), End: model.StringPtr(r.Date.End)}
		f.Inception = r.Date.Start
	}
	return f
}

var headingIndex = func() map[string]string {
	m := make(map[string]string)
	for _, group := range [][]string{historyLabels, architectureLabels, chronologyLabels, otherLabels} {
		for _, l := range group {
			m[textutil.Normalize(l)] = l
		}
	}
	return m
}()

// matchHeading returns the label a line opens and the rest of the line.
func matchHeading(line string) (label, rest string, ok bool) {
	line = strings.TrimSpace(line)
	head, tail, hasColon := strings.Cut(line, ":")
	if l, found := headingIndex[textutil.Normalize(head)]; found {
		if !hasColon {
			return l, "", true
		}
		return l, strings.TrimSpace(tail), true
	}
	return "", "", false
}

func splitByHeading(text string) map[string]string {
	out := make(map[string]string)
	var current string
	var buf []string
	flush := func() {
		if current != "" {
			if _, seen := out[current]; !seen {
				out[current] = truncate(strings.TrimSpace(strings.Join(buf, "\n\n")), MaxBlockLen)
			}
		}
		buf = buf[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if label, rest, ok := matchHeading(line); ok {
			flush()
			current = label
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return out
}

func pick(sections map[string]string, labels []string) string {
	for _, l := range labels {
		if s := sections[l]; s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexAny(cut, " \n"); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

// DateToken is a construction date found in free text.
type DateToken struct {
	Text  string // as written, e.g. "século XII" or "1501-1520"
	Start string // yyyy
	End   string // yyyy, empty when open
}

var (
	reCentury   = regexp.MustCompile(`(?i)\bs[ée]c(?:ulo|\.)?\s+([IVXL]+)\b`)
	reYearRange = regexp.MustCompile(`\b(1\d{3}|20\d{2})\s*(?:-|–|/|a|até)\s*(1\d{3}|20\d{2})\b`)
	reYear      = regexp.MustCompile(`\b(1\d{3}|20\d{2})\b`)
)

// ExtractDate returns the earliest date or century token in text. A range
// starting at the same position as a bare year wins over it.
func ExtractDate(text string) *DateToken {
	if text == "" {
		return nil
	}
	var best *DateToken
	bestPos := -1
	consider := func(pos int, d *DateToken) {
		if d != nil && (bestPos < 0 || pos < bestPos) {
			best, bestPos = d, pos
		}
	}

	if m := reYearRange.FindStringSubmatchIndex(text); m != nil {
		consider(m[0], &DateToken{Text: text[m[0]:m[1]], Start: text[m[2]:m[3]], End: text[m[4]:m[5]]})
	}
	if m := reYear.FindStringSubmatchIndex(text); m != nil {
		consider(m[0], &DateToken{Text: text[m[0]:m[1]], Start: text[m[2]:m[3]]})
	}
	if m := reCentury.FindStringSubmatchIndex(text); m != nil {
		if n := romanToInt(text[m[2]:m[3]]); n > 0 && n <= 21 {
			consider(m[0], &DateToken{
				Text:  text[m[0]:m[1]],
				Start: pad4((n-1)*100 + 1),
				End:   pad4(n * 100),
			})
		}
	}
	return best
}

func pad4(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func romanToInt(s string) int {
	vals := map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100}
	s = strings.ToUpper(s)
	total := 0
	for i := 0; i < len(s); i++ {
		v := vals[s[i]]
		if v == 0 {
			return 0
		}
		if i+1 < len(s) && vals[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}
