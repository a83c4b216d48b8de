package articleproc

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"poiatlas/pkg/textutil"
)

// Block is one heading, paragraph or list item in document order.
type Block struct {
	Heading bool
	Level   int // 1..6 for headings
	Text    string
}

// Section is a heading with the prose that follows it up to the next heading
// of the same or a higher level.
type Section struct {
	Title string
	Level int
	Text  string
}

// ExtractBlocks parses rendered Wikipedia HTML and returns its prose blocks.
// Citations, styles, tables, figures and navigation boxes are dropped.
func ExtractBlocks(r io.Reader) ([]Block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := findParserOutput(doc)
	if root == nil {
		// Fallback to body if we can't find the specific Wikipedia class
		root = findBody(doc)
	}
	if root == nil {
		return nil, nil
	}

	var blocks []Block
	collectBlocks(root, &blocks)
	return blocks, nil
}

func collectBlocks(n *html.Node, out *[]Block) {
	if n.Type == html.ElementNode {
		if isSkipped(n) {
			return
		}
		if lvl := headingLevel(n); lvl > 0 {
			if text := cleanParagraph(n); text != "" {
				*out = append(*out, Block{Heading: true, Level: lvl, Text: text})
			}
			return
		}
		switch n.DataAtom {
		case atom.P, atom.Li, atom.Dd:
			if text := cleanParagraph(n); text != "" {
				*out = append(*out, Block{Text: text})
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectBlocks(c, out)
	}
}

// Sections groups blocks under their headings. Content before the first heading
// is returned as a section with an empty title.
func Sections(blocks []Block) []Section {
	var out []Section
	for i := 0; i < len(blocks); i++ {
		b := blocks[i]
		if !b.Heading {
			if i == 0 {
				out = append(out, Section{Text: joinUntil(blocks, 0, 7)})
			}
			continue
		}
		out = append(out, Section{Title: b.Text, Level: b.Level, Text: joinUntil(blocks, i+1, b.Level)})
	}
	return out
}

// joinUntil concatenates non-heading text from start until a heading with level <= stop.
func joinUntil(blocks []Block, start, stop int) string {
	var parts []string
	for _, b := range blocks[start:] {
		if b.Heading {
			if b.Level <= stop {
				break
			}
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// FindSection returns the first section with text whose title contains any of the
// terms. Matching ignores case and diacritics.
func FindSection(sections []Section, terms ...string) (Section, bool) {
	norm := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := textutil.Normalize(t); n != "" {
			norm = append(norm, n)
		}
	}
	for _, s := range sections {
		if s.Title == "" || s.Text == "" {
			continue
		}
		if textutil.ContainsAny(textutil.Normalize(s.Title), norm) {
			return s, true
		}
	}
	return Section{}, false
}

var (
	reSpaces    = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips all markup from an HTML document. Block-level elements become
// paragraph breaks and <br> becomes a line break.
func PlainText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writePlain(doc, &b)

	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(reSpaces.ReplaceAllString(l, " "))
	}
	text := reBlankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

func writePlain(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head, atom.Noscript:
			return
		case atom.Br:
			b.WriteString("\n")
			return
		}
	}
	block := n.Type == html.ElementNode && isBlockElement(n.DataAtom)
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writePlain(c, b)
	}
	if block {
		b.WriteString("\n\n")
	}
}

func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Section,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Dd, atom.Dt, atom.Td, atom.Th:
		return true
	}
	return false
}

func headingLevel(n *html.Node) int {
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

func isSkipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Style, atom.Script, atom.Table, atom.Figure, atom.Sup:
		return true
	}
	if isStructuralNoise(n) {
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "class" && (strings.Contains(a.Val, "mw-editsection") || strings.Contains(a.Val, "infobox") || strings.Contains(a.Val, "thumb")) {
			return true
		}
	}
	return false
}

func findParserOutput(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Div {
		for _, a := range n.Attr {
			if a.Key == "class" && strings.Contains(a.Val, "mw-parser-output") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findParserOutput(c); res != nil {
			return res
		}
	}
	return nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findBody(c); res != nil {
			return res
		}
	}
	return nil
}

func cleanParagraph(p *html.Node) string {
	var b strings.Builder
	traverseParagraph(p, &b)
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ReplaceAll(b.String(), "\n", " "), " "))
}

func traverseParagraph(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	if n.Type == html.ElementNode {
		// Skip unwanted elements inside paragraphs
		// - <sup> for citations [1][2]
		// - <style>, <script>
		// - .mw-empty-elt, .mw-editsection
		if n.DataAtom == atom.Sup || n.DataAtom == atom.Style || n.DataAtom == atom.Script {
			return
		}
		for _, a := range n.Attr {
			if a.Key == "class" && (strings.Contains(a.Val, "mw-empty-elt") || strings.Contains(a.Val, "reference") || strings.Contains(a.Val, "mw-editsection")) {
				return
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverseParagraph(c, b)
	}
}

func isStructuralNoise(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			val := strings.ToLower(a.Val)
			// Navigation boxes, reference lists, and galleries are almost always terminal.
			if strings.Contains(val, "reflist") ||
				strings.Contains(val, "references") ||
				strings.Contains(val, "navbox") ||
				strings.Contains(val, "asbox") || // Stub notice
				strings.Contains(val, "catlinks") {
				return true
			}
		}
	}
	return false
}
