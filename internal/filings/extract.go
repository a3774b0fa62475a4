// Package filings extracts named narrative sections from SEC filing documents.
package filings

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// DefaultSections are the 10-K sections extracted when none are requested
var DefaultSections = []string{
	"Item 1. Business",
	"Item 1A. Risk Factors",
	"Item 7. Management's Discussion and Analysis",
}

// minSectionChars separates a real section from a table of contents entry
const minSectionChars = 200

// tocPageNumber matches a heading line ending in a page reference
var tocPageNumber = regexp.MustCompile(`\s\d{1,3}$`)

// itemPrefix lets a bare section name match after an "Item 7A." label
const itemPrefix = `(?:item\s*\d+[a-z]?\s*[\.:]?\s*)?`

// block is one structural element of the document in reading order
type block struct {
	text string
	html string
}

var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "table": true, "pre": true, "section": true, "article": true,
	"blockquote": true, "body": true, "center": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
}

var skipTags = map[string]bool{"script": true, "style": true, "head": true, "title": true, "noscript": true}

// SectionPattern builds a whitespace tolerant, case-insensitive pattern for a
// section name anchored at the start of an element's text, after an optional
// "Item N." label. Apostrophes match both the straight and typographic forms.
func SectionPattern(name string) *regexp.Regexp {
	words := strings.Fields(name)
	parts := make([]string, 0, len(words))
	for _, w := range words {
		q := regexp.QuoteMeta(w)
		q = strings.ReplaceAll(q, "'", "['’]")
		parts = append(parts, q)
	}
	return regexp.MustCompile(`(?i)^\s*` + itemPrefix + strings.Join(parts, `\s*`))
}

// Extract returns the text of each requested section found in document,
// keyed by section name. Sections that are not found are omitted.
func Extract(document string, sectionNames []string) map[string]string {
	sections := extractSections(document, sectionNames)
	result := make(map[string]string, len(sections))
	for _, s := range sections {
		result[s.name] = s.text
	}
	return result
}

type extracted struct {
	name   string
	text   string
	blocks []block
}

// extractSections finds each section heading and collects the blocks that
// follow it up to the next requested heading or the end of the document.
// Table of contents lines end in a page number or are followed by fewer than
// minSectionChars; a later body heading is preferred when one exists.
func extractSections(document string, sectionNames []string) []extracted {
	blocks := splitBlocks(document)

	patterns := make([]*regexp.Regexp, len(sectionNames))
	for i, name := range sectionNames {
		patterns[i] = SectionPattern(name)
	}

	isBoundary := func(text string) bool {
		for _, p := range patterns {
			if p.MatchString(text) {
				return true
			}
		}
		return false
	}

	var result []extracted
	for i, name := range sectionNames {
		var first, firstBody *extracted
		var chosen *extracted
		for start, b := range blocks {
			if !patterns[i].MatchString(b.text) {
				continue
			}
			candidate := collect(name, blocks, start, isBoundary)
			if candidate.text == "" {
				continue
			}
			if first == nil {
				first = &candidate
			}
			if tocPageNumber.MatchString(b.text) {
				continue
			}
			if firstBody == nil {
				firstBody = &candidate
			}
			if len(candidate.text) >= minSectionChars {
				chosen = &candidate
				break
			}
		}
		if chosen == nil {
			chosen = firstBody
		}
		if chosen == nil {
			chosen = first
		}
		if chosen != nil {
			result = append(result, *chosen)
		}
	}
	return result
}

// collect concatenates the blocks after start up to the next boundary
func collect(name string, blocks []block, start int, isBoundary func(string) bool) extracted {
	out := extracted{name: name}
	var parts []string
	for j := start + 1; j < len(blocks); j++ {
		if isBoundary(blocks[j].text) {
			break
		}
		parts = append(parts, blocks[j].text)
		out.blocks = append(out.blocks, blocks[j])
	}
	out.text = strings.TrimSpace(strings.Join(parts, "\n"))
	return out
}

// splitBlocks flattens a document into text blocks in reading order. HTML is
// split on leaf block elements; plain text is split into lines.
func splitBlocks(document string) []block {
	if !looksLikeHTML(document) {
		return splitLines(document)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return splitLines(document)
	}

	var (
		blocks []block
		inline strings.Builder
	)
	flush := func() {
		text := normalizeSpace(inline.String())
		inline.Reset()
		if text != "" {
			blocks = append(blocks, block{text: text, html: "<p>" + html.EscapeString(text) + "</p>"})
		}
	}

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			inline.WriteString(n.Data)
			inline.WriteString(" ")
			return
		case xhtml.ElementNode:
			if skipTags[n.Data] {
				return
			}
			if n.Data == "br" {
				inline.WriteString(" ")
				return
			}
			if blockTags[n.Data] {
				flush()
				if n.Data == "pre" {
					blocks = append(blocks, splitLines(goquery.NewDocumentFromNode(n).Text())...)
					return
				}
				if !hasBlockDescendant(n) {
					sel := goquery.NewDocumentFromNode(n).Selection
					text := normalizeSpace(sel.Text())
					if text != "" {
						outer, err := goquery.OuterHtml(sel)
						if err != nil {
							outer = "<p>" + html.EscapeString(text) + "</p>"
						}
						blocks = append(blocks, block{text: text, html: outer})
					}
					return
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				flush()
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	flush()

	return blocks
}

func hasBlockDescendant(n *xhtml.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && (blockTags[c.Data] || hasBlockDescendant(c)) {
			return true
		}
	}
	return false
}

func splitLines(text string) []block {
	var blocks []block
	for _, line := range strings.Split(text, "\n") {
		line = normalizeSpace(line)
		if line == "" {
			continue
		}
		blocks = append(blocks, block{text: line, html: "<p>" + html.EscapeString(line) + "</p>"})
	}
	return blocks
}

var spaceRun = regexp.MustCompile(`[\s\x{00a0}]+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func looksLikeHTML(s string) bool {
	head := s
	if len(head) > 4096 {
		head = head[:4096]
	}
	head = strings.ToLower(head)
	for _, marker := range []string{"<html", "<body", "<div", "<p", "<!doctype", "<document", "<table"} {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
