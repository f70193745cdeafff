package preview

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/lepinkainen/link-forge/pkg/urlutils"
)

// Display limits for extracted fields. Longer values are cut and marked with
// a three character ellipsis, so a truncated title is exactly maxTitleLen
// characters.
const (
	maxTitleLen       = 100
	maxDescriptionLen = 200
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// document is the parsed view the priority tables read from: first-seen meta
// values by property and by name, the <title> text, and icon link hrefs by
// normalized rel value.
type document struct {
	metaProperty map[string]string
	metaName     map[string]string
	titleText    string
	iconHrefs    map[string]string
}

// fieldSource reads one candidate value for a field; sources are tried in
// order and the first non-empty value wins.
type fieldSource func(*document) string

var titleSources = []fieldSource{
	func(d *document) string { return d.metaProperty["og:title"] },
	func(d *document) string { return d.metaName["twitter:title"] },
	func(d *document) string { return d.titleText },
}

var descriptionSources = []fieldSource{
	func(d *document) string { return d.metaProperty["og:description"] },
	func(d *document) string { return d.metaName["description"] },
}

var imageSources = []fieldSource{
	func(d *document) string { return d.metaProperty["og:image"] },
	func(d *document) string { return d.metaName["twitter:image"] },
}

// Extract parses an HTML document and produces normalized preview metadata.
// baseURL anchors relative favicon and image references and supplies the
// host fallback for the title. Pure function of its inputs.
func Extract(htmlContent, baseURL string) Metadata {
	doc := parseDocument(htmlContent)

	title := cleanText(firstValue(doc, titleSources))
	if title == "" {
		title = urlutils.Authority(baseURL)
	}
	title = truncate(title, maxTitleLen)

	description := truncate(cleanText(firstValue(doc, descriptionSources)), maxDescriptionLen)

	image := firstValue(doc, imageSources)
	if image != "" && !urlutils.IsAbsoluteHTTP(image) {
		if resolved, err := urlutils.ResolveURL(baseURL, image); err == nil {
			image = resolved
		}
	}

	return Metadata{
		Title:       title,
		Description: description,
		Favicon:     resolveFavicon(doc, baseURL),
		Image:       image,
	}
}

func firstValue(doc *document, sources []fieldSource) string {
	for _, source := range sources {
		if value := source(doc); value != "" {
			return value
		}
	}
	return ""
}

// cleanText collapses whitespace runs to single spaces and trims the ends.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// truncate cuts s to max characters, ellipsis included. Counts runes, not
// bytes, so multi-byte titles are not cut mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// parseDocument walks the HTML tree once and collects everything the
// priority tables need. html.Parse never fails on arbitrary input, it
// produces a best-effort tree instead.
func parseDocument(htmlContent string) *document {
	doc := &document{
		metaProperty: make(map[string]string),
		metaName:     make(map[string]string),
		iconHrefs:    make(map[string]string),
	}

	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return doc
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				doc.recordMeta(n)
			case "title":
				if doc.titleText == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					doc.titleText = n.FirstChild.Data
				}
			case "link":
				doc.recordLink(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return doc
}

// recordMeta stores the first non-empty content seen for each property/name.
func (d *document) recordMeta(n *html.Node) {
	var property, name, content string
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "property":
			property = strings.ToLower(attr.Val)
		case "name":
			name = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		}
	}
	if content == "" {
		return
	}
	if property != "" {
		if _, seen := d.metaProperty[property]; !seen {
			d.metaProperty[property] = content
		}
	}
	if name != "" {
		if _, seen := d.metaName[name]; !seen {
			d.metaName[name] = content
		}
	}
}

// recordLink stores the first href seen for each icon rel value.
func (d *document) recordLink(n *html.Node) {
	var rel, href string
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "rel":
			rel = cleanText(strings.ToLower(attr.Val))
		case "href":
			href = attr.Val
		}
	}
	if rel == "" || href == "" {
		return
	}
	if _, seen := d.iconHrefs[rel]; !seen {
		d.iconHrefs[rel] = href
	}
}
