package preview

import "github.com/lepinkainen/link-forge/pkg/urlutils"

// faviconRels is the <link> relation search order. First rel with an href
// wins.
var faviconRels = []string{
	"icon",
	"shortcut icon",
	"apple-touch-icon",
	"apple-touch-icon-precomposed",
}

// resolveFavicon picks a favicon URL from the document's icon links,
// resolving relative hrefs against baseURL. When the document declares no
// icon at all it falls back to the conventional /favicon.ico at the site
// root; the fallback is synthesized, not verified to exist.
func resolveFavicon(doc *document, baseURL string) string {
	for _, rel := range faviconRels {
		href, ok := doc.iconHrefs[rel]
		if !ok {
			continue
		}
		if urlutils.IsAbsoluteHTTP(href) {
			return href
		}
		if resolved, err := urlutils.ResolveURL(baseURL, href); err == nil {
			return resolved
		}
		return href
	}
	return FallbackFavicon(baseURL)
}

// FallbackFavicon returns the well-known favicon location for a URL's site.
func FallbackFavicon(baseURL string) string {
	origin := urlutils.Origin(baseURL)
	if origin == "" {
		return ""
	}
	return origin + "/favicon.ico"
}
