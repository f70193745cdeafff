package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/lepinkainen/link-forge/pkg/cache"
	"github.com/lepinkainen/link-forge/pkg/fetch"
)

// Fetcher performs the outbound request. In production this is the
// retry/rate-limit wrapper around the fetch client; tests plug in stubs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Service orchestrates the preview pipeline: validate, consult the cache,
// fetch, branch on content type, extract, cache, and degrade every failure
// past validation into a fallback result.
type Service struct {
	fetcher Fetcher
	cache   *cache.Cache[Result]
}

// NewService creates the preview orchestrator. A nil cache gets the default
// TTL and size bound.
func NewService(fetcher Fetcher, c *cache.Cache[Result]) *Service {
	if c == nil {
		c = cache.New[Result](cache.DefaultTTL, cache.DefaultMaxEntries)
	}
	return &Service{
		fetcher: fetcher,
		cache:   c,
	}
}

// GetPreview resolves a preview card for rawURL. The returned error is
// non-nil only for validation failures (ErrMissingURL, ErrInvalidURL);
// every failure after validation comes back as a fallback-marked Result.
func (s *Service) GetPreview(ctx context.Context, rawURL string) (Result, error) {
	if rawURL == "" {
		return Result{}, ErrMissingURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	authority := parsed.Host

	// Cache lookup happens before any network I/O, keyed by the exact URL
	// string the caller supplied.
	if cached, ok := s.cache.Get(rawURL); ok {
		slog.Debug("Cache hit", "url", rawURL)
		return cached, nil
	}

	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return s.fallback(rawURL, authority, err), nil
	}

	var result Result
	if !resp.IsHTML() {
		// Non-HTML resources get a minimal synthesized card.
		result = Result{
			Title:       authority,
			Description: "Resource: " + resp.ContentType(),
			Favicon:     parsed.Scheme + "://" + authority + "/favicon.ico",
			URL:         rawURL,
		}
	} else {
		meta, err := s.extractSafe(resp, rawURL)
		if err != nil {
			slog.Error("Metadata extraction failed", "url", rawURL, "error", err)
			return Result{
				Title:    "Error",
				URL:      rawURL,
				Error:    KindUnknown,
				Message:  "an unexpected error occurred",
				Fallback: true,
			}, nil
		}
		result = Result{
			Title:       meta.Title,
			Description: meta.Description,
			Favicon:     meta.Favicon,
			Image:       meta.Image,
			URL:         rawURL,
		}
	}

	s.cache.Set(rawURL, result)
	slog.Debug("Preview fetched", "url", rawURL, "title", result.Title)
	return result, nil
}

// extractSafe decodes the body and runs the extractor, converting any panic
// into an error so a malformed document can never take down the pipeline.
func (s *Service) extractSafe(resp *fetch.Response, rawURL string) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panic: %v", r)
		}
	}()

	text, err := resp.Text()
	if err != nil {
		return Metadata{}, err
	}
	return Extract(text, rawURL), nil
}

// fallback maps a fetch failure onto a degraded but renderable result. The
// title keeps the request's authority so the caller always has a label.
func (s *Service) fallback(rawURL, authority string, err error) Result {
	result := Result{
		Title:    authority,
		URL:      rawURL,
		Fallback: true,
	}

	kind, ok := fetch.KindOf(err)
	if !ok {
		slog.Error("Unexpected preview failure", "url", rawURL, "error", err)
		result.Title = "Error"
		result.Error = KindUnknown
		result.Message = "an unexpected error occurred"
		return result
	}

	slog.Warn("Preview fetch failed", "url", rawURL, "kind", kind, "error", err)
	result.Error = string(kind)
	switch kind {
	case fetch.KindTimeout:
		result.Message = "site too slow to respond"
	case fetch.KindSSL:
		result.Message = "invalid SSL certificate"
	case fetch.KindConnection:
		result.Message = "could not connect to the site"
	default:
		result.Message = err.Error()
	}
	return result
}
