// Package fetch performs the outbound HTTP request for link previews and
// classifies transport failures into a small taxonomy.
package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// browserHeaders is a fixed realistic header set. Some sites refuse requests
// that do not look like they came from a browser.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Accept-Encoding":           "gzip, deflate",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

const maxRedirects = 10

// ClientConfig controls a single fetch attempt.
type ClientConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	Headers      map[string]string
}

// DefaultConfig returns the fetch configuration used by the preview pipeline.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:      10 * time.Second,
		MaxBodyBytes: 2 * 1024 * 1024,
		Headers:      browserHeaders,
	}
}

// Response is the outcome of a successful fetch. Body has already been
// decompressed but not charset-converted.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// IsHTML reports whether the response declares an HTML content type.
func (r *Response) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType()), "text/html")
}

// Text returns the body converted to UTF-8, using the Content-Type header
// for charset detection.
func (r *Response) Text() (string, error) {
	reader, err := charset.NewReader(strings.NewReader(string(r.Body)), r.ContentType())
	if err != nil {
		// Charset detection failed, assume the body already is UTF-8.
		slog.Warn("Failed to detect charset, assuming UTF-8", "error", err)
		return string(r.Body), nil
	}

	utf8Bytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to convert body to UTF-8: %w", err)
	}
	return string(utf8Bytes), nil
}

// Client performs single GET attempts with browser-like headers, a per-attempt
// timeout, redirect following and default TLS verification.
type Client struct {
	client  *http.Client
	config  *ClientConfig
	headers map[string]string
}

// NewClient creates a fetch client from the given configuration.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	headers := config.Headers
	if headers == nil {
		headers = browserHeaders
	}

	return &Client{
		client: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		config:  config,
		headers: headers,
	}
}

// Fetch performs one GET attempt. Any failure comes back as a *Error carrying
// the transport taxonomy kind; HTTP statuses >= 400 count as request errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindRequest, URL: rawURL, Err: err}
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Kind: KindRequest,
			URL:  rawURL,
			Err:  fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, classify(rawURL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody decompresses the response body and applies the size cap.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	maxBytes := c.config.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = DefaultConfig().MaxBodyBytes
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
