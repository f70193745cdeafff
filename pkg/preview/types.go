// Package preview implements the link-preview pipeline: URL validation,
// cached metadata fetching and extraction with graceful fallbacks.
package preview

import "errors"

// Validation errors, the only ones GetPreview surfaces to its caller.
var (
	ErrMissingURL = errors.New("missing URL")
	ErrInvalidURL = errors.New("invalid URL")
)

// Error kinds carried on fallback results, beyond the transport taxonomy
// owned by the fetch package.
const (
	KindUnknown = "unknown_error"
)

// Result is a link-preview card. Title is never empty: it falls back to the
// request's host when no better source exists. Fallback marks a degraded
// result produced after a recoverable failure; it is still a valid card.
type Result struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Favicon     string `json:"favicon,omitempty" yaml:"favicon,omitempty"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	URL         string `json:"url" yaml:"url"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	Message     string `json:"message,omitempty" yaml:"message,omitempty"`
	Fallback    bool   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Metadata is what the extractor pulls out of an HTML document.
type Metadata struct {
	Title       string
	Description string
	Favicon     string
	Image       string
}
