package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a transport failure. The values double as the wire
// representation in fallback preview responses.
type ErrorKind string

// Transport failure categories, from most to least specific.
const (
	KindTimeout    ErrorKind = "timeout"
	KindSSL        ErrorKind = "ssl_error"
	KindConnection ErrorKind = "connection_error"
	KindRequest    ErrorKind = "request_error"
)

// Error is a classified transport failure from the fetch client.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the transport error kind, or false when err did not come
// from the fetch client.
func KindOf(err error) (ErrorKind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// classify maps an error from http.Client.Do onto the taxonomy. Timeouts win
// over everything, then certificate failures, then connection-level failures;
// anything else is a generic request error.
func classify(rawURL string, err error) *Error {
	kind := KindRequest

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case isCertificateError(err):
		kind = KindSSL
	case isConnectionError(err):
		kind = KindConnection
	}

	return &Error{Kind: kind, URL: rawURL, Err: err}
}

func isCertificateError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		certInvalid      x509.CertificateInvalidError
		recordHeader     tls.RecordHeaderError
		certVerify       *tls.CertificateVerificationError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &certVerify)
}

func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
