package assets

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType is the category of a fetch failure.
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection reset, unreachable...)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the remote refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates an unparsable response or file
	ErrTypeParse
	// ErrTypeTooLarge indicates a body over the fetcher's size limit
	ErrTypeTooLarge
	// ErrTypeIO indicates a local cache read/write failure
	ErrTypeIO
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTooLarge:
		return "Too Large"
	case ErrTypeIO:
		return "Cache Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// FetchError is a classified failure to fetch or read a remote asset.
type FetchError struct {
	Type       ErrorType
	Message    string
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyNetworkError turns a transport error into a FetchError.
func classifyNetworkError(message, rawURL string, err error) *FetchError {
	fe := &FetchError{Type: ErrTypeNetwork, Message: message, URL: rawURL, Err: err, Retryable: true}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded):
		fe.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		fe.Type = ErrTypeDNS
		fe.Retryable = dnsErr.IsTemporary
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		fe.Type = ErrTypeConnectionRefused
	}
	return fe
}

func newHTTPError(rawURL string, statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		URL:        rawURL,
		StatusCode: statusCode,
		// Server errors and rate limiting are retryable
		Retryable: statusCode >= 500 || statusCode == 429,
	}
}

func newParseError(message string, err error) *FetchError {
	return &FetchError{Type: ErrTypeParse, Message: message, Err: err}
}

func newIOError(message string, err error) *FetchError {
	return &FetchError{Type: ErrTypeIO, Message: message, Err: err}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsNotFound reports an HTTP 404.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Type == ErrTypeHTTP && fe.StatusCode == 404
}
