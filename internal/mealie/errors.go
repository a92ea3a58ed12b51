package mealie

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrorKind classifies a failed call against the recipe service. Only
// KindTransient is retried; everything else is surfaced to the caller as-is.
type ErrorKind int

const (
	// KindTransient covers network errors, timeouts and HTTP
	// 408/425/429/500/502/503/504.
	KindTransient ErrorKind = iota
	// KindConflict is HTTP 409, e.g. a duplicate unit abbreviation or an
	// alias that already exists.
	KindConflict
	// KindNotFound is HTTP 404.
	KindNotFound
	// KindValidation is HTTP 400/422.
	KindValidation
	// KindAuth is HTTP 401/403. Fatal: the session halts.
	KindAuth
	// KindOther is any remaining 4xx/5xx after retries are exhausted.
	KindOther
)

// String returns the kind name used in logs and batch failure records.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	default:
		return "other"
	}
}

// APIError is the typed result of a failed recipe-service call.
type APIError struct {
	Kind     ErrorKind
	Op       string // e.g. "create unit", "update ingredient"
	Status   int    // HTTP status, 0 for transport failures
	Attempts int    // total tries including the first
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Suggestion returns an actionable hint for the operator, or "".
func (e *APIError) Suggestion() string {
	switch e.Kind {
	case KindTransient:
		return "Check the connection to the Mealie server and try again"
	case KindAuth:
		return "Check MEALIE_API_KEY and its permissions"
	case KindNotFound:
		return "The entity may have been deleted on the server; refresh and retry"
	case KindConflict:
		return "An entity with this name or abbreviation already exists"
	default:
		return ""
	}
}

// ClassifyStatus maps an HTTP status code to an ErrorKind.
func ClassifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindTransient
	case http.StatusConflict:
		return KindConflict
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	default:
		return KindOther
	}
}

// classifyTransport maps a transport-level error to an ErrorKind. Network
// failures and deadline expiry are transient; a canceled context is not,
// so operator cancellation does not trigger retries.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.Canceled) {
		return KindOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return classifyTransport(urlErr.Err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}
	return KindTransient
}

// Kind returns the classification of err, or KindOther for errors that did
// not originate in this package.
func Kind(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindOther
}

// IsTransient reports whether err is a retryable recipe-service failure.
func IsTransient(err error) bool { return Kind(err) == KindTransient }

// IsConflict reports whether err is an HTTP 409 from the recipe service.
func IsConflict(err error) bool { return Kind(err) == KindConflict }

// IsNotFound reports whether err is an HTTP 404 from the recipe service.
func IsNotFound(err error) bool { return Kind(err) == KindNotFound }

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool { return Kind(err) == KindAuth }
