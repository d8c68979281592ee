// Package api provides the paged fetch clients for the catalog and try-on
// history endpoints, and the error taxonomy they report.
package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors that are not fetch failures
	// (for example a cancelled context).
	KindUnknown ErrorKind = iota
	// KindNetwork: the request never produced a response (DNS, refused, reset).
	KindNetwork
	// KindTimeout: no response within the fetch deadline.
	KindTimeout
	// KindServer: a response with a non-2xx status.
	KindServer
	// KindParse: a 2xx response whose body could not be decoded.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against a *FetchError of the same kind.
var (
	ErrNetwork = errors.New("network error")
	ErrTimeout = errors.New("request timed out")
	ErrServer  = errors.New("server error")
	ErrParse   = errors.New("malformed response")
)

// ErrInvalidQuery is returned without issuing a request when the page or
// page size is out of range.
var ErrInvalidQuery = errors.New("invalid query")

// FetchError describes a failed page request.
type FetchError struct {
	Kind      ErrorKind
	Status    int    // HTTP status, KindServer only
	Body      string // truncated response body, KindServer only
	URL       string
	RequestID string
	Err       error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindServer:
		if e.Body != "" {
			return fmt.Sprintf("server error: status %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("server error: status %d", e.Status)
	case KindTimeout:
		return "request timed out"
	}
	msg := "fetch failed"
	if s := kindSentinel(e.Kind); s != nil {
		msg = s.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimeout) and friends match on kind.
func (e *FetchError) Is(target error) bool {
	s := kindSentinel(e.Kind)
	return s != nil && target == s
}

func kindSentinel(k ErrorKind) error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindServer:
		return ErrServer
	case KindParse:
		return ErrParse
	default:
		return nil
	}
}

// KindOf returns the kind of the first *FetchError in err's chain.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by a server error, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind == KindServer {
		return fe.Status
	}
	return 0
}
