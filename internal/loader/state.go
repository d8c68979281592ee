package loader

import (
	"github.com/faishion/tryon-client/internal/models"
)

// Status is the loader's single activity state. Loading and refreshing are
// distinct values of one field, so at most one of them holds at a time.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusRefreshing
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusRefreshing:
		return "refreshing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Origin records which operation issued the most recent request.
type Origin int

const (
	OriginNone Origin = iota
	OriginFilter
	OriginRefresh
	OriginMore
)

func (o Origin) String() string {
	switch o {
	case OriginFilter:
		return "filter"
	case OriginRefresh:
		return "refresh"
	case OriginMore:
		return "more"
	default:
		return "none"
	}
}

// replaces reports whether a successful response for this origin replaces
// the list (as opposed to appending to it).
func (o Origin) replaces() bool {
	return o == OriginFilter || o == OriginRefresh
}

// State is a snapshot of a loader. Items is a copy owned by the caller.
type State[T any] struct {
	Items       []T
	Page        int // last page applied; 0 when nothing is loaded
	HasMore     bool
	Status      Status
	Err         error
	ActiveQuery models.Query
	Epoch       uint64
	Origin      Origin
}

// IsLoading reports whether a filter or load-more request is in flight.
func (s State[T]) IsLoading() bool { return s.Status == StatusLoading }

// IsRefreshing reports whether a refresh request is in flight.
func (s State[T]) IsRefreshing() bool { return s.Status == StatusRefreshing }

// IsEmptyResult reports a completed load with no results, as opposed to a
// failed one.
func (s State[T]) IsEmptyResult() bool {
	return s.Status == StatusIdle && s.Err == nil && s.Page > 0 && len(s.Items) == 0 && !s.HasMore
}
