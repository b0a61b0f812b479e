package pipeline

import (
	"context"
	"errors"
	"fedgrants-backend/internal/awardstore"
)

var (
	ErrInvalidSearch = errors.New("invalid search")
	// ErrRemoteFetchTimeout is returned when a source did not answer within the
	// configured fetch timeout. Fetches are never retried.
	ErrRemoteFetchTimeout = errors.New("remote fetch timed out")
)

// Batch is the raw records one source returned for one agency.
type Batch struct {
	Agency  string
	Records []awardstore.RawRecord
	// Reported is the number of results the remote search said it found.
	Reported int
}

// Fetcher performs a search against a single remote source.
type Fetcher interface {
	Name() string
	// Handles reports whether the source holds awards of the agency.
	Handles(agency string) bool
	// Fetch downloads the search results, the search only contains agencies the
	// fetcher handles.
	Fetch(ctx context.Context, search Search) ([]Batch, error)
	// Count returns the number of results the remote search reports without
	// downloading them.
	Count(ctx context.Context, search Search) (int, error)
}
