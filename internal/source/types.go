// Package source fetches partial hadith records from the remote websites.
//
// Every client performs a single throttled GET per call and reports the
// outcome as a tagged Result; no failure escapes as a panic or bare error.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/valpere/hadithfeed/internal/hadith"
)

// Status classifies the outcome of one fetch.
type Status int

const (
	StatusOK Status = iota
	// StatusTransient covers timeouts, connection errors and unexpected
	// HTTP statuses.
	StatusTransient
	// StatusNotFound means the origin has no record at this index.
	StatusNotFound
	// StatusMalformed means the page arrived but the original text could
	// not be extracted.
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTransient:
		return "transient"
	case StatusNotFound:
		return "not_found"
	case StatusMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

var (
	ErrTransient = errors.New("transient source failure")
	ErrNotFound  = errors.New("not found at index")
	ErrMalformed = errors.New("malformed response")
)

// Fragment is the partial record one origin yields.
type Fragment struct {
	Number       int
	OriginalText string
	Language     hadith.Language
	Translation  string
	Grade        string
	GradedBy     string
	URL          string
}

// Result is the outcome of one Fetch. Fragment is nil unless Status is
// StatusOK.
type Result struct {
	Origin   hadith.Origin
	Status   Status
	Fragment *Fragment
	Err      error
	Latency  time.Duration
}

func (r Result) OK() bool {
	return r.Status == StatusOK && r.Fragment != nil && r.Fragment.OriginalText != ""
}

// Client is one remote origin.
type Client interface {
	Origin() hadith.Origin
	// Language is the translation language this origin supplies.
	Language() hadith.Language
	Fetch(ctx context.Context, collection string, number int) Result
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrMalformed):
		return StatusMalformed
	default:
		return StatusTransient
	}
}
