// Package scraper defines the contract for discovering newly listed
// vehicles. The orchestrator only ever talks to the Scraper interface;
// the bundled HTTP implementation in site.go is one adapter behind it.
package scraper

import (
	"context"
	"errors"
	"fmt"
)

// RawListing is one unparsed listing as delivered by the source site:
// the canonical detail URL plus the raw detail-page HTML. Turning it
// into a structured listing is the parser's job, not the scraper's.
type RawListing struct {
	URL  string
	HTML string
}

// Batch is the result of fetching one page cursor.
type Batch struct {
	Raw        []RawListing
	NextCursor int
	Exhausted  bool
}

// Scraper pages through the source site in bounded batches.
type Scraper interface {
	// FetchBatch returns the raw listings at cursor. Size is an
	// advisory batch-sizing hint; implementations must return every
	// listing the cursor addresses, never a truncated batch, because
	// NextCursor cannot point at the remainder. Exhausted is set when
	// the site has no further pages. Transient failures come back as
	// ordinary errors; authentication or configuration failures as a
	// FatalError.
	FetchBatch(ctx context.Context, cursor, size int) (*Batch, error)
}

// FatalError marks a scraper failure that cannot succeed on retry
// within the same run (bad credentials, rejected configuration).
// The orchestrator aborts the run when it sees one.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal scraper error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
