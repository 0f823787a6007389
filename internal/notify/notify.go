// Package notify delivers match alerts. The orchestrator depends only
// on the Notifier interface; delivery failures belong to the caller,
// which leaves the dedup ledger untouched so the match is retried on
// the next scheduled run.
package notify

import "context"

// Notifier sends a single-match notification to the configured
// recipient.
type Notifier interface {
	Send(ctx context.Context, listingURL, queryText string) error
}
