// Package orchestrator drives one end-to-end scrape, score, and notify
// run. Pages come in strictly increasing cursor order and each batch is
// fully settled (archived, scored, notified) before the next page is
// fetched, so memory stays bounded and a query edit observed mid-run
// only ever affects batches that have not started yet.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"carwatch/internal/archive"
	"carwatch/internal/ledger"
	"carwatch/internal/listing"
	"carwatch/internal/matcher"
	"carwatch/internal/notify"
	"carwatch/internal/queries"
	"carwatch/internal/scraper"
)

// Config carries the per-run parameters.
type Config struct {
	StartCursor int
	BatchSize   int
	MaxPages    int
	Threshold   float64
}

// RunSummary reports what one run did. It is always produced, even for
// runs that aborted early.
type RunSummary struct {
	PagesScanned int
	Archived     int
	MatchesFound int
	Notified     int
	Errors       []string
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (s *RunSummary) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("%s", msg)
	s.Errors = append(s.Errors, msg)
}

// String renders the summary for run logs.
func (s *RunSummary) String() string {
	return fmt.Sprintf("%d pages scanned, %d listings archived, %d matches, %d notifications sent, %d errors",
		s.PagesScanned, s.Archived, s.MatchesFound, s.Notified, len(s.Errors))
}

// Deps wires the collaborators into the orchestrator.
type Deps struct {
	Scraper  scraper.Scraper
	Store    *queries.Store
	Matcher  *matcher.Matcher
	Ledger   *ledger.Ledger
	Archive  *archive.Writer
	Notifier notify.Notifier
}

// Orchestrator owns the run loop. It is not safe for concurrent runs;
// the scheduler guarantees at most one run is active.
type Orchestrator struct {
	scraper  scraper.Scraper
	store    *queries.Store
	matcher  *matcher.Matcher
	ledger   *ledger.Ledger
	archive  *archive.Writer
	notifier notify.Notifier

	// lastQueries is the most recent successfully loaded query set. A
	// malformed store read falls back to it rather than matching
	// against zero queries.
	lastQueries []queries.Query
}

// New builds an orchestrator from its collaborators.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		scraper:  deps.Scraper,
		store:    deps.Store,
		matcher:  deps.Matcher,
		ledger:   deps.Ledger,
		archive:  deps.Archive,
		notifier: deps.Notifier,
	}
}

// RunOnce performs a full run. The returned error is non-nil only for
// run-aborting conditions: a fatal scraper error, unwritable storage,
// or cancellation. Per-listing and per-match failures are logged,
// counted in the summary, and retried naturally on the next scheduled
// run because no state advanced for them.
func (o *Orchestrator) RunOnce(ctx context.Context, cfg Config) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	cursor := cfg.StartCursor
	if cursor < 1 {
		cursor = 1
	}

	for page := 0; page < cfg.MaxPages; page++ {
		// Cancellation is honoured between batches only; everything a
		// finished batch did stays valid.
		if err := ctx.Err(); err != nil {
			summary.addError("Run aborted: %v", err)
			return summary, err
		}

		batch, err := o.scraper.FetchBatch(ctx, cursor, cfg.BatchSize)
		if err != nil {
			if scraper.IsFatal(err) {
				summary.addError("Aborting run: %v", err)
				return summary, err
			}
			// Without the page we have no reliable next cursor; stop
			// here and let the next scheduled run pick the page up.
			summary.addError("Fetching page %d failed, ending run early: %v", cursor, err)
			return summary, nil
		}

		summary.PagesScanned++

		if err := o.processBatch(ctx, batch, cfg.Threshold, summary); err != nil {
			return summary, err
		}

		cursor = batch.NextCursor
		if batch.Exhausted {
			log.Printf("Scraper exhausted after %d page(s)", summary.PagesScanned)
			break
		}
	}

	return summary, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, batch *scraper.Batch, threshold float64, summary *RunSummary) error {
	now := time.Now().UTC()

	var parsed []listing.Listing
	for _, raw := range batch.Raw {
		l, err := listing.Parse(raw.URL, raw.HTML, now)
		if err != nil {
			// Skipped, not failed: archive and ledger stay untouched,
			// so the listing is retried next run.
			summary.addError("Skipping unparseable listing %s: %v", raw.URL, err)
			continue
		}
		parsed = append(parsed, l)
	}

	// Archive the whole batch before any matching: the archive must
	// reflect every successfully parsed listing regardless of what
	// matching decides.
	for _, l := range parsed {
		if _, err := o.archive.Append(l); err != nil {
			summary.addError("Archive unwritable, aborting run: %v", err)
			return err
		}
		summary.Archived++
	}

	qs := o.snapshotQueries(summary)
	if len(qs) == 0 || len(parsed) == 0 {
		return nil
	}

	hits := o.matcher.Match(ctx, parsed, qs, threshold)

	// Walk matches in scrape order so notifications mirror page order.
	for _, l := range parsed {
		for _, queryText := range hits[l.URL] {
			summary.MatchesFound++
			if err := o.notifyOnce(ctx, l.URL, queryText, summary); err != nil {
				return err
			}
		}
	}

	return nil
}

// snapshotQueries re-reads the query store. Edits land at the next
// batch boundary; a malformed read keeps the previous good snapshot.
func (o *Orchestrator) snapshotQueries(summary *RunSummary) []queries.Query {
	qs, err := o.store.Load()
	if err != nil {
		summary.addError("Query store unreadable, keeping previous %d queries: %v", len(o.lastQueries), err)
		return o.lastQueries
	}
	o.lastQueries = qs
	return qs
}

// notifyOnce sends the match unless the ledger already holds the pair.
// The send happens before the ledger insert: a crash in between costs
// at most one duplicate mail, never a silently lost notification.
func (o *Orchestrator) notifyOnce(ctx context.Context, listingURL, queryText string, summary *RunSummary) error {
	seen, err := o.ledger.Contains(listingURL, queryText)
	if err != nil {
		summary.addError("Ledger unreadable, aborting run: %v", err)
		return err
	}
	if seen {
		return nil
	}

	if err := o.notifier.Send(ctx, listingURL, queryText); err != nil {
		// Ledger untouched: the pair stays eligible next run.
		summary.addError("Notification for %s (%q) failed: %v", listingURL, queryText, err)
		return nil
	}

	if _, err := o.ledger.Insert(listingURL, queryText); err != nil {
		summary.addError("Ledger unwritable after sent notification for %s (%q), aborting run: %v",
			listingURL, queryText, err)
		return err
	}

	summary.Notified++
	return nil
}
