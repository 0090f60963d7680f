// Package ingest drives an ingestion run: page fetching, batch-wise detail
// fan-out, normalization, stop-condition checks, and batched persistence.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"newsharvest/article"
	"newsharvest/fetch"
	"newsharvest/log"
	"newsharvest/normalize"
)

// ConfigError marks an invalid run configuration. It is raised before any
// fetch occurs and is not retryable.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}

// BoundaryPolicy controls how a date limit compares against an article's
// publish timestamp.
type BoundaryPolicy int

const (
	// CompareInstant compares exact instants.
	CompareInstant BoundaryPolicy = iota
	// CompareCalendarDay truncates both sides to UTC midnight first, so an
	// article published later on the cutoff day still ends the run.
	CompareCalendarDay
)

// MaxDateWindow is how far back a date limit may reach, relative to run
// start.
const MaxDateWindow = 365 * 24 * time.Hour

// StopSpec is the run-terminating condition: exactly one of a total article
// count or a publish-date cutoff. The zero value is invalid.
type StopSpec struct {
	count    int
	hasCount bool

	date    time.Time
	hasDate bool
	policy  BoundaryPolicy
}

// CountLimit stops the run once n articles have been produced across the
// whole run.
func CountLimit(n int) StopSpec {
	return StopSpec{count: n, hasCount: true}
}

// DateLimit stops the run once an article's publish timestamp is on or
// before d, under the given boundary policy.
func DateLimit(d time.Time, policy BoundaryPolicy) StopSpec {
	return StopSpec{date: d, hasDate: true, policy: policy}
}

// validate checks the stop specification against the run start time.
func (s StopSpec) validate(now time.Time) error {
	switch {
	case s.hasCount && s.hasDate:
		return &ConfigError{Reason: "count limit and date limit are mutually exclusive"}
	case s.hasCount:
		if s.count < 1 {
			return &ConfigError{Reason: fmt.Sprintf("count limit must be at least 1, got %d", s.count)}
		}
	case s.hasDate:
		if s.date.After(now) {
			return &ConfigError{Reason: "date limit is in the future"}
		}
		if now.Sub(s.date) > MaxDateWindow {
			return &ConfigError{Reason: "date limit is more than 365 days in the past"}
		}
	default:
		return &ConfigError{Reason: "a count limit or date limit is required"}
	}
	return nil
}

// reached evaluates the stop condition for one article. include reports
// whether the tripping article itself belongs in the persisted batch: a
// count limit includes it (it is the nth article), a date limit excludes it
// (it is older than the window).
func (s StopSpec) reached(a article.Article) (tripped, include bool) {
	if s.hasCount {
		return a.SequenceNumber >= s.count, true
	}

	published, cutoff := a.PublishedAt, s.date
	if s.policy == CompareCalendarDay {
		published = published.UTC().Truncate(24 * time.Hour)
		cutoff = cutoff.UTC().Truncate(24 * time.Hour)
	}
	return !published.After(cutoff), false
}

// PageFetcher supplies listing stubs page by page. It reports whether more
// pages remain after the one returned.
type PageFetcher interface {
	NextPage(ctx context.Context, section string, page int) ([]article.Stub, bool, error)
}

// DetailFetcher retrieves full article payloads for a batch of links,
// order-preserving, one result per link.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, links []string) []fetch.DetailResult
}

// Persister writes one batch of articles transactionally.
type Persister interface {
	SaveBatch(articles []article.Article) error
}

// Config holds the controller's run parameters.
type Config struct {
	// BatchSize bounds both detail-fetch fan-out and persistence commit
	// granularity.
	BatchSize int
	// Source is the origin identifier stamped onto every article.
	Source string
}

// Report summarizes a completed run.
type Report struct {
	Persisted int
	Batches   int
	// Exhausted is set when the source ran out of pages before the stop
	// condition was met. Not an error.
	Exhausted bool
}

// Controller orchestrates one ingestion run. It owns the sequence counter;
// numbering is scoped to the run, never process-wide.
type Controller struct {
	pages     PageFetcher
	details   DetailFetcher
	persister Persister
	batchSize int
	source    string
	seq       int
	log       zerolog.Logger
}

// NewController wires a controller from its collaborators.
func NewController(pages PageFetcher, details DetailFetcher, persister Persister, cfg Config) (*Controller, error) {
	if cfg.BatchSize < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("batch size must be at least 1, got %d", cfg.BatchSize)}
	}
	if cfg.Source == "" {
		return nil, &ConfigError{Reason: "source name must not be empty"}
	}

	return &Controller{
		pages:     pages,
		details:   details,
		persister: persister,
		batchSize: cfg.BatchSize,
		source:    cfg.Source,
		log:       log.NewLogger("ingest"),
	}, nil
}

// Run ingests one source section until the stop condition trips or the
// source is exhausted. Batches are persisted strictly in sequence.
func (c *Controller) Run(ctx context.Context, section string, stop StopSpec) (*Report, error) {
	if err := stop.validate(time.Now()); err != nil {
		return nil, err
	}

	runLog := c.log.With().Str("run", uuid.New().String()).Str("section", section).Logger()
	runLog.Info().Msg("Starting ingestion run")

	report := &Report{}
	var buffer []article.Stub
	page := 0
	hasMore := true

	for {
		// Request pages until a full batch of links is buffered or the
		// source reports exhaustion.
		for len(buffer) < c.batchSize && hasMore {
			stubs, more, err := c.pages.NextPage(ctx, section, page)
			if err != nil {
				return report, err
			}
			page++
			buffer = append(buffer, stubs...)
			hasMore = more && len(stubs) > 0
		}

		if len(buffer) == 0 {
			report.Exhausted = true
			runLog.Info().Int("persisted", report.Persisted).Msg("Source exhausted")
			return report, nil
		}

		take := min(c.batchSize, len(buffer))
		batch := buffer[:take]
		buffer = buffer[take:]

		done, err := c.processBatch(ctx, runLog, batch, stop, report)
		if err != nil {
			return report, err
		}
		if done {
			runLog.Info().Int("persisted", report.Persisted).Msg("Stop condition reached")
			return report, nil
		}
	}
}

// processBatch fetches details for one batch of stubs, normalizes them in
// listing order, and persists up to the stop condition. done reports that
// the run should terminate.
func (c *Controller) processBatch(ctx context.Context, runLog zerolog.Logger, stubs []article.Stub, stop StopSpec, report *Report) (done bool, err error) {
	links := make([]string, len(stubs))
	for i, stub := range stubs {
		links[i] = stub.Link
	}

	results := c.details.FetchDetails(ctx, links)

	var batch []article.Article
	for i, res := range results {
		if res.Err != nil {
			if fetch.IsTransient(res.Err) {
				return false, res.Err
			}
			// Removed article or similar; it does not consume a sequence
			// number and does not abort the batch.
			runLog.Warn().Str("link", res.Link).Err(res.Err).Msg("Dropping article")
			continue
		}

		art, err := normalize.Detail(stubs[i], *res.Detail, c.seq+1, c.source)
		if err != nil {
			runLog.Warn().Str("link", res.Link).Err(err).Msg("Dropping article")
			continue
		}
		c.seq = art.SequenceNumber

		tripped, include := stop.reached(art)
		if tripped {
			if include {
				batch = append(batch, art)
			}
			// Results past the truncation point are discarded.
			if err := c.persist(runLog, batch, report); err != nil {
				return false, err
			}
			return true, nil
		}

		batch = append(batch, art)
	}

	return false, c.persist(runLog, batch, report)
}

// persist hands one batch to the Persister and folds it into the report.
// A persistence error aborts the run.
func (c *Controller) persist(runLog zerolog.Logger, batch []article.Article, report *Report) error {
	if len(batch) == 0 {
		return nil
	}
	if err := c.persister.SaveBatch(batch); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}
	report.Persisted += len(batch)
	report.Batches++
	runLog.Info().Int("batch", report.Batches).Int("articles", len(batch)).Msg("Persisted batch")
	return nil
}

// RunEnrichment normalizes search-API payloads through the run's sequence
// counter and persists them in batches. Malformed payloads are dropped,
// matching the per-article recovery of the main pipeline.
func (c *Controller) RunEnrichment(ctx context.Context, raws []article.RawEnrichment, tag string) (*Report, error) {
	runLog := c.log.With().Str("run", uuid.New().String()).Str("tag", tag).Logger()
	runLog.Info().Int("raw", len(raws)).Msg("Starting enrichment run")

	report := &Report{}
	var batch []article.Article

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		art, err := normalize.Enrichment(raw, tag, c.seq+1, c.source)
		if err != nil {
			runLog.Warn().Str("link", raw.URL).Err(err).Msg("Dropping article")
			continue
		}
		c.seq = art.SequenceNumber

		batch = append(batch, art)
		if len(batch) == c.batchSize {
			if err := c.persist(runLog, batch, report); err != nil {
				return report, err
			}
			batch = nil
		}
	}

	if err := c.persist(runLog, batch, report); err != nil {
		return report, err
	}
	return report, nil
}
