package pipeline

import (
	"context"
	"database/sql"
	"errors"
	devenv "fedgrants-backend/dev/env"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/chrono"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/gencache"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/pkg/migrations"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/pipeline")

const (
	report_fetch   = "fetch"
	report_staging = "staging"
	report_merge   = "merge"
	report_count   = "count"
)

// Pipeline runs a search end to end: fetch, stage, merge into the cache and evict.
type Pipeline struct {
	cfg      Config
	cache    gencache.Cache
	fetchers []Fetcher
	time     chrono.TimeAPI
	tel      telemetry.API
}

func New(
	cfg Config,
	cache gencache.Cache,
	fetchers []Fetcher,
	time chrono.TimeAPI,
	tel telemetry.API,
) Pipeline {
	return Pipeline{
		cfg:      cfg,
		cache:    cache,
		fetchers: fetchers,
		time:     time,
		tel:      telemetry.NewScopedAPI("pipeline", telemetry.OrDefault(tel)),
	}
}

// Result describes a completed search.
type Result struct {
	Generation int64
	// Reports holds the merge outcome per agency.
	Reports map[string]awardstore.MergeReport
	// Reported holds the number of results each agency's remote search claimed.
	Reported map[string]int
	Evicted  int64
	EvictErr error
}

// Total sums the merge reports of every agency.
func (r Result) Total() awardstore.MergeReport {
	var total awardstore.MergeReport
	for _, report := range r.Reports {
		total = total.Add(report)
	}
	return total
}

func (p Pipeline) applicable(search Search) []Fetcher {
	var out []Fetcher
	for _, f := range p.fetchers {
		if len(search.Only(f.Handles).Agencies) > 0 {
			out = append(out, f)
		}
	}
	return out
}

func (p Pipeline) fetch(ctx context.Context, f Fetcher, search Search) ([]Batch, error) {
	ctx, span := tracer.Start(ctx, "fetch:"+f.Name())
	defer span.End()

	timeout := p.cfg.FetchTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	batches, err := f.Fetch(ctx, search.Only(f.Handles))
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("%w: %s did not answer within %s", ErrRemoteFetchTimeout, f.Name(), timeout)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		p.tel.ReportBroken(report_fetch, err, f.Name())
		return nil, err
	}
	return batches, nil
}

func (p Pipeline) openStaging() (database *sql.DB, cleanup func(), err error) {
	if p.cfg.StagingDir == "" {
		database, err = migrations.OpenAndMigrateDB(db.Schema, ":memory:")
		if err != nil {
			return nil, nil, err
		}
		return database, func() { database.Close() }, nil
	}

	dir, err := devenv.ResolvePath(p.cfg.StagingDir)
	if err != nil {
		return nil, nil, err
	}
	name, err := random.String(12)
	if err != nil {
		return nil, nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("staging-%s.db", name))
	database, err = migrations.OpenAndMigrateDB(db.Schema, path)
	if err != nil {
		return nil, nil, err
	}
	return database, func() {
		database.Close()
		for _, suffix := range []string{"", "-wal", "-shm"} {
			err := os.Remove(path + suffix)
			if err != nil && !os.IsNotExist(err) {
				p.tel.ReportWarning(report_staging, fmt.Errorf("remove staging db: %w", err), path+suffix)
			}
		}
	}, nil
}

// Execute runs a search and merges its results into the cache as a new generation.
// Nothing is written to the cache when any source fails.
func (p Pipeline) Execute(ctx context.Context, search Search) (Result, error) {
	ctx, span := tracer.Start(ctx, "Execute")
	defer span.End()

	err := search.Validate(p.time.Now())
	if err != nil {
		return Result{}, err
	}

	var batches []Batch
	for _, f := range p.applicable(search) {
		fetched, err := p.fetch(ctx, f, search)
		if err != nil {
			return Result{}, err
		}
		batches = append(batches, fetched...)
	}

	staging, cleanup, err := p.openStaging()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open staging db")
		p.tel.ReportBroken(report_staging, err)
		return Result{}, err
	}
	defer cleanup()

	result := Result{
		Reports:  map[string]awardstore.MergeReport{},
		Reported: map[string]int{},
	}
	store := awardstore.NewStore(staging, p.tel)
	for _, batch := range batches {
		report, err := store.MergeSource(ctx, batch.Agency, batch.Records)
		if err != nil {
			p.tel.ReportBroken(report_staging, err, batch.Agency)
			return Result{}, err
		}
		result.Reports[batch.Agency] = result.Reports[batch.Agency].Add(report)
		result.Reported[batch.Agency] += batch.Reported
	}

	merged, err := p.cache.Merge(ctx, gencache.NewSQLStaging(staging), p.cfg.Window())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge into cache")
		p.tel.ReportBroken(report_merge, err)
		return Result{}, err
	}
	result.Generation = merged.Generation
	result.Evicted = merged.Evicted
	result.EvictErr = merged.EvictErr

	span.SetAttributes(
		attribute.Int64("generation", merged.Generation),
		attribute.Int("awards", merged.Awards),
	)
	p.tel.ReportCount("awards", int64(merged.Awards))
	return result, nil
}

// SourceCount is the number of results a single source reports for a search.
type SourceCount struct {
	Source string
	Count  int
	Over   bool
}

// Counts is the outcome of counting a search without running it.
type Counts struct {
	Sources []SourceCount
	Total   int
	// Over is true when the search yields too many results to cache.
	Over bool
}

// Count asks every applicable source how many results the search would yield.
func (p Pipeline) Count(ctx context.Context, search Search) (Counts, error) {
	ctx, span := tracer.Start(ctx, "Count")
	defer span.End()

	err := search.Validate(p.time.Now())
	if err != nil {
		return Counts{}, err
	}

	limit := p.cfg.Limit()
	var counts Counts
	for _, f := range p.applicable(search) {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout())
		n, err := f.Count(fetchCtx, search.Only(f.Handles))
		timedOut := errors.Is(fetchCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err != nil && (errors.Is(err, context.DeadlineExceeded) || timedOut) {
			err = fmt.Errorf("%w: %s did not answer within %s", ErrRemoteFetchTimeout, f.Name(), p.cfg.FetchTimeout())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "count failed")
			p.tel.ReportBroken(report_count, err, f.Name())
			return Counts{}, err
		}
		counts.Sources = append(counts.Sources, SourceCount{
			Source: f.Name(),
			Count:  n,
			Over:   n >= limit,
		})
		counts.Total += n
	}
	counts.Over = counts.Total >= limit
	return counts, nil
}
