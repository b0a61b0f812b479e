package gencache

import (
	"context"
	"database/sql"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/telemetry"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/gencache")

// DefaultWindow is the number of most recent generations kept in the cache.
const DefaultWindow = 20

const (
	report_db_query = "db.query"
	report_merge    = "merge"
	report_evict    = "evict"
)

// Cache is the search result cache, a database created with db.CacheSchema where
// every row is stamped with the generation of the search that produced it.
type Cache struct {
	db     *sql.DB
	qry    *db.Queries
	maketx db.MakeTx
	tel    telemetry.API
}

func NewCache(database *sql.DB, tel telemetry.API) Cache {
	return Cache{
		db:     database,
		qry:    db.New(database),
		maketx: db.NewMakeTx(database),
		tel:    telemetry.NewScopedAPI("gencache", telemetry.OrDefault(tel)),
	}
}

// DB returns the cache database, it can be read with the same queries as an award store.
func (c Cache) DB() *sql.DB {
	return c.db
}

func nextGeneration(ctx context.Context, qry *db.Queries) (int64, error) {
	latest, err := qry.MaxCounter(ctx)
	if err != nil {
		return 0, err
	}
	if !latest.Valid {
		return 0, nil
	}
	return latest.Int64 + 1, nil
}

// NextGeneration returns the generation the next merge will be stamped with, one
// past the newest generation or 0 when the cache is empty.
func (c Cache) NextGeneration(ctx context.Context) (int64, error) {
	gen, err := nextGeneration(ctx, c.qry)
	if err != nil {
		c.tel.ReportBroken(report_db_query, err, "MaxCounter")
		return 0, err
	}
	return gen, nil
}

func copyStaged(ctx context.Context, txqry *db.Queries, staged StagedSet, gen int64) error {
	for _, award := range staged.Awards {
		err := txqry.UpsertCachedAward(ctx, db.UpsertCachedAwardParams{
			Award:   award,
			Counter: gen,
		})
		if err != nil {
			return fmt.Errorf("upsert award '%s': %w", award.AwardID, err)
		}

		// rows from an older generation of the same award are replaced
		err = txqry.DeleteInvestigators(ctx, award.AwardID)
		if err != nil {
			return fmt.Errorf("delete investigators: %w", err)
		}
		err = txqry.DeleteInstitutions(ctx, award.AwardID)
		if err != nil {
			return fmt.Errorf("delete institutions: %w", err)
		}
		err = txqry.DeleteOrganizations(ctx, award.AwardID)
		if err != nil {
			return fmt.Errorf("delete organizations: %w", err)
		}
		err = txqry.DeleteKeywords(ctx, award.AwardID)
		if err != nil {
			return fmt.Errorf("delete keywords: %w", err)
		}
	}

	for _, inv := range staged.Investigators {
		err := txqry.CreateCachedInvestigator(ctx, db.CreateCachedInvestigatorParams{
			Investigator: inv,
			Counter:      gen,
		})
		if err != nil {
			return fmt.Errorf("create investigator of '%s': %w", inv.AwardID, err)
		}
	}
	for _, inst := range staged.Institutions {
		err := txqry.CreateCachedInstitution(ctx, db.CreateCachedInstitutionParams{
			Institution: inst,
			Counter:     gen,
		})
		if err != nil {
			return fmt.Errorf("create institution of '%s': %w", inst.AwardID, err)
		}
	}
	for _, org := range staged.Organizations {
		err := txqry.CreateCachedOrganization(ctx, db.CreateCachedOrganizationParams{
			Organization: org,
			Counter:      gen,
		})
		if err != nil {
			return fmt.Errorf("create organization of '%s': %w", org.AwardID, err)
		}
	}
	for _, kw := range staged.Keywords {
		err := txqry.CreateCachedKeyword(ctx, db.CreateCachedKeywordParams{
			KeywordIndex: kw,
			Counter:      gen,
		})
		if err != nil {
			return fmt.Errorf("create keyword of '%s': %w", kw.AwardID, err)
		}
	}
	return nil
}

// MergeSearchResults copies every staged row into the cache stamped with gen, in a
// single transaction. Nothing is written if any row fails.
func (c Cache) MergeSearchResults(ctx context.Context, staged StagedSet, gen int64) error {
	ctx, span := tracer.Start(ctx, "MergeSearchResults")
	defer span.End()

	tx, err := c.maketx(ctx)
	if err != nil {
		c.tel.ReportBroken(report_merge, fmt.Errorf("begin tx: %w", err))
		return fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	defer tx.Discard()

	err = copyStaged(ctx, tx.Queries, staged, gen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "copy staged rows")
		c.tel.ReportBroken(report_merge, err, gen)
		return fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	err = tx.Commit()
	if err != nil {
		c.tel.ReportBroken(report_merge, fmt.Errorf("commit: %w", err), gen)
		return fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	return nil
}

// EvictOlderThan deletes every row whose generation is older than gen - window, child
// tables first, in a single transaction. It returns the number of awards removed.
func (c Cache) EvictOlderThan(ctx context.Context, gen, window int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "EvictOlderThan")
	defer span.End()
	cutoff := gen - window
	span.SetAttributes(attribute.Int64("cutoff", cutoff))

	tx, err := c.maketx(ctx)
	if err != nil {
		c.tel.ReportBroken(report_evict, fmt.Errorf("begin tx: %w", err))
		return 0, fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	defer tx.Discard()
	txqry := tx.Queries

	evictChildren := []struct {
		table string
		evict func(context.Context, int64) (int64, error)
	}{
		{"keyword_index", txqry.EvictCachedKeywords},
		{"investigators", txqry.EvictCachedInvestigators},
		{"institutions", txqry.EvictCachedInstitutions},
		{"organizations", txqry.EvictCachedOrganizations},
	}
	for _, child := range evictChildren {
		_, err = child.evict(ctx, cutoff)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "evict "+child.table)
			c.tel.ReportBroken(report_evict, err, child.table, cutoff)
			return 0, fmt.Errorf("%w: evict %s: %v", awardstore.ErrTransactionFailure, child.table, err)
		}
	}
	evicted, err := txqry.EvictCachedAwards(ctx, cutoff)
	if err != nil {
		c.tel.ReportBroken(report_evict, err, "awards", cutoff)
		return 0, fmt.Errorf("%w: evict awards: %v", awardstore.ErrTransactionFailure, err)
	}

	err = tx.Commit()
	if err != nil {
		c.tel.ReportBroken(report_evict, fmt.Errorf("commit: %w", err), cutoff)
		return 0, fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	c.tel.ReportCount("evicted", evicted)
	return evicted, nil
}

type MergeResult struct {
	Generation int64
	Awards     int
	Evicted    int64
	// EvictErr is set when the merge committed but evicting old generations failed.
	EvictErr error
}

// Merge stages a search result and copies it into the cache as a new generation, then
// evicts the generations that fell out of the window.
//
// The generation is read and the rows are written inside the same transaction, so two
// merges can never be stamped with the same generation.
func (c Cache) Merge(ctx context.Context, staging Staging, window int64) (MergeResult, error) {
	ctx, span := tracer.Start(ctx, "Merge")
	defer span.End()

	staged, err := staging.Stage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage")
		c.tel.ReportBroken(report_merge, fmt.Errorf("stage: %w", err))
		return MergeResult{}, err
	}

	tx, err := c.maketx(ctx)
	if err != nil {
		c.tel.ReportBroken(report_merge, fmt.Errorf("begin tx: %w", err))
		return MergeResult{}, fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	defer tx.Discard()
	txqry := tx.Queries

	gen, err := nextGeneration(ctx, txqry)
	if err != nil {
		c.tel.ReportBroken(report_db_query, err, "MaxCounter")
		return MergeResult{}, fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	span.SetAttributes(
		attribute.Int64("generation", gen),
		attribute.Int("awards", len(staged.Awards)),
	)

	err = copyStaged(ctx, txqry, staged, gen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "copy staged rows")
		c.tel.ReportBroken(report_merge, err, gen)
		return MergeResult{}, fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}
	err = tx.Commit()
	if err != nil {
		c.tel.ReportBroken(report_merge, fmt.Errorf("commit: %w", err), gen)
		return MergeResult{}, fmt.Errorf("%w: %v", awardstore.ErrTransactionFailure, err)
	}

	result := MergeResult{
		Generation: gen,
		Awards:     len(staged.Awards),
	}
	result.Evicted, result.EvictErr = c.EvictOlderThan(ctx, gen, window)
	if result.EvictErr != nil {
		c.tel.ReportWarning(report_evict, "merge committed, eviction failed", result.EvictErr, gen)
	}
	return result, nil
}

// Generations lists the generations present in the cache and their number of awards,
// oldest first.
func (c Cache) Generations(ctx context.Context) ([]db.Generation, error) {
	gens, err := c.qry.ListGenerations(ctx)
	if err != nil {
		c.tel.ReportBroken(report_db_query, err, "ListGenerations")
		return nil, err
	}
	return gens, nil
}
