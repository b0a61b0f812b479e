package awardstore

import (
	"context"
	"database/sql"
	"errors"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/keywords"
	"fedgrants-backend/internal/telemetry"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/awardstore")

const (
	report_db_query     = "db.query"
	report_upsert       = "upsert"
	report_skip_record  = "merge-source.skip-record"
	report_merge_source = "merge-source"
)

// Store is the award store backed by a database created with db.Schema.
type Store struct {
	db     *sql.DB
	qry    *db.Queries
	maketx db.MakeTx
	tel    telemetry.API
}

func NewStore(database *sql.DB, tel telemetry.API) Store {
	return Store{
		db:     database,
		qry:    db.New(database),
		maketx: db.NewMakeTx(database),
		tel:    telemetry.NewScopedAPI("awardstore", telemetry.OrDefault(tel)),
	}
}

// DB returns the database the store writes to.
func (s Store) DB() *sql.DB {
	return s.db
}

func writeRecord(ctx context.Context, txqry *db.Queries, r Record) error {
	err := txqry.UpsertAward(ctx, r.award())
	if err != nil {
		return fmt.Errorf("upsert award: %w", err)
	}

	err = txqry.DeleteInvestigators(ctx, r.AwardID)
	if err != nil {
		return fmt.Errorf("delete investigators: %w", err)
	}
	for _, inv := range r.investigators() {
		err = txqry.CreateInvestigator(ctx, inv)
		if err != nil {
			return fmt.Errorf("create investigator: %w", err)
		}
	}

	err = txqry.DeleteInstitutions(ctx, r.AwardID)
	if err != nil {
		return fmt.Errorf("delete institutions: %w", err)
	}
	for _, inst := range r.institutions() {
		err = txqry.CreateInstitution(ctx, inst)
		if err != nil {
			return fmt.Errorf("create institution: %w", err)
		}
	}

	err = txqry.DeleteOrganizations(ctx, r.AwardID)
	if err != nil {
		return fmt.Errorf("delete organizations: %w", err)
	}
	for _, org := range r.organizations() {
		err = txqry.CreateOrganization(ctx, org)
		if err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
	}

	return keywords.WriteEntries(ctx, txqry, r.AwardID, r.Title, r.Abstract)
}

// UpsertAward writes an award and replaces all of its related rows in a single
// transaction. Writing the same record twice leaves the store unchanged.
func (s Store) UpsertAward(ctx context.Context, r Record) error {
	err := r.Validate()
	if err != nil {
		return err
	}

	tx, err := s.maketx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("begin tx: %w", err))
		return fmt.Errorf("%w: %v", ErrTransactionFailure, err)
	}
	defer tx.Discard()

	err = writeRecord(ctx, tx.Queries, r)
	if err != nil {
		s.tel.ReportBroken(report_upsert, err, r.AwardID)
		return fmt.Errorf("%w: award '%s': %v", ErrTransactionFailure, r.AwardID, err)
	}

	err = tx.Commit()
	if err != nil {
		s.tel.ReportBroken(report_upsert, fmt.Errorf("commit: %w", err), r.AwardID)
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailure, err)
	}
	return nil
}

// MergeReport counts the outcome of merging a batch of raw records.
type MergeReport struct {
	// Processed is the number of records written.
	Processed int
	// Skipped is the number of malformed records left out.
	Skipped int
	// Failed is the number of records the database rejected.
	Failed int
}

func (r MergeReport) Add(other MergeReport) MergeReport {
	return MergeReport{
		Processed: r.Processed + other.Processed,
		Skipped:   r.Skipped + other.Skipped,
		Failed:    r.Failed + other.Failed,
	}
}

// MergeSource normalizes and upserts every raw record of a batch tagged with agency.
// A record that fails is left out entirely, the rest of the batch is still written.
func (s Store) MergeSource(ctx context.Context, agency string, raws []RawRecord) (MergeReport, error) {
	ctx, span := tracer.Start(ctx, "MergeSource")
	defer span.End()
	span.SetAttributes(
		attribute.String("agency", agency),
		attribute.Int("records", len(raws)),
	)

	var report MergeReport
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context done")
			return report, err
		}

		record, err := Normalize(agency, raw)
		if err != nil {
			s.tel.ReportWarning(report_skip_record, err, agency, i)
			report.Skipped++
			continue
		}

		err = s.UpsertAward(ctx, record)
		switch {
		case err == nil:
			report.Processed++
		case errors.Is(err, ErrTransactionFailure):
			report.Failed++
		default:
			s.tel.ReportWarning(report_skip_record, err, agency, i)
			report.Skipped++
		}
	}

	s.tel.ReportCount(report_merge_source+".processed", int64(report.Processed))
	if report.Failed > 0 {
		span.SetStatus(codes.Error, "some records failed")
	}
	return report, nil
}

// Award loads an award and its related rows.
func (s Store) Award(ctx context.Context, awardID string) (Record, error) {
	award, err := s.qry.GetAward(ctx, awardID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrAwardNotFound, awardID)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetAward", awardID)
		return Record{}, err
	}
	investigators, err := s.qry.ListInvestigators(ctx, awardID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListInvestigators", awardID)
		return Record{}, err
	}
	institutions, err := s.qry.ListInstitutions(ctx, awardID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListInstitutions", awardID)
		return Record{}, err
	}
	organizations, err := s.qry.ListOrganizations(ctx, awardID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListOrganizations", awardID)
		return Record{}, err
	}
	return FromRows(award, investigators, institutions, organizations), nil
}

// Counts is the number of rows in each award table.
type Counts = db.CountRowsRow

func (s Store) Count(ctx context.Context) (Counts, error) {
	counts, err := s.qry.CountRows(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CountRows")
		return Counts{}, err
	}
	return counts, nil
}
