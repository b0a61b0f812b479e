package keywords

import (
	"context"
	"database/sql"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/telemetry"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/roaring64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/keywords")

const (
	report_db_query = "db.query"
	report_rebuild  = "rebuild"
)

// Index is the inverted keyword index stored in the keyword_index table of an award database.
type Index struct {
	qry    *db.Queries
	maketx db.MakeTx
	tel    telemetry.API
}

func NewIndex(database *sql.DB, tel telemetry.API) Index {
	return Index{
		qry:    db.New(database),
		maketx: db.NewMakeTx(database),
		tel:    telemetry.NewScopedAPI("keywords", telemetry.OrDefault(tel)),
	}
}

// WriteEntries replaces the keyword entries of an award using qry, which is
// expected to be bound to the caller's transaction.
func WriteEntries(ctx context.Context, qry *db.Queries, awardID, title, abstract string) error {
	err := qry.DeleteKeywords(ctx, awardID)
	if err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	for _, keyword := range Tokenize(title, abstract) {
		err = qry.CreateKeyword(ctx, db.KeywordIndex{
			AwardID: awardID,
			Keyword: keyword,
		})
		if err != nil {
			return fmt.Errorf("create keyword '%s': %w", keyword, err)
		}
	}
	return nil
}

// IndexAward replaces the index entries of a single award.
func (i Index) IndexAward(ctx context.Context, awardID, title, abstract string) error {
	tx, err := i.maketx(ctx)
	if err != nil {
		i.tel.ReportBroken(report_db_query, fmt.Errorf("begin tx: %w", err))
		return err
	}
	defer tx.Discard()

	err = WriteEntries(ctx, tx.Queries, awardID, title, abstract)
	if err != nil {
		i.tel.ReportBroken(report_db_query, err, awardID)
		return err
	}
	return tx.Commit()
}

// Search returns the ids of the awards indexed under every one of keywords, sorted.
// An empty list of keywords matches nothing.
func (i Index) Search(ctx context.Context, keywords []string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	if len(keywords) == 0 {
		return nil, nil
	}

	var result *roaring64.Bitmap
	idOf := map[uint64]string{}
	for _, kw := range keywords {
		postings, err := i.qry.ListKeywordPostings(ctx, Normalize(kw))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list postings")
			i.tel.ReportBroken(report_db_query, err, "ListKeywordPostings", kw)
			return nil, err
		}

		bm := roaring64.New()
		for _, p := range postings {
			bm.Add(uint64(p.Rowid))
			idOf[uint64(p.Rowid)] = p.AwardID
		}
		if result == nil {
			result = bm
		} else {
			result.And(bm)
		}
		if result.IsEmpty() {
			return nil, nil
		}
	}

	rowids := result.ToArray()
	ids := make([]string, 0, len(rowids))
	for _, rowid := range rowids {
		ids = append(ids, idOf[rowid])
	}
	slices.Sort(ids)
	return ids, nil
}

// Rebuild drops every index entry and regenerates the index from the awards table in
// a single transaction, returning the number of awards indexed.
func (i Index) Rebuild(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Rebuild")
	defer span.End()

	tx, err := i.maketx(ctx)
	if err != nil {
		i.tel.ReportBroken(report_rebuild, fmt.Errorf("begin tx: %w", err))
		return 0, err
	}
	defer tx.Discard()
	txqry := tx.Queries

	awards, err := txqry.ListAwardText(ctx)
	if err != nil {
		i.tel.ReportBroken(report_db_query, err, "ListAwardText")
		return 0, err
	}
	err = txqry.DeleteAllKeywords(ctx)
	if err != nil {
		i.tel.ReportBroken(report_db_query, err, "DeleteAllKeywords")
		return 0, err
	}
	for _, award := range awards {
		err = WriteEntries(ctx, txqry, award.AwardID, award.Title, award.Abstract)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write entries")
			i.tel.ReportBroken(report_rebuild, err, award.AwardID)
			return 0, err
		}
	}

	err = tx.Commit()
	if err != nil {
		i.tel.ReportBroken(report_rebuild, fmt.Errorf("commit: %w", err))
		return 0, err
	}
	i.tel.ReportCount("indexed", int64(len(awards)))
	return len(awards), nil
}
