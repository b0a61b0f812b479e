package query

import (
	"context"
	"database/sql"
	"errors"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/keywords"
	"fedgrants-backend/internal/telemetry"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/query")

var ErrInvalidMonth = errors.New("invalid month")

const report_db_query = "db.query"

// Querier answers read-only questions about an award database, either the
// canonical one or the search cache.
type Querier struct {
	qry   *db.Queries
	index keywords.Index
	store awardstore.Store
	tel   telemetry.API
}

func New(database *sql.DB, tel telemetry.API) Querier {
	tel = telemetry.NewScopedAPI("query", telemetry.OrDefault(tel))
	return Querier{
		qry:   db.New(database),
		index: keywords.NewIndex(database, tel),
		store: awardstore.NewStore(database, tel),
		tel:   tel,
	}
}

// Keyword returns the awards whose title or abstract contains every keyword.
func (q Querier) Keyword(ctx context.Context, words []string) ([]db.Award, error) {
	ids, err := q.index.Search(ctx, words)
	if err != nil {
		return nil, err
	}
	return q.awards(ctx, ids)
}

func (q Querier) awards(ctx context.Context, ids []string) ([]db.Award, error) {
	awards := make([]db.Award, 0, len(ids))
	for _, id := range ids {
		award, err := q.qry.GetAward(ctx, id)
		if err != nil {
			q.tel.ReportBroken(report_db_query, err, "GetAward", id)
			return nil, err
		}
		awards = append(awards, award)
	}
	return awards, nil
}

// AmountNear returns the awards within 10% of target, bounds excluded.
func (q Querier) AmountNear(ctx context.Context, target int64) ([]db.Award, error) {
	// amount > 0.9*target and amount < 1.1*target on whole dollars
	awards, err := q.qry.ListAwardsByAmount(ctx, db.ListAwardsByAmountParams{
		Above: 9 * target / 10,
		Below: (11*target + 9) / 10,
	})
	if err != nil {
		q.tel.ReportBroken(report_db_query, err, "ListAwardsByAmount", target)
		return nil, err
	}
	return awards, nil
}

// ParseMonth accepts YYYY-MM and MM/YYYY.
func ParseMonth(month string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "01/2006", "1/2006"} {
		t, err := time.Parse(layout, month)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
}

const (
	earliestDate = "0000-01-01"
	latestDate   = "9999-12-31"
)

// DateRange returns the awards starting in the months from through to, both
// included. Either bound may be empty.
func (q Querier) DateRange(ctx context.Context, from, to string) ([]db.Award, error) {
	params := db.ListAwardsByStartDateParams{From: earliestDate, Before: latestDate}
	if from != "" {
		start, err := ParseMonth(from)
		if err != nil {
			return nil, err
		}
		params.From = start.Format(time.DateOnly)
	}
	if to != "" {
		end, err := ParseMonth(to)
		if err != nil {
			return nil, err
		}
		params.Before = end.AddDate(0, 1, 0).Format(time.DateOnly)
	}

	awards, err := q.qry.ListAwardsByStartDate(ctx, params)
	if err != nil {
		q.tel.ReportBroken(report_db_query, err, "ListAwardsByStartDate", params.From, params.Before)
		return nil, err
	}
	return awards, nil
}

// Detail returns an award with its investigators, institutions and organizations.
func (q Querier) Detail(ctx context.Context, awardID string) (awardstore.Record, error) {
	return q.store.Award(ctx, awardID)
}

type Filter struct {
	Keywords []string
	// Amount selects awards within 10% of it, zero disables the filter.
	Amount int64
	From   string
	To     string
}

func (f Filter) empty() bool {
	return len(f.Keywords) == 0 && f.Amount == 0 && f.From == "" && f.To == ""
}

type Results struct {
	Awards []db.Award
	// Total is the summed amount of the awards.
	Total int64
}

func intersect(current map[string]db.Award, awards []db.Award) map[string]db.Award {
	next := map[string]db.Award{}
	for _, a := range awards {
		if current == nil {
			next[a.AwardID] = a
			continue
		}
		if _, ok := current[a.AwardID]; ok {
			next[a.AwardID] = a
		}
	}
	return next
}

// Filter combines the keyword, amount and date filters, an empty filter returns
// every award.
func (q Querier) Filter(ctx context.Context, f Filter) (Results, error) {
	ctx, span := tracer.Start(ctx, "Filter")
	defer span.End()

	var awards []db.Award
	if f.empty() {
		all, err := q.qry.ListAwards(ctx)
		if err != nil {
			q.tel.ReportBroken(report_db_query, err, "ListAwards")
			return Results{}, err
		}
		awards = all
	} else {
		var matched map[string]db.Award
		if len(f.Keywords) > 0 {
			found, err := q.Keyword(ctx, f.Keywords)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "keyword search")
				return Results{}, err
			}
			matched = intersect(matched, found)
		}
		if f.Amount != 0 {
			found, err := q.AmountNear(ctx, f.Amount)
			if err != nil {
				return Results{}, err
			}
			matched = intersect(matched, found)
		}
		if f.From != "" || f.To != "" {
			found, err := q.DateRange(ctx, f.From, f.To)
			if err != nil {
				return Results{}, err
			}
			matched = intersect(matched, found)
		}
		for _, a := range matched {
			awards = append(awards, a)
		}
		slices.SortFunc(awards, func(a, b db.Award) int {
			if a.AwardID < b.AwardID {
				return -1
			}
			if a.AwardID > b.AwardID {
				return 1
			}
			return 0
		})
	}

	results := Results{Awards: awards}
	for _, a := range awards {
		results.Total += a.Amount
	}
	span.SetAttributes(attribute.Int("results", len(awards)))
	return results, nil
}

// Trigrams returns the phrases repeated across the awards matching every keyword.
func (q Querier) Trigrams(ctx context.Context, words []string, minRepeat, maxReturn int) ([]keywords.Trigram, error) {
	awards, err := q.Keyword(ctx, words)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, 2*len(awards))
	for _, a := range awards {
		texts = append(texts, a.Title, a.Abstract)
	}
	return keywords.RepeatedTrigrams(texts, minRepeat, maxReturn), nil
}
