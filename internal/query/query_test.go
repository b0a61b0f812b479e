package query

import (
	"context"
	"errors"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/test"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) Querier {
	database := test.OpenInMemoryDB(t, db.Schema)
	store := awardstore.NewStore(database, nil)

	records := []awardstore.Record{
		{
			AwardID: "A1", Agency: "NSF", Title: "Coastal flood models",
			Abstract: "Deep learning models for coastal flood prediction.", Amount: 900000,
			StartDate:    "2016-02-15",
			Institutions: []awardstore.Institution{{Name: "University of Chicago"}},
		},
		{
			AwardID: "A2", Agency: "NSF", Title: "Flood sensors",
			Abstract: "Deep learning models running on river sensors.", Amount: 1050000,
			StartDate:    "2016-03-01",
			Institutions: []awardstore.Institution{{Name: "Univ. of Chicago"}},
		},
		{
			AwardID: "A3", Agency: "NIH", Title: "HIV latency",
			Abstract: "Reservoir cells.", Amount: 1100000,
			StartDate:    "2016-06-30",
			Institutions: []awardstore.Institution{{Name: "Zzyzx Labs"}},
		},
		{
			AwardID: "A4", Agency: "NIH", Title: "Flood related infection",
			Abstract: "Deep learning models of infection after floods.", Amount: 950000,
			StartDate: "2017-01-01",
		},
	}
	for _, r := range records {
		require.NoError(t, store.UpsertAward(context.Background(), r))
	}
	return New(database, nil)
}

func ids(awards []db.Award) []string {
	out := make([]string, len(awards))
	for i, a := range awards {
		out[i] = a.AwardID
	}
	return out
}

func TestKeyword(t *testing.T) {
	q := seed(t)
	awards, err := q.Keyword(context.Background(), []string{"flood"})
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "A2", "A4"}, ids(awards))

	awards, err = q.Keyword(context.Background(), []string{"flood", "sensors"})
	require.NoError(t, err)
	require.Equal(t, []string{"A2"}, ids(awards))
}

func TestAmountNear(t *testing.T) {
	q := seed(t)
	awards, err := q.AmountNear(context.Background(), 1000000)
	require.NoError(t, err)
	// 900000 and 1100000 sit exactly on the excluded bounds
	require.Equal(t, []string{"A4", "A2"}, ids(awards))
}

func TestParseMonth(t *testing.T) {
	for _, month := range []string{"2016-03", "03/2016", "3/2016"} {
		parsed, err := ParseMonth(month)
		require.NoError(t, err, month)
		require.Equal(t, time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC), parsed)
	}
	_, err := ParseMonth("March 2016")
	require.True(t, errors.Is(err, ErrInvalidMonth))
}

func TestDateRange(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	awards, err := q.DateRange(ctx, "2016-03", "06/2016")
	require.NoError(t, err)
	require.Equal(t, []string{"A2", "A3"}, ids(awards))

	awards, err = q.DateRange(ctx, "", "2016-02")
	require.NoError(t, err)
	require.Equal(t, []string{"A1"}, ids(awards))

	awards, err = q.DateRange(ctx, "2016-07", "")
	require.NoError(t, err)
	require.Equal(t, []string{"A4"}, ids(awards))

	_, err = q.DateRange(ctx, "bad", "")
	require.Error(t, err)
}

func TestFilter(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	all, err := q.Filter(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all.Awards, 4)
	require.Equal(t, int64(4000000), all.Total)

	results, err := q.Filter(ctx, Filter{Keywords: []string{"flood"}, Amount: 1000000})
	require.NoError(t, err)
	require.Equal(t, []string{"A2", "A4"}, ids(results.Awards))
	require.Equal(t, int64(2000000), results.Total)

	results, err = q.Filter(ctx, Filter{Keywords: []string{"flood"}, From: "2016-01", To: "2016-12"})
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "A2"}, ids(results.Awards))

	results, err = q.Filter(ctx, Filter{Keywords: []string{"nothing"}})
	require.NoError(t, err)
	require.Empty(t, results.Awards)
	require.Zero(t, results.Total)
}

func TestDetail(t *testing.T) {
	q := seed(t)
	record, err := q.Detail(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, "University of Chicago", record.Institutions[0].Name)

	_, err = q.Detail(context.Background(), "missing")
	require.True(t, errors.Is(err, awardstore.ErrAwardNotFound))
}

func TestInstitutionsLike(t *testing.T) {
	q := seed(t)
	matches, err := q.InstitutionsLike(context.Background(), "university of chicago", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "University of Chicago", matches[0].Name)
	require.Equal(t, 1.0, matches[0].Score)
	require.Equal(t, []string{"A1"}, matches[0].Awards)
	require.Equal(t, "Univ. of Chicago", matches[1].Name)
	require.Equal(t, []string{"A2"}, matches[1].Awards)

	matches, err = q.InstitutionsLike(context.Background(), "university of chicago", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	matches, err = q.InstitutionsLike(context.Background(), "Chicago", 10)
	require.NoError(t, err)
	names := []string{}
	for _, m := range matches {
		names = append(names, m.Name)
	}
	require.ElementsMatch(t, []string{"University of Chicago", "Univ. of Chicago"}, names)
}

func TestTrigrams(t *testing.T) {
	q := seed(t)
	trigrams, err := q.Trigrams(context.Background(), []string{"flood"}, 2, 5)
	require.NoError(t, err)
	require.NotEmpty(t, trigrams)
	require.Equal(t, "deep learning models", trigrams[0].String())
	require.Equal(t, 3, trigrams[0].Count)
}
