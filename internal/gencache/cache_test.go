package gencache

import (
	"context"
	"database/sql"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/test"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (Cache, *telemetry.RecorderAPI) {
	rec := &telemetry.RecorderAPI{}
	return NewCache(test.OpenInMemoryDB(t, db.CacheSchema), rec), rec
}

func stagedAward(id string) StagedSet {
	name := func(s string) sql.NullString {
		return sql.NullString{String: s, Valid: true}
	}
	return StagedSet{
		Awards: []db.Award{{AwardID: id, Agency: "NSF", Title: "Award " + id, Amount: 100}},
		Investigators: []db.Investigator{
			{AwardID: id, LastName: name("Doe"), FirstName: name("Jane")},
		},
		Institutions: []db.Institution{
			{AwardID: id, Name: name("Example University")},
		},
		Organizations: []db.Organization{
			{AwardID: id, OrganizationCode: name("08010000")},
		},
		Keywords: []db.KeywordIndex{
			{AwardID: id, Keyword: "award"},
		},
	}
}

func TestNextGeneration(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	gen, err := cache.NextGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), gen)

	require.NoError(t, cache.MergeSearchResults(ctx, stagedAward("A"), 0))
	gen, err = cache.NextGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)

	require.NoError(t, cache.MergeSearchResults(ctx, stagedAward("B"), 7))
	gen, err = cache.NextGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(8), gen)
}

func TestEvictionWindow(t *testing.T) {
	ctx := context.Background()
	cache, rec := newTestCache(t)

	for gen := int64(0); gen <= 25; gen++ {
		require.NoError(t, cache.MergeSearchResults(ctx, stagedAward(fmt.Sprintf("award-%02d", gen)), gen))
	}

	evicted, err := cache.EvictOlderThan(ctx, 25, 20)
	require.NoError(t, err)
	require.Equal(t, int64(5), evicted)

	counters, err := db.New(cache.DB()).ListCachedCounters(ctx)
	require.NoError(t, err)
	perTable := map[string]int{}
	for _, row := range counters {
		require.GreaterOrEqual(t, row.Counter, int64(5), row.Table)
		require.LessOrEqual(t, row.Counter, int64(25), row.Table)
		perTable[row.Table]++
	}
	for _, table := range db.Tables {
		require.Equal(t, 21, perTable[table], table)
	}

	gens, err := cache.Generations(ctx)
	require.NoError(t, err)
	require.Len(t, gens, 21)
	require.Equal(t, int64(5), gens[0].Counter)
	require.Equal(t, int64(25), gens[len(gens)-1].Counter)

	counts := rec.Find("count", "gencache.evicted")
	require.Len(t, counts, 1)
	require.Equal(t, int64(5), counts[0].Count)
}

func TestMergeReplacesCachedAward(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.MergeSearchResults(ctx, stagedAward("A"), 0))

	second := stagedAward("A")
	second.Institutions[0].Name = sql.NullString{String: "Other College", Valid: true}
	second.Investigators = append(second.Investigators, db.Investigator{AwardID: "A"})
	require.NoError(t, cache.MergeSearchResults(ctx, second, 1))

	qry := db.New(cache.DB())
	institutions, err := qry.ListInstitutions(ctx, "A")
	require.NoError(t, err)
	require.Len(t, institutions, 1)
	require.Equal(t, "Other College", institutions[0].Name.String)

	investigators, err := qry.ListInvestigators(ctx, "A")
	require.NoError(t, err)
	require.Len(t, investigators, 2)

	counters, err := qry.ListCachedCounters(ctx)
	require.NoError(t, err)
	for _, row := range counters {
		require.Equal(t, int64(1), row.Counter, row.Table)
	}
}

func TestMergeIsAtomic(t *testing.T) {
	ctx := context.Background()
	cache, rec := newTestCache(t)

	staged := stagedAward("A")
	// references an award that was never staged
	staged.Institutions = append(staged.Institutions, db.Institution{AwardID: "missing"})

	err := cache.MergeSearchResults(ctx, staged, 0)
	require.ErrorIs(t, err, awardstore.ErrTransactionFailure)
	require.NotEmpty(t, rec.Find("broken", "gencache.merge"))

	counters, err := db.New(cache.DB()).ListCachedCounters(ctx)
	require.NoError(t, err)
	require.Empty(t, counters)
}

func TestMergeFromSQLStaging(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	staging := awardstore.NewStore(test.OpenInMemoryDB(t, db.Schema), nil)
	require.NoError(t, staging.UpsertAward(ctx, awardstore.Record{
		AwardID:       "1600001",
		Agency:        "NSF",
		Title:         "Coral reef genomics",
		Amount:        450000,
		StartDate:     "2016-08-15",
		Institutions:  []awardstore.Institution{{Name: "Example University"}},
		Investigators: []awardstore.Investigator{{LastName: "Lopez"}},
	}))

	var last MergeResult
	for i := 0; i < 3; i++ {
		result, err := cache.Merge(ctx, NewSQLStaging(staging.DB()), DefaultWindow)
		require.NoError(t, err)
		require.NoError(t, result.EvictErr)
		require.Equal(t, int64(i), result.Generation)
		require.Equal(t, 1, result.Awards)
		last = result
	}
	require.Equal(t, int64(0), last.Evicted)

	cached := awardstore.NewStore(cache.DB(), nil)
	record, err := cached.Award(ctx, "1600001")
	require.NoError(t, err)
	require.Equal(t, "Coral reef genomics", record.Title)
	require.Len(t, record.Institutions, 1)

	counts, err := cached.Count(ctx)
	require.NoError(t, err)
	// coral, reef, genomics
	require.Equal(t, int64(3), counts.Keywords)

	gens, err := cache.Generations(ctx)
	require.NoError(t, err)
	require.Equal(t, []db.Generation{{Counter: 2, Awards: 1}}, gens)
}

func TestMergeSlidesWindow(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	var evicted int64
	for i := 0; i < 23; i++ {
		result, err := cache.Merge(ctx, stagedAward(fmt.Sprintf("award-%02d", i)), 20)
		require.NoError(t, err)
		evicted += result.Evicted
	}
	// generation 22 keeps generations 2 through 22
	require.Equal(t, int64(2), evicted)

	gens, err := cache.Generations(ctx)
	require.NoError(t, err)
	require.Len(t, gens, 21)
	require.Equal(t, int64(2), gens[0].Counter)
}
