package awardstore

import (
	"context"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/test"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, *telemetry.RecorderAPI) {
	rec := &telemetry.RecorderAPI{}
	return NewStore(test.OpenInMemoryDB(t, db.Schema), rec), rec
}

func sampleRecord(id string) Record {
	return Record{
		AwardID:   id,
		Agency:    "NSF",
		Title:     "The Role of HIV in Immunology",
		Abstract:  "Immune response",
		Amount:    1234567,
		StartDate: "2012-01-01",
		EndDate:   "2014-12-31",
		Investigators: []Investigator{
			{LastName: "Doe", FirstName: "Jane", Role: "PI", Email: "jane@example.edu"},
			{LastName: "Roe", FirstName: "Rick", Role: "Co-PI"},
		},
		Institutions: []Institution{
			{Name: "Example University", City: "Chicago", State: "IL", Zipcode: "60637", Country: "United States"},
		},
		Organizations: []Organization{
			{Code: "08010000", Directorate: "Biological Sciences", Division: "Molecular and Cellular Bioscience"},
		},
	}
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	record := sampleRecord("1200001")
	require.NoError(t, store.UpsertAward(ctx, record))
	first, err := store.Count(ctx)
	require.NoError(t, err)

	require.NoError(t, store.UpsertAward(ctx, record))
	second, err := store.Count(ctx)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, Counts{
		Awards:        1,
		Investigators: 2,
		Institutions:  1,
		Organizations: 1,
		Keywords:      5,
	}, second)

	loaded, err := store.Award(ctx, "1200001")
	require.NoError(t, err)
	diff := cmp.Diff(record, loaded)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestUpsertReplacesRelatedRows(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	record := sampleRecord("1200001")
	require.NoError(t, store.UpsertAward(ctx, record))

	record.Title = "Soil ecology"
	record.Abstract = ""
	record.Investigators = record.Investigators[:1]
	record.EndDate = ""
	require.NoError(t, store.UpsertAward(ctx, record))

	loaded, err := store.Award(ctx, "1200001")
	require.NoError(t, err)
	require.Equal(t, "Soil ecology", loaded.Title)
	require.Len(t, loaded.Investigators, 1)
	require.Equal(t, "", loaded.EndDate)

	counts, err := store.Count(ctx)
	require.NoError(t, err)
	// "soil" and "ecology"
	require.Equal(t, int64(2), counts.Keywords)
}

func TestUpsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	record := sampleRecord("   ")
	require.ErrorIs(t, store.UpsertAward(ctx, record), ErrConstraintViolation)

	record = sampleRecord("1200002")
	record.StartDate = "01/01/2012"
	require.ErrorIs(t, store.UpsertAward(ctx, record), ErrTypeConversion)

	counts, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), counts.Awards)
}

func rawExport(id, amount string) RawRecord {
	return RawRecord{Fields: map[string]string{
		"awardnumber":           id,
		"title":                 fmt.Sprintf("Award %s", id),
		"awardedamounttodate":   amount,
		"startdate":             "01/15/2012",
		"principalinvestigator": "Jane Doe",
		"organization":          "Example University",
		"nsfdirectorate":        "BIO",
	}}
}

func TestMergeSourceSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t)

	raws := []RawRecord{
		rawExport("0000001", "$100"),
		rawExport("0000002", "$200"),
		rawExport("0000003", "two hundred"),
		rawExport("0000004", "$400"),
		rawExport("0000005", "$500"),
	}
	report, err := store.MergeSource(ctx, "NSF", raws)
	require.NoError(t, err)
	require.Equal(t, MergeReport{Processed: 4, Skipped: 1}, report)

	for _, id := range []string{"0000001", "0000002", "0000004", "0000005"} {
		record, err := store.Award(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "NSF", record.Agency)
		require.Len(t, record.Institutions, 1)
		require.Len(t, record.Investigators, 1)
		require.Len(t, record.Organizations, 1)
	}

	_, err = store.Award(ctx, "0000003")
	require.ErrorIs(t, err, ErrAwardNotFound)

	counts, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), counts.Awards)
	require.Equal(t, int64(4), counts.Institutions)
	require.Equal(t, int64(4), counts.Investigators)

	require.Len(t, rec.Find("warning", "merge-source.skip-record"), 1)
}

func TestMergeSourceAgenciesShareTables(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.MergeSource(ctx, "NSF", []RawRecord{rawExport("0000001", "1")})
	require.NoError(t, err)
	_, err = store.MergeSource(ctx, "NIH", []RawRecord{{Fields: map[string]string{
		"award number": "R01AI000001",
		"award title":  "HIV latency",
	}}})
	require.NoError(t, err)

	counts, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts.Awards)

	record, err := store.Award(ctx, "R01AI000001")
	require.NoError(t, err)
	require.Equal(t, "NIH", record.Agency)
}

func TestMergeSourceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, _ := newTestStore(t)

	report, err := store.MergeSource(ctx, "NSF", []RawRecord{rawExport("0000001", "1")})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, MergeReport{}, report)
}
