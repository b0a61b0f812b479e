package awards

import (
	"context"
	"database/sql"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/gencache"
	"fedgrants-backend/internal/query"
	"fedgrants-backend/lib/testutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func seedCanonical(t *testing.T, database *sql.DB) {
	store := awardstore.NewStore(database, nil)
	for _, r := range []awardstore.Record{
		{
			AwardID: "1600001", Agency: "NSF", Title: "Coastal flood prediction",
			Abstract: "Flood models.", Amount: 1000000, StartDate: "2016-03-01",
			Investigators: []awardstore.Investigator{{LastName: "Doe", FirstName: "Jane", Role: "PI"}},
			Institutions:  []awardstore.Institution{{Name: "University of Chicago", City: "Chicago"}},
			Organizations: []awardstore.Organization{{Directorate: "GEO", Division: "EAR"}},
		},
		{
			AwardID: "R01AI1", Agency: "NIH", Title: "HIV latency",
			Abstract: "Reservoirs.", Amount: 500000, StartDate: "2017-05-01",
		},
	} {
		require.NoError(t, store.UpsertAward(context.Background(), r))
	}
}

func newTestServer(t *testing.T) *resty.Client {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/awards",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	seedCanonical(t, setup.DB)

	service := NewService(query.New(setup.DB, nil), nil, nil)
	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)

	return resty.New().SetBaseURL(server.URL).SetTimeout(5 * time.Second)
}

func TestListAwards(t *testing.T) {
	client := newTestServer(t)

	var all ListAwardsResponse
	res, err := client.R().SetResult(&all).Get("/awards")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, 2, all.Count)
	require.Equal(t, int64(1500000), all.Total)

	var filtered ListAwardsResponse
	res, err = client.R().
		SetQueryParams(map[string]string{"keywords": "flood,coastal", "amount": "$1,050,000", "from": "2016-01", "to": "12/2016"}).
		SetResult(&filtered).
		Get("/awards")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Len(t, filtered.Awards, 1)
	require.Equal(t, "1600001", filtered.Awards[0].AwardID)
	require.Equal(t, "2016-03-01", filtered.Awards[0].StartDate)
	require.Equal(t, "", filtered.Awards[0].EndDate)
}

func TestListAwardsBadRequest(t *testing.T) {
	client := newTestServer(t)

	res, err := client.R().SetQueryParam("amount", "lots").Get("/awards")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode())

	res, err = client.R().SetQueryParam("from", "March").Get("/awards")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode())
}

func TestGetAward(t *testing.T) {
	client := newTestServer(t)

	var detail AwardDetail
	res, err := client.R().SetResult(&detail).Get("/awards/1600001")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, "Coastal flood prediction", detail.Title)
	require.Equal(t, []awardstore.Investigator{{LastName: "Doe", FirstName: "Jane", Role: "PI"}}, detail.Investigators)
	require.Equal(t, "GEO", detail.Organizations[0].Directorate)

	res, err = client.R().Get("/awards/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode())
}

func TestListInstitutions(t *testing.T) {
	client := newTestServer(t)

	var institutions []Institution
	res, err := client.R().SetQueryParam("name", "Univ of Chicago").SetResult(&institutions).Get("/institutions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Len(t, institutions, 1)
	require.Equal(t, []string{"1600001"}, institutions[0].Awards)

	res, err = client.R().Get("/institutions")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode())
}

func TestListGenerations(t *testing.T) {
	client := newTestServer(t)
	res, err := client.R().Get("/cache/generations")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode())

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/awards",
		DbSchema: db.CacheSchema,
	})
	defer cleanup()
	cache := gencache.NewCache(setup.DB, nil)
	for i := 0; i < 2; i++ {
		_, err := cache.Merge(context.Background(), gencache.StagedSet{
			Awards: []db.Award{{AwardID: "1600001", Agency: "NSF", Title: "Flood", Amount: 1}},
		}, gencache.DefaultWindow)
		require.NoError(t, err)
	}

	server := httptest.NewServer(NewService(query.New(setup.DB, nil), &cache, nil).Handler())
	defer server.Close()

	var gens []Generation
	res, err = resty.New().SetBaseURL(server.URL).R().SetResult(&gens).Get("/cache/generations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	// the second merge re-stamps the award into generation 1
	require.Equal(t, []Generation{{Generation: 1, Awards: 1}}, gens)
}
