package nsf

import (
	"archive/zip"
	"context"
	devenv "fedgrants-backend/dev/env"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/pipeline"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/lib/restyutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const exportXML = `<?xml version="1.0" encoding="UTF-8"?>
<Awards>
	<Award>
		<AwardNumber>2112345</AwardNumber>
		<Title>Deep Learning for Coastal Flood Prediction</Title>
		<Abstract>We study flood models.</Abstract>
		<AwardedAmountToDate>$499,999.00</AwardedAmountToDate>
		<StartDate>09/01/2021</StartDate>
		<EndDate>08/31/2024</EndDate>
		<PrincipalInvestigator>Ada Lovelace</PrincipalInvestigator>
		<PIEmailAddress>ada@example.edu</PIEmailAddress>
		<Organization>Example University</Organization>
		<OrganizationCity>Boston</OrganizationCity>
		<OrganizationState>MA</OrganizationState>
		<NSFDirectorate>CSE</NSFDirectorate>
		<NSFOrganization>IIS</NSFOrganization>
	</Award>
	<Award>
		<AwardNumber>2254321</AwardNumber>
		<Title>Ocean Sensors</Title>
		<Abstract></Abstract>
		<AwardedAmountToDate>$12,000.00</AwardedAmountToDate>
		<StartDate>01/15/2022</StartDate>
		<EndDate></EndDate>
	</Award>
</Awards>`

const bulkXML = `<?xml version="1.0" encoding="UTF-8"?>
<rootTag>
	<Award>
		<AwardTitle>Quantum Networks</AwardTitle>
		<AwardEffectiveDate>07/01/2020</AwardEffectiveDate>
		<AwardExpirationDate>06/30/2023</AwardExpirationDate>
		<AwardAmount>300000</AwardAmount>
		<AwardID>2011111</AwardID>
		<Investigator>
			<FirstName>Grace</FirstName>
			<LastName>Hopper</LastName>
			<EmailAddress>grace@example.edu</EmailAddress>
			<RoleCode>Principal Investigator</RoleCode>
		</Investigator>
		<Investigator>
			<FirstName>Alan</FirstName>
			<LastName>Turing</LastName>
			<RoleCode>Co-Principal Investigator</RoleCode>
		</Investigator>
		<Institution>
			<Name>Example Institute</Name>
			<CityName>Austin</CityName>
			<StateCode>TX</StateCode>
			<CountryName>United States</CountryName>
		</Institution>
		<Organization>
			<Code>05010000</Code>
			<Directorate>
				<Abbreviation>CSE</Abbreviation>
				<LongName>Direct For Computer &amp; Info Scie &amp; Enginr</LongName>
			</Directorate>
			<Division>
				<Abbreviation>CCF</Abbreviation>
				<LongName>Division of Computing and Communication Foundations</LongName>
			</Division>
		</Organization>
		<AbstractNarration>Entangled photons.</AbstractNarration>
	</Award>
</rootTag>`

func TestDecodeExport(t *testing.T) {
	records, err := DecodeAwards(strings.NewReader(exportXML))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, err := awardstore.Normalize("NSF", records[0])
	require.NoError(t, err)
	expected := awardstore.Record{
		AwardID:   "2112345",
		Agency:    "NSF",
		Title:     "Deep Learning for Coastal Flood Prediction",
		Abstract:  "We study flood models.",
		Amount:    499999,
		StartDate: "2021-09-01",
		EndDate:   "2024-08-31",
		Investigators: []awardstore.Investigator{
			{LastName: "Lovelace", FirstName: "Ada", Role: "PI", Email: "ada@example.edu"},
		},
		Institutions: []awardstore.Institution{
			{Name: "Example University", City: "Boston", State: "MA"},
		},
		Organizations: []awardstore.Organization{
			{Directorate: "CSE", Division: "IIS"},
		},
	}
	if diff := cmp.Diff(expected, first); diff != "" {
		t.Fatal("(-expected +got)", diff)
	}

	second, err := awardstore.Normalize("NSF", records[1])
	require.NoError(t, err)
	require.Equal(t, int64(12000), second.Amount)
	require.Equal(t, "", second.EndDate)
}

func TestDecodeBulk(t *testing.T) {
	records, err := DecodeAwards(strings.NewReader(bulkXML))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, awardstore.FormatNSFBulk, awardstore.DetectFormat(records[0]))

	record, err := awardstore.Normalize("NSF", records[0])
	require.NoError(t, err)
	require.Equal(t, "2011111", record.AwardID)
	require.Equal(t, int64(300000), record.Amount)
	require.Equal(t, "2020-07-01", record.StartDate)
	require.Equal(t, []awardstore.Investigator{
		{LastName: "Hopper", FirstName: "Grace", Role: "Principal Investigator", Email: "grace@example.edu"},
		{LastName: "Turing", FirstName: "Alan", Role: "Co-Principal Investigator"},
	}, record.Investigators)
	require.Equal(t, []awardstore.Organization{{
		Code:        "05010000",
		Directorate: "Direct For Computer & Info Scie & Enginr",
		Division:    "Division of Computing and Communication Foundations",
	}}, record.Organizations)
	require.Equal(t, "TX", record.Institutions[0].State)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := DecodeAwards(strings.NewReader(`<Awards><Award><AwardNumber>1</Award>`))
	require.Error(t, err)
}

func TestSearchQuery(t *testing.T) {
	values := SearchQuery(pipeline.Search{
		Years:    []int{2021, 2019},
		Keywords: "flood coastal",
		USOnly:   true,
	})
	require.Equal(t, "US", values.Get("PICountry"))
	require.Equal(t, "01/01/2019", values.Get("OriginalAwardDateFrom"))
	require.Equal(t, "12/31/2021", values.Get("OriginalAwardDateTo"))
	require.Equal(t, "Range", values.Get("OriginalAwardDateOperator"))
	require.Equal(t, "true", values.Get("ActiveAwards"))
	require.Contains(t, values.Get("Keyword"), "flood")
	require.Contains(t, values.Get("Keyword"), "coastal")
	require.True(t, values.Has("PIState"))

	values = SearchQuery(pipeline.Search{})
	require.Equal(t, "", values.Get("PICountry"))
	require.Equal(t, "", values.Get("OriginalAwardDateFrom"))
}

func newServer(t *testing.T, count string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<div class="my-paging-display x-component">Displaying 1 - 2 of ` + count + `</div>
			<a title="Export as XML" href="/awardsearch/ExportResultServlet?exportType=xml">XML</a>
		</body></html>`))
	})
	mux.HandleFunc("/awardsearch/ExportResultServlet", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "xml", r.URL.Query().Get("exportType"))
		w.Header().Set("content-type", "application/xml")
		w.Write([]byte(exportXML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newFetcher(t *testing.T, server *httptest.Server) (Fetcher, *telemetry.RecorderAPI) {
	client, err := restyutil.NewClient(restyutil.ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)
	recorder := &telemetry.RecorderAPI{}
	return NewFetcher(client, recorder), recorder
}

func TestFetch(t *testing.T) {
	server := newServer(t, "2")
	fetcher, recorder := newFetcher(t, server)
	require.True(t, fetcher.Handles("NSF"))
	require.False(t, fetcher.Handles("NIH"))

	search := pipeline.Search{Years: []int{2021}, Agencies: []string{"NSF"}}

	count, err := fetcher.Count(context.Background(), search)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	batches, err := fetcher.Fetch(context.Background(), search)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, "NSF", batches[0].Agency)
	require.Equal(t, 2, batches[0].Reported)
	require.Len(t, batches[0].Records, 2)
	require.Equal(t, "2112345", batches[0].Records[0].Fields["awardnumber"])

	require.NotEmpty(t, recorder.Find("count", "exported"))
}

func TestFetchLargeCount(t *testing.T) {
	server := newServer(t, "3,000")
	fetcher, _ := newFetcher(t, server)

	count, err := fetcher.Count(context.Background(), pipeline.Search{Years: []int{2021}})
	require.NoError(t, err)
	require.Equal(t, 3000, count)
}

func TestFetchEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>No results</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	fetcher, _ := newFetcher(t, server)

	batches, err := fetcher.Fetch(context.Background(), pipeline.Search{})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Empty(t, batches[0].Records)
}

func TestFetchServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	fetcher, recorder := newFetcher(t, server)

	_, err := fetcher.Fetch(context.Background(), pipeline.Search{})
	require.Error(t, err)
	require.NotEmpty(t, recorder.Find("broken", "search-page"))
}

func writeArchive(t *testing.T, path string, files map[string]string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := zip.NewWriter(f)
	for name, contents := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestReadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2020.zip")
	writeArchive(t, path, map[string]string{
		"2011111.xml": bulkXML,
		"README.txt":  "not an award",
	})

	records, err := ReadArchive(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "2011111", records[0].Fields["awardid"])
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte(bulkXML), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), []byte(exportXML), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("skip"), 0666))

	records, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestArchives(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "source.zip")
	writeArchive(t, archivePath, map[string]string{"2011111.xml": bulkXML})
	archiveBytes, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc(downloadPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="downloadcontent">
			<a href="/awardsearch/download?DownloadFileName=2020&All=true">2020</a>
			<a href="/help">Help</a>
		</div></body></html>`))
	})
	mux.HandleFunc("/awardsearch/download", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2020", r.URL.Query().Get("DownloadFileName"))
		w.Write(archiveBytes)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	fetcher, recorder := newFetcher(t, server)

	archives, err := fetcher.Archives(context.Background())
	require.NoError(t, err)
	require.Len(t, archives, 1)
	require.Equal(t, "2020", archives[0].Name)
	require.NotEmpty(t, recorder.Find("warning", "archives.unknown-link"))

	out, err := fetcher.DownloadArchive(context.Background(), archives[0], filepath.Join(dir, "downloads"))
	require.NoError(t, err)
	require.Equal(t, "2020.zip", filepath.Base(out))

	records, err := ReadArchive(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestLiveCount(t *testing.T) {
	cfg, err := devenv.GetStateConfig[devenv.SourceTestConfig]("sources.json5")
	if err != nil {
		t.Skip("no live source config:", err)
	}
	baseUrl := cfg.NsfBaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	client, err := restyutil.NewClient(restyutil.ClientOptions{BaseUrl: baseUrl})
	require.NoError(t, err)
	fetcher := NewFetcher(client, nil)

	count, err := fetcher.Count(context.Background(), pipeline.Search{
		Years:    []int{cfg.Year},
		Agencies: []string{"NSF"},
		Keywords: cfg.Keywords,
	})
	require.NoError(t, err)
	require.Greater(t, count, 0)
}
