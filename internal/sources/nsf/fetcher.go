package nsf

import (
	"bytes"
	"context"
	"fedgrants-backend/internal/pipeline"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/lib/htmlutil"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/sources/nsf")

const (
	DefaultBaseUrl = "https://www.nsf.gov"
	searchPath     = "/awardsearch/advancedSearchResult"
)

const (
	report_search_page = "search-page"
	report_export      = "export"
)

// SearchQuery builds the query string of an NSF advanced award search.
func SearchQuery(search pipeline.Search) url.Values {
	values := url.Values{}
	for _, empty := range []string{
		"PIId", "PIFirstName", "PILastName", "PIOrganization", "PIState", "PIZip",
		"ProgOrganization", "ProgEleCode", "ProgRefCode", "Program", "ProgOfficer",
		"AwardNumberOperator", "AwardAmount", "AwardInstrument",
		"StartDateOperator", "ExpDateOperator",
	} {
		values.Set(empty, "")
	}
	values.Set("BooleanElement", "All")
	values.Set("BooleanRef", "All")
	values.Set("ActiveAwards", "true")
	values.Set("ExpiredAwards", "true")

	country := ""
	if search.USOnly {
		country = "US"
	}
	values.Set("PICountry", country)
	// spaces are encoded as "+", which the search treats as separate keywords
	values.Set("Keyword", strings.Join(search.Terms(), " "))

	values.Set("OriginalAwardDateOperator", "Range")
	from, to := "", ""
	if first, last, ok := search.YearRange(); ok {
		from = fmt.Sprintf("01/01/%d", first)
		to = fmt.Sprintf("12/31/%d", last)
	}
	values.Set("OriginalAwardDateFrom", from)
	values.Set("OriginalAwardDateTo", to)
	return values
}

// Fetcher downloads NSF award search results through the XML export of the search page.
type Fetcher struct {
	client *resty.Client
	tel    telemetry.API
}

// NewFetcher expects a client whose base url is the NSF website.
func NewFetcher(client *resty.Client, tel telemetry.API) Fetcher {
	return Fetcher{
		client: client,
		tel:    telemetry.NewScopedAPI("nsf", telemetry.OrDefault(tel)),
	}
}

func (f Fetcher) Name() string {
	return "nsf"
}

func (f Fetcher) Handles(agency string) bool {
	return agency == "NSF"
}

type searchPage struct {
	count  int
	export string
}

// parseSearchPage reads the result count out of the "Displaying 1 - 30 of 3000"
// paging text and finds the XML export link.
func parseSearchPage(ctx context.Context, doc *goquery.Document, pageUrl *url.URL) (searchPage, error) {
	var page searchPage

	paging := strings.Fields(doc.Find("div.my-paging-display").First().Text())
	if len(paging) > 0 {
		count, err := strconv.Atoi(strings.ReplaceAll(paging[len(paging)-1], ",", ""))
		if err != nil {
			return searchPage{}, fmt.Errorf("parse result count: %w", err)
		}
		page.count = count
	}

	anchors := htmlutil.GetAnchors(ctx, doc.Find(`a[title="Export as XML"]`), pageUrl)
	if len(anchors) > 0 {
		page.export = anchors[0].Href
	}
	return page, nil
}

func (f Fetcher) searchPage(ctx context.Context, search pipeline.Search) (searchPage, error) {
	ctx, span := tracer.Start(ctx, "searchPage")
	defer span.End()

	res, err := f.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(SearchQuery(search)).
		Get(searchPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch search page")
		return searchPage{}, err
	}
	if res.IsError() {
		err = fmt.Errorf("search page: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		f.tel.ReportBroken(report_search_page, err)
		return searchPage{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse html")
		return searchPage{}, err
	}
	page, err := parseSearchPage(ctx, doc, res.RawResponse.Request.URL)
	if err != nil {
		span.RecordError(err)
		f.tel.ReportBroken(report_search_page, err)
		return searchPage{}, err
	}
	span.SetAttributes(attribute.Int("count", page.count))
	return page, nil
}

func (f Fetcher) Count(ctx context.Context, search pipeline.Search) (int, error) {
	page, err := f.searchPage(ctx, search)
	if err != nil {
		return 0, err
	}
	return page.count, nil
}

func (f Fetcher) Fetch(ctx context.Context, search pipeline.Search) ([]pipeline.Batch, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	page, err := f.searchPage(ctx, search)
	if err != nil {
		return nil, err
	}
	batch := pipeline.Batch{Agency: "NSF", Reported: page.count}
	if page.count == 0 {
		return []pipeline.Batch{batch}, nil
	}
	if page.export == "" {
		err = fmt.Errorf("export link not found on search page")
		span.SetStatus(codes.Error, err.Error())
		f.tel.ReportBroken(report_export, err)
		return nil, err
	}

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(page.export)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download export")
		return nil, err
	}
	body := res.RawBody()
	defer body.Close()
	if res.IsError() {
		err = fmt.Errorf("export: %s", res.Status())
		f.tel.ReportBroken(report_export, err)
		return nil, err
	}

	batch.Records, err = DecodeAwards(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode export")
		f.tel.ReportBroken(report_export, err)
		return nil, err
	}
	f.tel.ReportCount("exported", int64(len(batch.Records)))
	return []pipeline.Batch{batch}, nil
}
