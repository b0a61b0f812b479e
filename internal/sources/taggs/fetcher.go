package taggs

import (
	"bytes"
	"context"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/pipeline"
	"fedgrants-backend/internal/telemetry"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/sources/taggs")

const DefaultBaseUrl = "https://taggs.hhs.gov"

// Divisions are the HHS operating divisions TAGGS holds awards of.
var Divisions = []string{"AHRQ", "CDC", "FDA", "NIH"}

const (
	report_detail      = "detail"
	report_unparsed    = "award-link"
	report_no_division = "no-division"
)

// Fetcher reads TAGGS exports and completes them with the abstracts found on the
// award detail pages.
type Fetcher struct {
	client   *resty.Client
	exporter Exporter
	tel      telemetry.API
}

// NewFetcher expects a client whose base url is the TAGGS website, detail links
// on result pages are resolved against it.
func NewFetcher(client *resty.Client, exporter Exporter, tel telemetry.API) Fetcher {
	return Fetcher{
		client:   client,
		exporter: exporter,
		tel:      telemetry.NewScopedAPI("taggs", telemetry.OrDefault(tel)),
	}
}

func (f Fetcher) Name() string {
	return "taggs"
}

func (f Fetcher) Handles(agency string) bool {
	return slices.Contains(Divisions, agency)
}

func (f Fetcher) baseUrl() (*url.URL, error) {
	return url.Parse(f.client.BaseURL)
}

func readExport(export Export) ([]awardstore.RawRecord, error) {
	var records []awardstore.RawRecord
	for _, path := range export.CSVPaths {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		rows, err := ReadCSV(file)
		file.Close()
		if err != nil {
			return nil, err
		}
		records = append(records, rows...)
	}
	return records, nil
}

// Count sums the distinct award counts of the result pages, it falls back to the
// number of distinct award numbers in the export.
func (f Fetcher) Count(ctx context.Context, search pipeline.Search) (int, error) {
	export, err := f.exporter.Export(ctx, search)
	if err != nil {
		return 0, err
	}
	docs, err := export.readPages()
	if err != nil {
		return 0, err
	}
	total := 0
	found := false
	for _, doc := range docs {
		count, ok := ParseDistinctCount(doc)
		if ok {
			total += count
			found = true
		}
	}
	if found {
		return total, nil
	}

	records, err := readExport(export)
	if err != nil {
		return 0, err
	}
	distinct := map[string]struct{}{}
	for _, r := range records {
		distinct[r.Fields["award number"]] = struct{}{}
	}
	return len(distinct), nil
}

// division picks the operating division of a row, a search of a single
// division implies it.
func division(raw awardstore.RawRecord, search pipeline.Search) string {
	division := strings.ToUpper(strings.TrimSpace(raw.Fields["opdiv"]))
	if division == "" && len(search.Agencies) == 1 {
		return search.Agencies[0]
	}
	return division
}

func (f Fetcher) Fetch(ctx context.Context, search pipeline.Search) ([]pipeline.Batch, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	export, err := f.exporter.Export(ctx, search)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to export search")
		return nil, err
	}
	records, err := readExport(export)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read export")
		return nil, err
	}
	links, err := f.awardLinks(ctx, export)
	if err != nil {
		return nil, err
	}

	byDivision := map[string][]awardstore.RawRecord{}
	for _, raw := range records {
		div := division(raw, search)
		if len(search.Agencies) > 0 && !slices.Contains(search.Agencies, div) {
			f.tel.ReportDebug("skip row of other division", "award", raw.Fields["award number"], "division", div)
			continue
		}
		if div == "" {
			f.tel.ReportWarning(report_no_division, raw.Fields["award number"])
			continue
		}

		if raw.Fields["abstract"] == "" {
			link, ok := links[raw.Fields["award number"]]
			if ok {
				abstract, err := f.abstract(ctx, link)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if err != nil {
					f.tel.ReportWarning(report_detail, link, err)
				}
				raw.Fields["abstract"] = abstract
			}
		}
		byDivision[div] = append(byDivision[div], raw)
	}

	var batches []pipeline.Batch
	for _, div := range Divisions {
		rows, ok := byDivision[div]
		if !ok {
			continue
		}
		batches = append(batches, pipeline.Batch{
			Agency:   div,
			Records:  rows,
			Reported: len(rows),
		})
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return batches, nil
}

func (f Fetcher) awardLinks(ctx context.Context, export Export) (map[string]string, error) {
	base, err := f.baseUrl()
	if err != nil {
		return nil, err
	}
	docs, err := export.readPages()
	if err != nil {
		return nil, err
	}
	links := map[string]string{}
	for _, doc := range docs {
		pageLinks, unparsed := ParseAwardLinks(ctx, doc, base)
		for _, href := range unparsed {
			f.tel.ReportWarning(report_unparsed, href)
		}
		for award, link := range pageLinks {
			links[award] = link
		}
	}
	return links, nil
}

func (f Fetcher) abstract(ctx context.Context, link string) (string, error) {
	ctx, span := tracer.Start(ctx, "abstract")
	defer span.End()
	span.SetAttributes(attribute.String("link", link))

	res, err := f.client.R().SetContext(ctx).Get(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch detail page")
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf("detail page: %s", res.Status())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", err
	}
	abstract, ok := ParseAbstract(doc)
	if !ok {
		return "", fmt.Errorf("no abstract panel")
	}
	return abstract, nil
}
