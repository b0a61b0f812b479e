package nsf

import (
	"archive/zip"
	"bytes"
	"context"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/lib/htmlutil"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const downloadPath = "/awardsearch/download.jsp"

// ReadDir decodes every bulk award file (*.xml) in dir.
func ReadDir(dir string) ([]awardstore.RawRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var records []awardstore.RawRecord
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeAwards(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		records = append(records, decoded...)
	}
	return records, nil
}

// ReadArchive decodes every bulk award file inside a yearly zip archive.
func ReadArchive(path string) ([]awardstore.RawRecord, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	var records []awardstore.RawRecord
	for _, file := range archive.File {
		if !strings.EqualFold(filepath.Ext(file.Name), ".xml") {
			continue
		}
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		decoded, err := DecodeAwards(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.Name, err)
		}
		records = append(records, decoded...)
	}
	return records, nil
}

// Archive is a yearly bulk download offered by the NSF download page.
type Archive struct {
	Name string
	Url  string
}

var downloadNameRegex = regexp.MustCompile(`DownloadFileName=(\w+)`)

// Archives lists the bulk archives linked from the download page.
func (f Fetcher) Archives(ctx context.Context) ([]Archive, error) {
	ctx, span := tracer.Start(ctx, "Archives")
	defer span.End()

	res, err := f.client.R().SetContext(ctx).Get(downloadPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch download page")
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("download page: %s", res.Status())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}

	var archives []Archive
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("div.downloadcontent a[href]"), res.RawResponse.Request.URL) {
		groups := downloadNameRegex.FindStringSubmatch(anchor.Href)
		if len(groups) < 2 {
			f.tel.ReportWarning("archives.unknown-link", anchor.Href)
			continue
		}
		archives = append(archives, Archive{Name: groups[1], Url: anchor.Href})
	}
	return archives, nil
}

// DownloadArchive saves an archive into dir and returns the path of the zip file.
func (f Fetcher) DownloadArchive(ctx context.Context, archive Archive, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "DownloadArchive")
	defer span.End()

	link, err := url.Parse(archive.Url)
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, archive.Name+".zip")

	res, err := f.client.R().
		SetContext(ctx).
		SetOutput(out).
		Get(link.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download archive")
		return "", err
	}
	if res.IsError() {
		os.Remove(out)
		return "", fmt.Errorf("download %s: %s", archive.Name, res.Status())
	}
	return out, nil
}
