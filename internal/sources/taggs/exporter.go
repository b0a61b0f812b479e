package taggs

import (
	"context"
	"errors"
	devenv "fedgrants-backend/dev/env"
	"fedgrants-backend/internal/pipeline"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoExport = errors.New("no taggs export found")

// Export is the output of a TAGGS advanced search: the CSV export of the result
// grid and the saved result pages, which carry the award detail links.
type Export struct {
	CSVPaths    []string
	ResultPages []string
}

func (e Export) readPages() ([]*goquery.Document, error) {
	docs := make([]*goquery.Document, 0, len(e.ResultPages))
	for _, path := range e.ResultPages {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Exporter runs a TAGGS advanced search. The search form is driven by client
// side scripts, so exports are produced outside of this program.
type Exporter interface {
	Export(ctx context.Context, search pipeline.Search) (Export, error)
}

// DirExporter serves the exports saved into a directory: every *.csv file is an
// export and every *.html file a saved result page.
type DirExporter struct {
	Dir string
}

func (e DirExporter) Export(ctx context.Context, search pipeline.Search) (Export, error) {
	if e.Dir == "" {
		return Export{}, fmt.Errorf("%w: export directory is not configured", ErrNoExport)
	}
	dir, err := devenv.ResolvePath(e.Dir)
	if err != nil {
		return Export{}, err
	}
	csvPaths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return Export{}, err
	}
	if len(csvPaths) == 0 {
		return Export{}, fmt.Errorf("%w: %s", ErrNoExport, dir)
	}
	pages, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return Export{}, err
	}
	sort.Strings(csvPaths)
	sort.Strings(pages)
	return Export{CSVPaths: csvPaths, ResultPages: pages}, nil
}
