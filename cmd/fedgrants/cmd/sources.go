package cmd

import (
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/internal/pipeline"
	"fedgrants-backend/internal/sources/nsf"
	"fedgrants-backend/internal/sources/taggs"
	"fedgrants-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
)

func newClient(value *globals.Value, name string, cfg pipeline.SourceConfig, fallback string) (*resty.Client, error) {
	baseUrl := cfg.BaseUrl
	if baseUrl == "" {
		baseUrl = fallback
	}
	opts := restyutil.ClientOptions{
		BaseUrl: baseUrl,
		Name:    name,
	}
	if value.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(value.DumpDir)
		if err != nil {
			return nil, err
		}
		opts.Output = out
	}
	return restyutil.NewClient(opts)
}

func newNSFFetcher(value *globals.Value) (nsf.Fetcher, error) {
	client, err := newClient(value, "nsf", value.Config.NSF, nsf.DefaultBaseUrl)
	if err != nil {
		return nsf.Fetcher{}, err
	}
	return nsf.NewFetcher(client, value.Tel), nil
}

func newFetchers(value *globals.Value) ([]pipeline.Fetcher, error) {
	nsfFetcher, err := newNSFFetcher(value)
	if err != nil {
		return nil, err
	}
	taggsClient, err := newClient(value, "taggs", value.Config.TAGGS, taggs.DefaultBaseUrl)
	if err != nil {
		return nil, err
	}
	taggsFetcher := taggs.NewFetcher(
		taggsClient,
		taggs.DirExporter{Dir: value.Config.TAGGS.ExportDir},
		value.Tel,
	)
	return []pipeline.Fetcher{nsfFetcher, taggsFetcher}, nil
}
