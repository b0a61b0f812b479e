package restyutil

import (
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	BaseUrl string
	// Timeout bounds a single request, 30 seconds when zero.
	Timeout time.Duration
	// Name is used for the tracer of the client.
	Name string
	// Output receives a dump of every request and response when debug logging
	// is enabled, it can be nil.
	Output InstrumentOutput
}

// NewClient creates a resty client for scraping a public award portal: it keeps
// cookies between requests, passes cloudflare checks and is instrumented.
func NewClient(opts ClientOptions) (*resty.Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(timeout)

	name := opts.Name
	if name == "" {
		name = "resty"
	}
	InstrumentClient(client, otel.Tracer(name), opts.Output)
	return client, nil
}
