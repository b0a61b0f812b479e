package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a RecorderAPI.
type Report struct {
	Kind   string
	ID     string
	Params []any
	Count  int64
}

// RecorderAPI keeps every report in memory so tests can assert on them.
type RecorderAPI struct {
	mu      sync.Mutex
	reports []Report
}

func (r *RecorderAPI) record(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.record(Report{Kind: "broken", ID: id, Params: params})
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.record(Report{Kind: "warning", ID: id, Params: params})
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record(Report{Kind: "debug", ID: msg, Params: params})
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.record(Report{Kind: "count", ID: id, Count: count})
}

// Find returns the reports of the given kind whose id ends with suffix.
func (r *RecorderAPI) Find(kind, suffix string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind && strings.HasSuffix(report.ID, suffix) {
			out = append(out, report)
		}
	}
	return out
}
