package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &RecorderAPI{}
	scoped := NewScopedAPI("pipeline", NewScopedAPI("cache", rec))

	scoped.ReportBroken("merge", "disk full")
	scoped.ReportWarning("evict")
	scoped.ReportCount("awards", 12)

	broken := rec.Find("broken", "merge")
	require.Len(t, broken, 1)
	require.Equal(t, "cache.pipeline.merge", broken[0].ID)
	require.Equal(t, []any{"disk full"}, broken[0].Params)

	require.Len(t, rec.Find("warning", "cache.pipeline.evict"), 1)

	counts := rec.Find("count", "awards")
	require.Len(t, counts, 1)
	require.Equal(t, int64(12), counts[0].Count)
}

func TestSlogAPI(t *testing.T) {
	var out bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	tel := NewScopedAPI("gencache", SlogAPI{})
	tel.ReportBroken("evict", errors.New("disk full"), int64(25))
	tel.ReportDebug("merged", "awards", 3)
	tel.ReportCount("evicted", 4)
	OrDefault(nil).ReportWarning("fallback")

	logged := out.String()
	require.Contains(t, logged, `level=ERROR msg="broken component" id=gencache.evict err="disk full" p1=25`)
	require.Contains(t, logged, `level=DEBUG msg="gencache: merged" p0=awards p1=3`)
	require.Contains(t, logged, `msg=count id=gencache.evicted n=4`)
	require.Contains(t, logged, `level=WARN msg=warning id=fallback`)

	NoopAPI{}.ReportBroken("ignored")
}
