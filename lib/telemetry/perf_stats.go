package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const perfStatsInterval = 30 * time.Second

// cpuSampleWindow is how long cpu usage is measured for.
var cpuSampleWindow = 5 * time.Second

var (
	meter           = otel.Meter("fedgrants.perf_stats")
	cpuGauge, _     = meter.Float64Gauge("cpu_usage")
	heapGauge, _    = meter.Int64Gauge("heap_alloc_mb")
	routineGauge, _ = meter.Int64Gauge("goroutine_count")
	dbInUseGauge, _ = meter.Int64Gauge("db_connections_in_use")
	dbWaitGauge, _  = meter.Int64Gauge("db_wait_count")
)

func recordPerfStats(ctx context.Context, dbs map[string]*sql.DB) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	heapGauge.Record(ctx, int64(mem.HeapAlloc/1_000_000))
	routineGauge.Record(ctx, int64(runtime.NumGoroutine()))

	usage, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	switch {
	case err != nil:
		slog.Debug("read cpu usage", "err", err)
	case len(usage) > 0:
		cpuGauge.Record(ctx, usage[0])
	}

	for name, database := range dbs {
		stats := database.Stats()
		attrs := metric.WithAttributes(attribute.String("db", name))
		dbInUseGauge.Record(ctx, int64(stats.InUse), attrs)
		dbWaitGauge.Record(ctx, stats.WaitCount, attrs)
	}
}

// InstrumentPerfStats records process gauges and the connection stats of dbs,
// keyed by database name, until ctx is done.
func InstrumentPerfStats(ctx context.Context, dbs map[string]*sql.DB) {
	go func() {
		ticker := time.NewTicker(perfStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				recordPerfStats(ctx, dbs)
			case <-ctx.Done():
				return
			}
		}
	}()
}
