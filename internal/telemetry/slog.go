package telemetry

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAPI implements API on top of the default slog logger. Errors among the params
// are logged under "err", the rest under their position.
type SlogAPI struct{}

func paramAttrs(params []any) []any {
	attrs := make([]any, 0, len(params))
	errs := 0
	for i, p := range params {
		if err, ok := p.(error); ok {
			key := "err"
			if errs > 0 {
				key = fmt.Sprintf("err.%d", errs)
			}
			errs++
			attrs = append(attrs, slog.String(key, err.Error()))
			continue
		}
		attrs = append(attrs, slog.Any(fmt.Sprintf("p%d", i), p))
	}
	return attrs
}

func (SlogAPI) report(level slog.Level, msg, id string, params []any) {
	args := paramAttrs(params)
	if id != "" {
		args = append([]any{slog.String("id", id)}, args...)
	}
	slog.Log(context.Background(), level, msg, args...)
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.report(slog.LevelError, "broken component", id, params)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.report(slog.LevelWarn, "warning", id, params)
}

func (s SlogAPI) ReportDebug(msg string, params ...any) {
	s.report(slog.LevelDebug, msg, "", params)
}

func (SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}
