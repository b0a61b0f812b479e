package globals

import (
	"context"
	"fedgrants-backend/internal/pipeline"
	"fedgrants-backend/internal/telemetry"
)

type key struct{}

type Value struct {
	Config pipeline.Config
	Tel    telemetry.API
	// DumpDir receives the http dumps of source clients when verbose, it may be empty.
	DumpDir string
}

func Set(ctx context.Context, value *Value) context.Context {
	return context.WithValue(ctx, key{}, value)
}

func Get(ctx context.Context) *Value {
	return ctx.Value(key{}).(*Value)
}
