package pipeline

import (
	"fedgrants-backend/internal/gencache"
	configlibsql "fedgrants-backend/lib/configutil/libsql"
	"time"
)

type SourceConfig struct {
	BaseUrl string `json:"base_url"`
	// ExportDir is where exports downloaded outside of this program are read from.
	ExportDir string `json:"export_dir"`
}

// Config is resolved once from config.json5 and handed to constructors.
type Config struct {
	CanonicalDB configlibsql.Struct `json:"canonical_db"`
	CacheDB     configlibsql.Struct `json:"cache_db"`
	// StagingDir holds the temporary staging database of a search, an in-memory
	// database is used when it is empty.
	StagingDir          string `json:"staging_dir"`
	FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
	CacheWindow         int64  `json:"cache_window"`
	CountLimit          int    `json:"count_limit"`
	// EvictSchedule is a cron schedule on which the server evicts the cache, the
	// server only evicts on merge when it is empty.
	EvictSchedule string       `json:"evict_schedule"`
	NSF           SourceConfig `json:"nsf"`
	TAGGS         SourceConfig `json:"taggs"`
}

const (
	defaultFetchTimeout = 5 * time.Minute
	defaultCountLimit   = 1000
)

func (c Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return defaultFetchTimeout
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c Config) Window() int64 {
	if c.CacheWindow <= 0 {
		return gencache.DefaultWindow
	}
	return c.CacheWindow
}

// Limit is the number of results above which a search is considered too broad to cache.
func (c Config) Limit() int {
	if c.CountLimit <= 0 {
		return defaultCountLimit
	}
	return c.CountLimit
}
