package db

import _ "embed"

// Schema creates the canonical award tables.
//
//go:embed schema.sql
var Schema string

// CacheSchema creates the search result cache tables.
//
//go:embed cache_schema.sql
var CacheSchema string

// Tables lists the award tables in the order rows must be deleted in,
// children first.
var Tables = []string{
	"keyword_index",
	"investigators",
	"institutions",
	"organizations",
	"awards",
}
