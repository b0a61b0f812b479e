package test

import (
	"database/sql"
	"fedgrants-backend/pkg/migrations"
	"testing"
)

// OpenInMemoryDB opens a fresh in-memory database with schema applied, it is closed
// when the test finishes.
func OpenInMemoryDB(t testing.TB, schema string) *sql.DB {
	dbtx, err := migrations.OpenAndMigrateDB(schema, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		dbtx.Close()
	})
	return dbtx
}
