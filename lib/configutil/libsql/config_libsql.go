package configlibsql

import (
	"database/sql"
	"errors"
	devenv "fedgrants-backend/dev/env"
	"fedgrants-backend/pkg/migrations"
	"fmt"
	"net/url"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var ErrNotConfigured = errors.New("neither a file nor a url was specified for the database")

// Struct describes where an award database lives. A local file is used when
// Url is empty, otherwise the database is reached through a libsql server.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) Configured() bool {
	return config.File != "" || config.Url != ""
}

// dsn adds the auth token to the server url, keeping any query it already has.
func (config Struct) dsn() (string, error) {
	u, err := url.Parse(config.Url)
	if err != nil {
		return "", fmt.Errorf("database url: %w", err)
	}
	if config.AuthToken != "" {
		query := u.Query()
		query.Set("authToken", config.AuthToken)
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// OpenDB opens the database and applies the given schema to it.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	switch {
	case config.Url != "":
		dsn, err := config.dsn()
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, err
		}
		// one writer, like local files
		db.SetMaxOpenConns(1)
		err = migrations.Migrate(db, schema)
		if err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case config.File != "":
		path, err := devenv.ResolvePath(config.File)
		if err != nil {
			return nil, err
		}
		return migrations.OpenAndMigrateDB(schema, path)
	default:
		return nil, ErrNotConfigured
	}
}
