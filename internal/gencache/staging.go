package gencache

import (
	"context"
	"database/sql"
	"fedgrants-backend/internal/db"
	"fmt"
)

// StagedSet is every row of a search result, read out of a staging store before it
// is copied into the cache.
type StagedSet struct {
	Awards        []db.Award
	Investigators []db.Investigator
	Institutions  []db.Institution
	Organizations []db.Organization
	Keywords      []db.KeywordIndex
}

// Stage returns the set itself, so a StagedSet can be merged directly.
func (s StagedSet) Stage(ctx context.Context) (StagedSet, error) {
	return s, nil
}

// Staging is the first phase of a copy-merge, it produces the rows that
// MergeSearchResults copies into the cache.
type Staging interface {
	Stage(ctx context.Context) (StagedSet, error)
}

// SQLStaging stages the contents of a temporary database created with db.Schema.
type SQLStaging struct {
	qry *db.Queries
}

func NewSQLStaging(database *sql.DB) SQLStaging {
	return SQLStaging{qry: db.New(database)}
}

func (s SQLStaging) Stage(ctx context.Context) (StagedSet, error) {
	var (
		set StagedSet
		err error
	)
	set.Awards, err = s.qry.ListAwards(ctx)
	if err != nil {
		return StagedSet{}, fmt.Errorf("list awards: %w", err)
	}
	set.Investigators, err = s.qry.ListAllInvestigators(ctx)
	if err != nil {
		return StagedSet{}, fmt.Errorf("list investigators: %w", err)
	}
	set.Institutions, err = s.qry.ListAllInstitutions(ctx)
	if err != nil {
		return StagedSet{}, fmt.Errorf("list institutions: %w", err)
	}
	set.Organizations, err = s.qry.ListAllOrganizations(ctx)
	if err != nil {
		return StagedSet{}, fmt.Errorf("list organizations: %w", err)
	}
	set.Keywords, err = s.qry.ListAllKeywords(ctx)
	if err != nil {
		return StagedSet{}, fmt.Errorf("list keywords: %w", err)
	}
	return set, nil
}
