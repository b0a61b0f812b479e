package db

import (
	"context"
	"database/sql"
)

// the queries in this file run against a database created with CacheSchema

const maxCounter = `SELECT max(counter) FROM awards`

func (q *Queries) MaxCounter(ctx context.Context) (sql.NullInt64, error) {
	row := q.db.QueryRowContext(ctx, maxCounter)
	var latest sql.NullInt64
	err := row.Scan(&latest)
	return latest, err
}

const upsertCachedAward = `
INSERT INTO awards (award_id, agency, title, abstract, amount, start_date, end_date, counter)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (award_id) DO UPDATE SET
    agency = excluded.agency,
    title = excluded.title,
    abstract = excluded.abstract,
    amount = excluded.amount,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    counter = excluded.counter
`

type UpsertCachedAwardParams struct {
	Award
	Counter int64
}

func (q *Queries) UpsertCachedAward(ctx context.Context, arg UpsertCachedAwardParams) error {
	_, err := q.db.ExecContext(ctx, upsertCachedAward,
		arg.AwardID,
		arg.Agency,
		arg.Title,
		arg.Abstract,
		arg.Amount,
		arg.StartDate,
		arg.EndDate,
		arg.Counter,
	)
	return err
}

const createCachedInvestigator = `
INSERT INTO investigators (award_id, last_name, first_name, role, email, counter)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateCachedInvestigatorParams struct {
	Investigator
	Counter int64
}

func (q *Queries) CreateCachedInvestigator(ctx context.Context, arg CreateCachedInvestigatorParams) error {
	_, err := q.db.ExecContext(ctx, createCachedInvestigator,
		arg.AwardID,
		arg.LastName,
		arg.FirstName,
		arg.Role,
		arg.Email,
		arg.Counter,
	)
	return err
}

const createCachedInstitution = `
INSERT INTO institutions (award_id, name, address, city, state, zipcode, country, counter)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateCachedInstitutionParams struct {
	Institution
	Counter int64
}

func (q *Queries) CreateCachedInstitution(ctx context.Context, arg CreateCachedInstitutionParams) error {
	_, err := q.db.ExecContext(ctx, createCachedInstitution,
		arg.AwardID,
		arg.Name,
		arg.Address,
		arg.City,
		arg.State,
		arg.Zipcode,
		arg.Country,
		arg.Counter,
	)
	return err
}

const createCachedOrganization = `
INSERT INTO organizations (award_id, organization_code, directorate, division, counter)
VALUES (?, ?, ?, ?, ?)
`

type CreateCachedOrganizationParams struct {
	Organization
	Counter int64
}

func (q *Queries) CreateCachedOrganization(ctx context.Context, arg CreateCachedOrganizationParams) error {
	_, err := q.db.ExecContext(ctx, createCachedOrganization,
		arg.AwardID,
		arg.OrganizationCode,
		arg.Directorate,
		arg.Division,
		arg.Counter,
	)
	return err
}

const createCachedKeyword = `
INSERT INTO keyword_index (award_id, keyword, counter) VALUES (?, ?, ?)
ON CONFLICT (award_id, keyword) DO UPDATE SET counter = excluded.counter
`

type CreateCachedKeywordParams struct {
	KeywordIndex
	Counter int64
}

func (q *Queries) CreateCachedKeyword(ctx context.Context, arg CreateCachedKeywordParams) error {
	_, err := q.db.ExecContext(ctx, createCachedKeyword, arg.AwardID, arg.Keyword, arg.Counter)
	return err
}

const evictCachedKeywords = `DELETE FROM keyword_index WHERE counter < ?`

func (q *Queries) EvictCachedKeywords(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, evictCachedKeywords, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const evictCachedInvestigators = `DELETE FROM investigators WHERE counter < ?`

func (q *Queries) EvictCachedInvestigators(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, evictCachedInvestigators, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const evictCachedInstitutions = `DELETE FROM institutions WHERE counter < ?`

func (q *Queries) EvictCachedInstitutions(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, evictCachedInstitutions, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const evictCachedOrganizations = `DELETE FROM organizations WHERE counter < ?`

func (q *Queries) EvictCachedOrganizations(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, evictCachedOrganizations, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const evictCachedAwards = `DELETE FROM awards WHERE counter < ?`

func (q *Queries) EvictCachedAwards(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, evictCachedAwards, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listGenerations = `
SELECT counter, count(*) FROM awards GROUP BY counter ORDER BY counter
`

type Generation struct {
	Counter int64
	Awards  int64
}

func (q *Queries) ListGenerations(ctx context.Context) ([]Generation, error) {
	rows, err := q.db.QueryContext(ctx, listGenerations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Generation
	for rows.Next() {
		var i Generation
		if err := rows.Scan(&i.Counter, &i.Awards); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCachedCounters = `
SELECT 'awards', counter FROM awards
UNION ALL SELECT 'investigators', counter FROM investigators
UNION ALL SELECT 'institutions', counter FROM institutions
UNION ALL SELECT 'organizations', counter FROM organizations
UNION ALL SELECT 'keyword_index', counter FROM keyword_index
`

type CachedCounter struct {
	Table   string
	Counter int64
}

// ListCachedCounters returns the counter of every row in every cache table.
func (q *Queries) ListCachedCounters(ctx context.Context) ([]CachedCounter, error) {
	rows, err := q.db.QueryContext(ctx, listCachedCounters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CachedCounter
	for rows.Next() {
		var i CachedCounter
		if err := rows.Scan(&i.Table, &i.Counter); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
