package db

import (
	"context"
	"database/sql"
)

const upsertAward = `
INSERT INTO awards (award_id, agency, title, abstract, amount, start_date, end_date)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (award_id) DO UPDATE SET
    agency = excluded.agency,
    title = excluded.title,
    abstract = excluded.abstract,
    amount = excluded.amount,
    start_date = excluded.start_date,
    end_date = excluded.end_date
`

func (q *Queries) UpsertAward(ctx context.Context, arg Award) error {
	_, err := q.db.ExecContext(ctx, upsertAward,
		arg.AwardID,
		arg.Agency,
		arg.Title,
		arg.Abstract,
		arg.Amount,
		arg.StartDate,
		arg.EndDate,
	)
	return err
}

const getAward = `
SELECT award_id, agency, title, abstract, amount, start_date, end_date
FROM awards WHERE award_id = ?
`

func (q *Queries) GetAward(ctx context.Context, awardID string) (Award, error) {
	row := q.db.QueryRowContext(ctx, getAward, awardID)
	var i Award
	err := row.Scan(
		&i.AwardID,
		&i.Agency,
		&i.Title,
		&i.Abstract,
		&i.Amount,
		&i.StartDate,
		&i.EndDate,
	)
	return i, err
}

const listAwards = `
SELECT award_id, agency, title, abstract, amount, start_date, end_date
FROM awards ORDER BY award_id
`

func (q *Queries) ListAwards(ctx context.Context) ([]Award, error) {
	rows, err := q.db.QueryContext(ctx, listAwards)
	if err != nil {
		return nil, err
	}
	return scanAwards(rows)
}

func scanAwards(rows *sql.Rows) ([]Award, error) {
	defer rows.Close()
	var items []Award
	for rows.Next() {
		var i Award
		if err := rows.Scan(
			&i.AwardID,
			&i.Agency,
			&i.Title,
			&i.Abstract,
			&i.Amount,
			&i.StartDate,
			&i.EndDate,
		); err != nil {
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

const deleteInvestigators = `DELETE FROM investigators WHERE award_id = ?`

func (q *Queries) DeleteInvestigators(ctx context.Context, awardID string) error {
	_, err := q.db.ExecContext(ctx, deleteInvestigators, awardID)
	return err
}

const deleteInstitutions = `DELETE FROM institutions WHERE award_id = ?`

func (q *Queries) DeleteInstitutions(ctx context.Context, awardID string) error {
	_, err := q.db.ExecContext(ctx, deleteInstitutions, awardID)
	return err
}

const deleteOrganizations = `DELETE FROM organizations WHERE award_id = ?`

func (q *Queries) DeleteOrganizations(ctx context.Context, awardID string) error {
	_, err := q.db.ExecContext(ctx, deleteOrganizations, awardID)
	return err
}

const deleteKeywords = `DELETE FROM keyword_index WHERE award_id = ?`

func (q *Queries) DeleteKeywords(ctx context.Context, awardID string) error {
	_, err := q.db.ExecContext(ctx, deleteKeywords, awardID)
	return err
}

const deleteAllKeywords = `DELETE FROM keyword_index`

func (q *Queries) DeleteAllKeywords(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllKeywords)
	return err
}

const createInvestigator = `
INSERT INTO investigators (award_id, last_name, first_name, role, email)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateInvestigator(ctx context.Context, arg Investigator) error {
	_, err := q.db.ExecContext(ctx, createInvestigator,
		arg.AwardID,
		arg.LastName,
		arg.FirstName,
		arg.Role,
		arg.Email,
	)
	return err
}

const createInstitution = `
INSERT INTO institutions (award_id, name, address, city, state, zipcode, country)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateInstitution(ctx context.Context, arg Institution) error {
	_, err := q.db.ExecContext(ctx, createInstitution,
		arg.AwardID,
		arg.Name,
		arg.Address,
		arg.City,
		arg.State,
		arg.Zipcode,
		arg.Country,
	)
	return err
}

const createOrganization = `
INSERT INTO organizations (award_id, organization_code, directorate, division)
VALUES (?, ?, ?, ?)
`

func (q *Queries) CreateOrganization(ctx context.Context, arg Organization) error {
	_, err := q.db.ExecContext(ctx, createOrganization,
		arg.AwardID,
		arg.OrganizationCode,
		arg.Directorate,
		arg.Division,
	)
	return err
}

const createKeyword = `
INSERT INTO keyword_index (award_id, keyword) VALUES (?, ?)
ON CONFLICT (award_id, keyword) DO NOTHING
`

func (q *Queries) CreateKeyword(ctx context.Context, arg KeywordIndex) error {
	_, err := q.db.ExecContext(ctx, createKeyword, arg.AwardID, arg.Keyword)
	return err
}

const listInvestigators = `
SELECT award_id, last_name, first_name, role, email
FROM investigators WHERE award_id = ? ORDER BY rowid
`

func (q *Queries) ListInvestigators(ctx context.Context, awardID string) ([]Investigator, error) {
	rows, err := q.db.QueryContext(ctx, listInvestigators, awardID)
	if err != nil {
		return nil, err
	}
	return scanInvestigators(rows)
}

const listAllInvestigators = `
SELECT award_id, last_name, first_name, role, email
FROM investigators ORDER BY award_id, rowid
`

func (q *Queries) ListAllInvestigators(ctx context.Context) ([]Investigator, error) {
	rows, err := q.db.QueryContext(ctx, listAllInvestigators)
	if err != nil {
		return nil, err
	}
	return scanInvestigators(rows)
}

func scanInvestigators(rows *sql.Rows) ([]Investigator, error) {
	defer rows.Close()
	var items []Investigator
	for rows.Next() {
		var i Investigator
		if err := rows.Scan(
			&i.AwardID,
			&i.LastName,
			&i.FirstName,
			&i.Role,
			&i.Email,
		); err != nil {
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

const listInstitutions = `
SELECT award_id, name, address, city, state, zipcode, country
FROM institutions WHERE award_id = ? ORDER BY rowid
`

func (q *Queries) ListInstitutions(ctx context.Context, awardID string) ([]Institution, error) {
	rows, err := q.db.QueryContext(ctx, listInstitutions, awardID)
	if err != nil {
		return nil, err
	}
	return scanInstitutions(rows)
}

const listAllInstitutions = `
SELECT award_id, name, address, city, state, zipcode, country
FROM institutions ORDER BY award_id, rowid
`

func (q *Queries) ListAllInstitutions(ctx context.Context) ([]Institution, error) {
	rows, err := q.db.QueryContext(ctx, listAllInstitutions)
	if err != nil {
		return nil, err
	}
	return scanInstitutions(rows)
}

func scanInstitutions(rows *sql.Rows) ([]Institution, error) {
	defer rows.Close()
	var items []Institution
	for rows.Next() {
		var i Institution
		if err := rows.Scan(
			&i.AwardID,
			&i.Name,
			&i.Address,
			&i.City,
			&i.State,
			&i.Zipcode,
			&i.Country,
		); err != nil {
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

const listOrganizations = `
SELECT award_id, organization_code, directorate, division
FROM organizations WHERE award_id = ? ORDER BY rowid
`

func (q *Queries) ListOrganizations(ctx context.Context, awardID string) ([]Organization, error) {
	rows, err := q.db.QueryContext(ctx, listOrganizations, awardID)
	if err != nil {
		return nil, err
	}
	return scanOrganizations(rows)
}

const listAllOrganizations = `
SELECT award_id, organization_code, directorate, division
FROM organizations ORDER BY award_id, rowid
`

func (q *Queries) ListAllOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := q.db.QueryContext(ctx, listAllOrganizations)
	if err != nil {
		return nil, err
	}
	return scanOrganizations(rows)
}

func scanOrganizations(rows *sql.Rows) ([]Organization, error) {
	defer rows.Close()
	var items []Organization
	for rows.Next() {
		var i Organization
		if err := rows.Scan(
			&i.AwardID,
			&i.OrganizationCode,
			&i.Directorate,
			&i.Division,
		); err != nil {
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

const listKeywords = `
SELECT award_id, keyword FROM keyword_index WHERE award_id = ? ORDER BY keyword
`

func (q *Queries) ListKeywords(ctx context.Context, awardID string) ([]KeywordIndex, error) {
	rows, err := q.db.QueryContext(ctx, listKeywords, awardID)
	if err != nil {
		return nil, err
	}
	return scanKeywords(rows)
}

const listAllKeywords = `
SELECT award_id, keyword FROM keyword_index ORDER BY award_id, keyword
`

func (q *Queries) ListAllKeywords(ctx context.Context) ([]KeywordIndex, error) {
	rows, err := q.db.QueryContext(ctx, listAllKeywords)
	if err != nil {
		return nil, err
	}
	return scanKeywords(rows)
}

func scanKeywords(rows *sql.Rows) ([]KeywordIndex, error) {
	defer rows.Close()
	var items []KeywordIndex
	for rows.Next() {
		var i KeywordIndex
		if err := rows.Scan(&i.AwardID, &i.Keyword); err != nil {
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

const listKeywordPostings = `
SELECT awards.rowid, awards.award_id
FROM keyword_index
INNER JOIN awards ON awards.award_id = keyword_index.award_id
WHERE keyword_index.keyword = ?
`

type KeywordPosting struct {
	Rowid   int64
	AwardID string
}

func (q *Queries) ListKeywordPostings(ctx context.Context, keyword string) ([]KeywordPosting, error) {
	rows, err := q.db.QueryContext(ctx, listKeywordPostings, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []KeywordPosting
	for rows.Next() {
		var i KeywordPosting
		if err := rows.Scan(&i.Rowid, &i.AwardID); err != nil {
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

const listAwardText = `SELECT award_id, title, abstract FROM awards ORDER BY award_id`

type ListAwardTextRow struct {
	AwardID  string
	Title    string
	Abstract string
}

func (q *Queries) ListAwardText(ctx context.Context) ([]ListAwardTextRow, error) {
	rows, err := q.db.QueryContext(ctx, listAwardText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListAwardTextRow
	for rows.Next() {
		var i ListAwardTextRow
		if err := rows.Scan(&i.AwardID, &i.Title, &i.Abstract); err != nil {
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

const countRows = `
SELECT
    (SELECT count(*) FROM awards),
    (SELECT count(*) FROM investigators),
    (SELECT count(*) FROM institutions),
    (SELECT count(*) FROM organizations),
    (SELECT count(*) FROM keyword_index)
`

type CountRowsRow struct {
	Awards        int64
	Investigators int64
	Institutions  int64
	Organizations int64
	Keywords      int64
}

func (q *Queries) CountRows(ctx context.Context) (CountRowsRow, error) {
	row := q.db.QueryRowContext(ctx, countRows)
	var i CountRowsRow
	err := row.Scan(
		&i.Awards,
		&i.Investigators,
		&i.Institutions,
		&i.Organizations,
		&i.Keywords,
	)
	return i, err
}

const listAwardsByAmount = `
SELECT award_id, agency, title, abstract, amount, start_date, end_date
FROM awards WHERE amount > ? AND amount < ? ORDER BY amount, award_id
`

type ListAwardsByAmountParams struct {
	Above int64
	Below int64
}

func (q *Queries) ListAwardsByAmount(ctx context.Context, arg ListAwardsByAmountParams) ([]Award, error) {
	rows, err := q.db.QueryContext(ctx, listAwardsByAmount, arg.Above, arg.Below)
	if err != nil {
		return nil, err
	}
	return scanAwards(rows)
}

const listAwardsByStartDate = `
SELECT award_id, agency, title, abstract, amount, start_date, end_date
FROM awards WHERE start_date >= ? AND start_date < ? ORDER BY start_date, award_id
`

type ListAwardsByStartDateParams struct {
	From   string
	Before string
}

func (q *Queries) ListAwardsByStartDate(ctx context.Context, arg ListAwardsByStartDateParams) ([]Award, error) {
	rows, err := q.db.QueryContext(ctx, listAwardsByStartDate, arg.From, arg.Before)
	if err != nil {
		return nil, err
	}
	return scanAwards(rows)
}

const listInstitutionNames = `
SELECT DISTINCT name FROM institutions WHERE name IS NOT NULL AND name != '' ORDER BY name
`

func (q *Queries) ListInstitutionNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listInstitutionNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAwardIDsByInstitution = `
SELECT DISTINCT award_id FROM institutions WHERE name = ? ORDER BY award_id
`

func (q *Queries) ListAwardIDsByInstitution(ctx context.Context, name string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listAwardIDsByInstitution, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
