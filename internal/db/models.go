package db

import (
	"database/sql"
)

type Award struct {
	AwardID   string
	Agency    string
	Title     string
	Abstract  string
	Amount    int64
	StartDate sql.NullString
	EndDate   sql.NullString
}

type Investigator struct {
	AwardID   string
	LastName  sql.NullString
	FirstName sql.NullString
	Role      sql.NullString
	Email     sql.NullString
}

type Institution struct {
	AwardID string
	Name    sql.NullString
	Address sql.NullString
	City    sql.NullString
	State   sql.NullString
	Zipcode sql.NullString
	Country sql.NullString
}

type Organization struct {
	AwardID          string
	OrganizationCode sql.NullString
	Directorate      sql.NullString
	Division         sql.NullString
}

type KeywordIndex struct {
	AwardID string
	Keyword string
}
