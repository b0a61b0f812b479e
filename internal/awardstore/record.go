package awardstore

import (
	"database/sql"
	"fedgrants-backend/internal/db"
	"fmt"
	"strings"
)

// RawRecord is an award as extracted from a source file, before normalization.
//
// Fields holds the award level values keyed by lowercased field name. Children holds
// nested sub-records keyed by lowercased element name ("investigator", "institution",
// "organization"), nested values inside a sub-record use dotted keys such as
// "directorate.longname".
type RawRecord struct {
	Fields   map[string]string
	Children map[string][]map[string]string
}

func (r RawRecord) get(key string) string {
	return strings.TrimSpace(r.Fields[key])
}

type Investigator struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
}

type Institution struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zipcode string `json:"zipcode,omitempty"`
	Country string `json:"country,omitempty"`
}

type Organization struct {
	Code        string `json:"code,omitempty"`
	Directorate string `json:"directorate"`
	Division    string `json:"division"`
}

// Record is a normalized award together with its related rows.
type Record struct {
	AwardID  string
	Agency   string
	Title    string
	Abstract string
	// Amount is in whole dollars.
	Amount int64
	// StartDate and EndDate are YYYY-MM-DD, or empty when unknown.
	StartDate string
	EndDate   string

	Investigators []Investigator
	Institutions  []Institution
	Organizations []Organization
}

// Validate checks the invariants a record must hold before it is written.
func (r Record) Validate() error {
	if strings.TrimSpace(r.AwardID) == "" {
		return fmt.Errorf("%w: empty award id", ErrConstraintViolation)
	}
	for _, date := range []string{r.StartDate, r.EndDate} {
		if date == "" {
			continue
		}
		normalized, err := NormalizeDate(date)
		if err != nil {
			return err
		}
		if normalized != date {
			return fmt.Errorf("%w: date '%s' is not in YYYY-MM-DD form", ErrTypeConversion, date)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (r Record) award() db.Award {
	return db.Award{
		AwardID:   r.AwardID,
		Agency:    r.Agency,
		Title:     r.Title,
		Abstract:  r.Abstract,
		Amount:    r.Amount,
		StartDate: nullString(r.StartDate),
		EndDate:   nullString(r.EndDate),
	}
}

func (r Record) investigators() []db.Investigator {
	out := make([]db.Investigator, len(r.Investigators))
	for i, inv := range r.Investigators {
		out[i] = db.Investigator{
			AwardID:   r.AwardID,
			LastName:  nullString(inv.LastName),
			FirstName: nullString(inv.FirstName),
			Role:      nullString(inv.Role),
			Email:     nullString(inv.Email),
		}
	}
	return out
}

func (r Record) institutions() []db.Institution {
	out := make([]db.Institution, len(r.Institutions))
	for i, inst := range r.Institutions {
		out[i] = db.Institution{
			AwardID: r.AwardID,
			Name:    nullString(inst.Name),
			Address: nullString(inst.Address),
			City:    nullString(inst.City),
			State:   nullString(inst.State),
			Zipcode: nullString(inst.Zipcode),
			Country: nullString(inst.Country),
		}
	}
	return out
}

func (r Record) organizations() []db.Organization {
	out := make([]db.Organization, len(r.Organizations))
	for i, org := range r.Organizations {
		out[i] = db.Organization{
			AwardID:          r.AwardID,
			OrganizationCode: nullString(org.Code),
			Directorate:      nullString(org.Directorate),
			Division:         nullString(org.Division),
		}
	}
	return out
}

// FromRows assembles a Record out of the rows stored for a single award.
func FromRows(
	award db.Award,
	investigators []db.Investigator,
	institutions []db.Institution,
	organizations []db.Organization,
) Record {
	r := Record{
		AwardID:   award.AwardID,
		Agency:    award.Agency,
		Title:     award.Title,
		Abstract:  award.Abstract,
		Amount:    award.Amount,
		StartDate: award.StartDate.String,
		EndDate:   award.EndDate.String,
	}
	for _, inv := range investigators {
		r.Investigators = append(r.Investigators, Investigator{
			LastName:  inv.LastName.String,
			FirstName: inv.FirstName.String,
			Role:      inv.Role.String,
			Email:     inv.Email.String,
		})
	}
	for _, inst := range institutions {
		r.Institutions = append(r.Institutions, Institution{
			Name:    inst.Name.String,
			Address: inst.Address.String,
			City:    inst.City.String,
			State:   inst.State.String,
			Zipcode: inst.Zipcode.String,
			Country: inst.Country.String,
		})
	}
	for _, org := range organizations {
		r.Organizations = append(r.Organizations, Organization{
			Code:        org.OrganizationCode.String,
			Directorate: org.Directorate.String,
			Division:    org.Division.String,
		})
	}
	return r
}
