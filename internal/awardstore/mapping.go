package awardstore

import (
	"fmt"
	"strings"
)

// Format identifies the layout of a RawRecord.
type Format int

const (
	FormatUnknown Format = iota
	// FormatNSFExport is a single <Award> of an NSF award search XML export.
	FormatNSFExport
	// FormatNSFBulk is an award from the NSF per-award bulk XML files.
	FormatNSFBulk
	// FormatTAGGS is a row of a TAGGS advanced search CSV export.
	FormatTAGGS
)

func (f Format) String() string {
	switch f {
	case FormatNSFExport:
		return "nsf-export"
	case FormatNSFBulk:
		return "nsf-bulk"
	case FormatTAGGS:
		return "taggs"
	default:
		return "unknown"
	}
}

// DetectFormat picks the field mapping of a raw record from the id field it carries.
func DetectFormat(raw RawRecord) Format {
	switch {
	case hasKey(raw.Fields, "awardnumber"):
		return FormatNSFExport
	case hasKey(raw.Fields, "awardid"):
		return FormatNSFBulk
	case hasKey(raw.Fields, "award number"):
		return FormatTAGGS
	default:
		return FormatUnknown
	}
}

func hasKey(m map[string]string, key string) bool {
	_, ok := m[key]
	return ok
}

// Normalize converts a raw record into a Record tagged with agency.
func Normalize(agency string, raw RawRecord) (Record, error) {
	var (
		record Record
		err    error
	)
	switch DetectFormat(raw) {
	case FormatNSFExport:
		record, err = fromNSFExport(raw)
	case FormatNSFBulk:
		record, err = fromNSFBulk(raw)
	case FormatTAGGS:
		record, err = fromTAGGS(raw)
	default:
		return Record{}, fmt.Errorf("%w: no award id field", ErrMalformedRecord)
	}
	if err != nil {
		return Record{}, err
	}
	record.Agency = agency
	return record, record.Validate()
}

// amount returns 0 when the field is absent or empty.
func amount(raw RawRecord, keys ...string) (int64, error) {
	for _, key := range keys {
		value := raw.get(key)
		if value == "" {
			continue
		}
		return NormalizeAmount(value)
	}
	return 0, nil
}

type dates struct {
	start, end string
}

func parseDates(start, end string) (dates, error) {
	var d dates
	var err error
	d.start, err = NormalizeDate(start)
	if err != nil {
		return dates{}, err
	}
	d.end, err = NormalizeDate(end)
	if err != nil {
		return dates{}, err
	}
	return d, nil
}

func fromNSFExport(raw RawRecord) (Record, error) {
	amt, err := amount(raw, "awardedamounttodate")
	if err != nil {
		return Record{}, err
	}
	d, err := parseDates(raw.get("startdate"), raw.get("enddate"))
	if err != nil {
		return Record{}, err
	}

	record := Record{
		AwardID:   raw.get("awardnumber"),
		Title:     raw.get("title"),
		Abstract:  raw.get("abstract"),
		Amount:    amt,
		StartDate: d.start,
		EndDate:   d.end,
	}

	if pi := raw.get("principalinvestigator"); pi != "" {
		last, first := SplitName(pi)
		record.Investigators = append(record.Investigators, Investigator{
			LastName:  last,
			FirstName: first,
			Role:      "PI",
			Email:     raw.get("piemailaddress"),
		})
	}
	if name := raw.get("organization"); name != "" {
		record.Institutions = append(record.Institutions, Institution{
			Name:    name,
			Address: raw.get("organizationstreet"),
			City:    raw.get("organizationcity"),
			State:   raw.get("organizationstate"),
			Zipcode: raw.get("organizationzip"),
		})
	}
	directorate := raw.get("nsfdirectorate")
	division := raw.get("nsforganization")
	if directorate != "" || division != "" {
		record.Organizations = append(record.Organizations, Organization{
			Directorate: directorate,
			Division:    division,
		})
	}
	return record, nil
}

func child(values map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
	}
	return ""
}

func fromNSFBulk(raw RawRecord) (Record, error) {
	amt, err := amount(raw, "awardamount")
	if err != nil {
		return Record{}, err
	}
	d, err := parseDates(raw.get("awardeffectivedate"), raw.get("awardexpirationdate"))
	if err != nil {
		return Record{}, err
	}

	record := Record{
		AwardID:   raw.get("awardid"),
		Title:     raw.get("awardtitle"),
		Abstract:  raw.get("abstractnarration"),
		Amount:    amt,
		StartDate: d.start,
		EndDate:   d.end,
	}
	for _, inv := range raw.Children["investigator"] {
		record.Investigators = append(record.Investigators, Investigator{
			LastName:  child(inv, "lastname"),
			FirstName: child(inv, "firstname"),
			Role:      child(inv, "rolecode"),
			Email:     child(inv, "emailaddress"),
		})
	}
	for _, inst := range raw.Children["institution"] {
		record.Institutions = append(record.Institutions, Institution{
			Name:    child(inst, "name"),
			Address: child(inst, "streetaddress"),
			City:    child(inst, "cityname"),
			State:   child(inst, "statecode", "statename"),
			Zipcode: child(inst, "zipcode"),
			Country: child(inst, "countryname"),
		})
	}
	for _, org := range raw.Children["organization"] {
		record.Organizations = append(record.Organizations, Organization{
			Code:        child(org, "code"),
			Directorate: child(org, "directorate.longname", "directorate.abbreviation", "directorate"),
			Division:    child(org, "division.longname", "division.abbreviation", "division"),
		})
	}
	return record, nil
}

func fromTAGGS(raw RawRecord) (Record, error) {
	amt, err := amount(raw, "award amount", "sum of actions")
	if err != nil {
		return Record{}, err
	}
	d, err := parseDates(raw.get("action issue date"), "")
	if err != nil {
		return Record{}, err
	}

	record := Record{
		AwardID:   raw.get("award number"),
		Title:     raw.get("award title"),
		Abstract:  raw.get("abstract"),
		Amount:    amt,
		StartDate: d.start,
	}
	if pi := raw.get("principal investigator"); pi != "" {
		last, first := SplitName(pi)
		record.Investigators = append(record.Investigators, Investigator{
			LastName:  last,
			FirstName: first,
			Role:      "PI",
		})
	}
	if name := raw.get("recipient name"); name != "" {
		record.Institutions = append(record.Institutions, Institution{
			Name:    name,
			Address: raw.get("recipient address"),
			City:    raw.get("recipient city"),
			State:   raw.get("recipient state"),
			Zipcode: raw.get("recipient zip code"),
			Country: raw.get("recipient country"),
		})
	}
	opdiv := raw.get("opdiv")
	agency := raw.get("agency")
	if opdiv != "" || agency != "" {
		record.Organizations = append(record.Organizations, Organization{
			Directorate: opdiv,
			Division:    agency,
		})
	}
	return record, nil
}
