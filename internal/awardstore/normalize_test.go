package awardstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAmount(t *testing.T) {
	testCases := []struct {
		input    string
		expected int64
		fails    bool
	}{
		{input: "$1,234,567", expected: 1234567},
		{input: "1234567", expected: 1234567},
		{input: " $ 2,500 ", expected: 2500},
		{input: "$1,000.00", expected: 1000},
		{input: "-500", expected: -500},
		{input: "$1,000.50", fails: true},
		{input: "twelve", fails: true},
		{input: "", fails: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			value, err := NormalizeAmount(tc.input)
			if tc.fails {
				require.ErrorIs(t, err, ErrTypeConversion)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, value)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		fails    bool
	}{
		{input: "09/01/2016", expected: "2016-09-01"},
		{input: "9/1/2016", expected: "2016-09-01"},
		{input: "2016-09-01", expected: "2016-09-01"},
		{input: "", expected: ""},
		{input: "13/01/2016", fails: true},
		{input: "Sept 1 2016", fails: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			value, err := NormalizeDate(tc.input)
			if tc.fails {
				require.ErrorIs(t, err, ErrTypeConversion)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, value)
		})
	}
}

func TestSplitName(t *testing.T) {
	testCases := []struct {
		input string
		last  string
		first string
	}{
		{input: "Doe, Jane", last: "Doe", first: "Jane"},
		{input: "Jane Q Doe", last: "Doe", first: "Jane Q"},
		{input: "Cher", last: "Cher", first: ""},
		{input: "  ", last: "", first: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			last, first := SplitName(tc.input)
			require.Equal(t, tc.last, last)
			require.Equal(t, tc.first, first)
		})
	}
}

func TestNormalizeFormats(t *testing.T) {
	export := RawRecord{Fields: map[string]string{
		"awardnumber":           "1600001",
		"title":                 "Coral reef genomics",
		"abstract":              "Reef survey",
		"awardedamounttodate":   "$450,000",
		"startdate":             "08/15/2016",
		"enddate":               "07/31/2019",
		"principalinvestigator": "Ana Lopez",
		"piemailaddress":        "ana@example.edu",
		"organization":          "Example University",
		"organizationcity":      "Miami",
		"organizationstate":     "FL",
		"organizationzip":       "331460000",
		"nsfdirectorate":        "BIO",
		"nsforganization":       "DEB",
	}}
	record, err := Normalize("NSF", export)
	require.NoError(t, err)
	require.Equal(t, Record{
		AwardID:   "1600001",
		Agency:    "NSF",
		Title:     "Coral reef genomics",
		Abstract:  "Reef survey",
		Amount:    450000,
		StartDate: "2016-08-15",
		EndDate:   "2019-07-31",
		Investigators: []Investigator{
			{LastName: "Lopez", FirstName: "Ana", Role: "PI", Email: "ana@example.edu"},
		},
		Institutions: []Institution{
			{Name: "Example University", City: "Miami", State: "FL", Zipcode: "331460000"},
		},
		Organizations: []Organization{{Directorate: "BIO", Division: "DEB"}},
	}, record)

	bulk := RawRecord{
		Fields: map[string]string{
			"awardid":             "1600002",
			"awardtitle":          "Glacier dynamics",
			"abstractnarration":   "Ice flow",
			"awardamount":         "120000",
			"awardeffectivedate":  "09/01/2016",
			"awardexpirationdate": "",
		},
		Children: map[string][]map[string]string{
			"investigator": {{"firstname": "Sam", "lastname": "Berg", "rolecode": "Principal Investigator"}},
			"institution":  {{"name": "North College", "cityname": "Fairbanks", "statecode": "AK", "countryname": "United States"}},
			"organization": {{"code": "06030000", "directorate.longname": "Geosciences", "division.longname": "Polar Programs"}},
		},
	}
	record, err = Normalize("NSF", bulk)
	require.NoError(t, err)
	require.Equal(t, "", record.EndDate)
	require.Equal(t, []Organization{{Code: "06030000", Directorate: "Geosciences", Division: "Polar Programs"}}, record.Organizations)
	require.Equal(t, "Berg", record.Investigators[0].LastName)
	require.Equal(t, "AK", record.Institutions[0].State)

	taggs := RawRecord{Fields: map[string]string{
		"award number":           "R01AI000001",
		"award title":            "HIV latency",
		"abstract":               "Reservoirs",
		"sum of actions":         "$1,250,000.00",
		"action issue date":      "3/4/2012",
		"principal investigator": "SMITH, JOHN",
		"recipient name":         "STATE UNIVERSITY",
		"recipient country":      "UNITED STATES",
		"opdiv":                  "NIH",
		"agency":                 "NIAID",
	}}
	record, err = Normalize("NIH", taggs)
	require.NoError(t, err)
	require.Equal(t, int64(1250000), record.Amount)
	require.Equal(t, "2012-03-04", record.StartDate)
	require.Equal(t, Investigator{LastName: "SMITH", FirstName: "JOHN", Role: "PI"}, record.Investigators[0])
	require.Equal(t, []Organization{{Directorate: "NIH", Division: "NIAID"}}, record.Organizations)

	_, err = Normalize("NSF", RawRecord{Fields: map[string]string{"title": "orphan"}})
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = Normalize("NSF", RawRecord{Fields: map[string]string{"awardnumber": "  "}})
	require.ErrorIs(t, err, ErrConstraintViolation)
}
