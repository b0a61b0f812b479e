package awardstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeAmount converts an exported dollar amount like "$1,234,567" into whole dollars.
// A fractional part is only accepted when it is all zeros.
func NormalizeAmount(amount string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, amount)

	whole, fraction, hasFraction := strings.Cut(cleaned, ".")
	if hasFraction && strings.Trim(fraction, "0") != "" {
		return 0, fmt.Errorf("%w: amount '%s' is not in whole dollars", ErrTypeConversion, amount)
	}
	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount '%s': %v", ErrTypeConversion, amount, err)
	}
	return value, nil
}

var dateLayouts = []string{
	time.DateOnly,
	// also accepts zero padded months and days
	"1/2/2006",
}

// NormalizeDate converts a date in MM/DD/YYYY, M/D/YYYY or YYYY-MM-DD form into YYYY-MM-DD.
// An empty date stays empty.
func NormalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, date)
		if err == nil {
			return parsed.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized date '%s'", ErrTypeConversion, date)
}

// SplitName splits an investigator name into last and first name. "Last, First" is
// split on the comma, otherwise the final word is taken as the last name.
func SplitName(name string) (last, first string) {
	name = strings.TrimSpace(name)
	if before, after, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	words := strings.Fields(name)
	if len(words) == 0 {
		return "", ""
	}
	return words[len(words)-1], strings.Join(words[:len(words)-1], " ")
}
