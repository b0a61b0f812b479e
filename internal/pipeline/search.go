package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Agencies are the funding agencies a search can target. NSF awards come from the NSF
// award search, the others from HHS TAGGS.
var Agencies = []string{"NSF", "CDC", "NIH", "AHRQ", "FDA"}

// FirstYear is the oldest fiscal year the award portals hold.
const FirstYear = 1991

// Search is a single user search across one or more agencies.
type Search struct {
	Years    []int    `json:"years"`
	Agencies []string `json:"agencies"`
	Keywords string   `json:"keywords"`
	// USOnly restricts results to awards made to institutions in the United States.
	USOnly bool `json:"us_only"`
}

// Validate checks the search against the current time.
func (s Search) Validate(now time.Time) error {
	if len(s.Agencies) == 0 {
		return fmt.Errorf("%w: no agency selected", ErrInvalidSearch)
	}
	for _, agency := range s.Agencies {
		if !slices.Contains(Agencies, agency) {
			return fmt.Errorf("%w: unknown agency '%s'", ErrInvalidSearch, agency)
		}
	}
	for _, year := range s.Years {
		if year < FirstYear || year > now.Year() {
			return fmt.Errorf("%w: year %d is outside %d-%d", ErrInvalidSearch, year, FirstYear, now.Year())
		}
	}
	return nil
}

// YearRange returns the first and last year searched, ok is false when no year was given.
func (s Search) YearRange() (first, last int, ok bool) {
	if len(s.Years) == 0 {
		return 0, 0, false
	}
	return slices.Min(s.Years), slices.Max(s.Years), true
}

// Terms splits the keywords on whitespace.
func (s Search) Terms() []string {
	return strings.Fields(s.Keywords)
}

// Only returns a copy of the search restricted to the given agencies.
func (s Search) Only(agencies func(string) bool) Search {
	out := s
	out.Agencies = nil
	for _, agency := range s.Agencies {
		if agencies(agency) {
			out.Agencies = append(out.Agencies, agency)
		}
	}
	return out
}
