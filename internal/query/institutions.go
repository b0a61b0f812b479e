package query

import (
	"context"
	"fedgrants-backend/lib/textutil"
	"sort"

	"github.com/antzucaro/matchr"
)

const minSimilarity = 0.75

type InstitutionMatch struct {
	Name   string
	Score  float64
	Awards []string
}

// InstitutionsLike ranks the institution names by Jaro-Winkler similarity to
// name, returning at most limit matches. Names containing name are kept whatever
// their similarity.
func (q Querier) InstitutionsLike(ctx context.Context, name string, limit int) ([]InstitutionMatch, error) {
	ctx, span := tracer.Start(ctx, "InstitutionsLike")
	defer span.End()

	names, err := q.qry.ListInstitutionNames(ctx)
	if err != nil {
		q.tel.ReportBroken(report_db_query, err, "ListInstitutionNames")
		return nil, err
	}

	target := textutil.NormalizeName(name)
	var matches []InstitutionMatch
	for _, candidate := range names {
		score := matchr.JaroWinkler(target, textutil.NormalizeName(candidate), false)
		if score < minSimilarity && !textutil.MatchName(candidate, []string{target}) {
			continue
		}
		matches = append(matches, InstitutionMatch{Name: candidate, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	for i := range matches {
		matches[i].Awards, err = q.qry.ListAwardIDsByInstitution(ctx, matches[i].Name)
		if err != nil {
			q.tel.ReportBroken(report_db_query, err, "ListAwardIDsByInstitution", matches[i].Name)
			return nil, err
		}
	}
	return matches, nil
}
