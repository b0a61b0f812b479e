package awards

import (
	"context"
	"encoding/json"
	"errors"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/gencache"
	"fedgrants-backend/internal/query"
	"fedgrants-backend/internal/telemetry"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/awards")

const defaultInstitutionLimit = 10

// Service exposes the query layer of an award database as JSON over HTTP.
type Service struct {
	query query.Querier
	// cache is nil when the service does not serve a search cache.
	cache *gencache.Cache
	tel   telemetry.API
}

func NewService(querier query.Querier, cache *gencache.Cache, tel telemetry.API) Service {
	return Service{
		query: querier,
		cache: cache,
		tel:   telemetry.NewScopedAPI("awards", telemetry.OrDefault(tel)),
	}
}

func (s Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /awards", s.listAwards)
	mux.HandleFunc("GET /awards/{id}", s.getAward)
	mux.HandleFunc("GET /institutions", s.listInstitutions)
	mux.HandleFunc("GET /cache/generations", s.listGenerations)
	return mux
}

type Award struct {
	AwardID   string `json:"award_id"`
	Agency    string `json:"agency"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Amount    int64  `json:"amount"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

func awardFromRow(a db.Award) Award {
	return Award{
		AwardID:   a.AwardID,
		Agency:    a.Agency,
		Title:     a.Title,
		Abstract:  a.Abstract,
		Amount:    a.Amount,
		StartDate: a.StartDate.String,
		EndDate:   a.EndDate.String,
	}
}

type ListAwardsResponse struct {
	Awards []Award `json:"awards"`
	Count  int     `json:"count"`
	Total  int64   `json:"total"`
}

type AwardDetail struct {
	Award
	Investigators []awardstore.Investigator `json:"investigators"`
	Institutions  []awardstore.Institution  `json:"institutions"`
	Organizations []awardstore.Organization `json:"organizations"`
}

type Institution struct {
	Name   string   `json:"name"`
	Score  float64  `json:"score"`
	Awards []string `json:"awards"`
}

type Generation struct {
	Generation int64 `json:"generation"`
	Awards     int64 `json:"awards"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

func (s Service) writeJSON(ctx context.Context, w http.ResponseWriter, status int, value any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		slog.DebugContext(ctx, "write response", "err", err)
	}
}

func (s Service) writeError(ctx context.Context, w http.ResponseWriter, route string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, query.ErrInvalidMonth):
		status = http.StatusBadRequest
	case errors.Is(err, awardstore.ErrAwardNotFound):
		status = http.StatusNotFound
	default:
		s.tel.ReportBroken(route, err)
	}
	s.writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

func parseFilter(values map[string][]string) (query.Filter, error) {
	get := func(key string) string {
		if v, ok := values[key]; ok && len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var filter query.Filter
	for _, kw := range strings.Split(get("keywords"), ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			filter.Keywords = append(filter.Keywords, kw)
		}
	}
	if amount := get("amount"); amount != "" {
		parsed, err := awardstore.NormalizeAmount(amount)
		if err != nil || parsed < 0 {
			return query.Filter{}, errors.Join(errBadRequest, err)
		}
		filter.Amount = parsed
	}
	filter.From = get("from")
	filter.To = get("to")
	return filter, nil
}

func (s Service) listAwards(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "listAwards")
	defer span.End()

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(ctx, w, "list-awards", err)
		return
	}
	results, err := s.query.Filter(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.writeError(ctx, w, "list-awards", err)
		return
	}

	res := ListAwardsResponse{
		Awards: make([]Award, 0, len(results.Awards)),
		Count:  len(results.Awards),
		Total:  results.Total,
	}
	for _, a := range results.Awards {
		res.Awards = append(res.Awards, awardFromRow(a))
	}
	span.SetAttributes(attribute.Int("count", res.Count))
	s.writeJSON(ctx, w, http.StatusOK, res)
}

func (s Service) getAward(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "getAward")
	defer span.End()

	id := r.PathValue("id")
	span.SetAttributes(attribute.String("award_id", id))

	record, err := s.query.Detail(ctx, id)
	if err != nil {
		s.writeError(ctx, w, "get-award", err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, AwardDetail{
		Award: Award{
			AwardID:   record.AwardID,
			Agency:    record.Agency,
			Title:     record.Title,
			Abstract:  record.Abstract,
			Amount:    record.Amount,
			StartDate: record.StartDate,
			EndDate:   record.EndDate,
		},
		Investigators: record.Investigators,
		Institutions:  record.Institutions,
		Organizations: record.Organizations,
	})
}

func (s Service) listInstitutions(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "listInstitutions")
	defer span.End()

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.writeError(ctx, w, "list-institutions", errors.Join(errBadRequest, errors.New("name is required")))
		return
	}
	limit := defaultInstitutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(ctx, w, "list-institutions", errors.Join(errBadRequest, errors.New("invalid limit")))
			return
		}
		limit = parsed
	}

	matches, err := s.query.InstitutionsLike(ctx, name, limit)
	if err != nil {
		s.writeError(ctx, w, "list-institutions", err)
		return
	}
	res := make([]Institution, 0, len(matches))
	for _, m := range matches {
		res = append(res, Institution{Name: m.Name, Score: m.Score, Awards: m.Awards})
	}
	s.writeJSON(ctx, w, http.StatusOK, res)
}

func (s Service) listGenerations(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "listGenerations")
	defer span.End()

	if s.cache == nil {
		s.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "no search cache is served"})
		return
	}
	gens, err := s.cache.Generations(ctx)
	if err != nil {
		s.writeError(ctx, w, "list-generations", err)
		return
	}
	res := make([]Generation, 0, len(gens))
	for _, g := range gens {
		res = append(res, Generation{Generation: g.Counter, Awards: g.Awards})
	}
	s.writeJSON(ctx, w, http.StatusOK, res)
}
