package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
)

type idsResponse struct {
	IDs []int64 `json:"ids"`
}

type appsResponse struct {
	Apps []itunes.AppRecord `json:"apps"`
}

type ratingsResponse struct {
	ID        string           `json:"id"`
	Countries []string         `json:"countries,omitempty"`
	Ratings   itunes.Histogram `json:"ratings"`
	Total     int              `json:"total"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := intParam(r, "count")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := intParam(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ids, err := s.scraper.SearchAppIDs(r.Context(), q.Get("term"), itunes.SearchOptions{
		Count:   count,
		Page:    page,
		Country: q.Get("country"),
		Lang:    q.Get("lang"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	collection, err := market.ResolveCollection(q.Get("collection"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	category, err := market.ResolveCategory(q.Get("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := intParam(r, "count")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ids, err := s.scraper.CollectionAppIDs(r.Context(), itunes.CollectionOptions{
		Collection: collection,
		Category:   category,
		Count:      count,
		Country:    q.Get("country"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) handleDeveloper(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	apps, err := s.scraper.DeveloperApps(r.Context(), id, itunes.DeveloperOptions{
		Country: r.URL.Query().Get("country"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if boolParam(r, "ids_only") {
		writeJSON(w, http.StatusOK, idsResponse{IDs: lo.Map(apps, func(a itunes.AppRecord, _ int) int64 {
			return a.TrackID()
		})})
		return
	}
	writeJSON(w, http.StatusOK, appsResponse{Apps: apps})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	ids, err := s.scraper.SimilarAppIDs(r.Context(), id, itunes.SimilarOptions{
		Country: q.Get("country"),
		Lang:    q.Get("lang"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	id, err := itunes.ParseAppID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	flatten := !q.Has("flatten") || boolParam(r, "flatten")

	rec, err := s.scraper.AppDetails(r.Context(), id, itunes.DetailsOptions{
		Country: q.Get("country"),
		Lang:    q.Get("lang"),
		Flatten: &flatten,
		Ratings: boolParam(r, "ratings"),
		Force:   boolParam(r, "force"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleBatch looks up the comma-separated ids. Members that fail are left
// out of the response.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := listParam(r, "ids")
	if len(raw) == 0 {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "no app IDs were given"))
		return
	}
	ids := make([]itunes.AppID, 0, len(raw))
	for _, v := range raw {
		id, err := itunes.ParseAppID(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ids = append(ids, id)
	}
	flatten := !q.Has("flatten") || boolParam(r, "flatten")

	apps := []itunes.AppRecord{}
	for rec := range s.scraper.BatchDetails(r.Context(), ids, itunes.BatchOptions{
		Country: q.Get("country"),
		Lang:    q.Get("lang"),
		Ratings: boolParam(r, "ratings"),
		Force:   boolParam(r, "force"),
		Flatten: &flatten,
	}) {
		apps = append(apps, rec)
	}
	if err := r.Context().Err(); err != nil {
		return
	}
	writeJSON(w, http.StatusOK, appsResponse{Apps: apps})
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	id, err := itunes.ParseAppID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	countries := listParam(r, "countries")
	hist, err := s.scraper.Ratings(r.Context(), id, itunes.RatingsOptions{Countries: countries})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingsResponse{
		ID:        id.String(),
		Countries: countries,
		Ratings:   hist,
		Total:     hist.Total(),
	})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	names, err := market.Names(market.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"names": names})
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid ID %q", raw)
	}
	return n, nil
}

// intParam parses an optional non-negative integer query parameter.
// Absent means 0, which the client replaces with its default.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid %s %q", name, raw)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func listParam(r *http.Request, name string) []string {
	parts := strings.Split(r.URL.Query().Get(name), ",")
	return lo.Compact(lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) }))
}
