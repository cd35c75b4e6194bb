package api

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/buildinfo"
	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
)

type fakeScraper struct {
	search     itunes.SearchOptions
	term       string
	collection itunes.CollectionOptions
	details    itunes.DetailsOptions
	batch      []itunes.AppID
	countries  []string

	err error
}

func (f *fakeScraper) SearchAppIDs(_ context.Context, term string, opts itunes.SearchOptions) ([]int64, error) {
	f.term, f.search = term, opts
	if f.err != nil {
		return nil, f.err
	}
	return []int64{1, 2, 3}, nil
}

func (f *fakeScraper) CollectionAppIDs(_ context.Context, opts itunes.CollectionOptions) ([]int64, error) {
	f.collection = opts
	return []int64{10, 20}, f.err
}

func (f *fakeScraper) DeveloperApps(_ context.Context, id int64, _ itunes.DeveloperOptions) ([]itunes.AppRecord, error) {
	return []itunes.AppRecord{
		{"trackId": float64(100), "trackName": "One"},
		{"trackId": float64(200), "trackName": "Two"},
	}, f.err
}

func (f *fakeScraper) SimilarAppIDs(_ context.Context, id int64, _ itunes.SimilarOptions) ([]int64, error) {
	return []int64{id + 1}, f.err
}

func (f *fakeScraper) AppDetails(_ context.Context, id itunes.AppID, opts itunes.DetailsOptions) (itunes.AppRecord, error) {
	f.details = opts
	if f.err != nil {
		return nil, f.err
	}
	return itunes.AppRecord{"trackId": float64(id.Track()), "trackName": "Chess"}, nil
}

func (f *fakeScraper) BatchDetails(_ context.Context, ids []itunes.AppID, _ itunes.BatchOptions) iter.Seq[itunes.AppRecord] {
	f.batch = ids
	return func(yield func(itunes.AppRecord) bool) {
		for _, id := range ids {
			if id.Track() == 404 {
				continue
			}
			if !yield(itunes.AppRecord{"trackId": float64(id.Track())}) {
				return
			}
		}
	}
}

func (f *fakeScraper) Ratings(_ context.Context, _ itunes.AppID, opts itunes.RatingsOptions) (itunes.Histogram, error) {
	f.countries = opts.Countries
	if f.err != nil {
		return nil, f.err
	}
	return itunes.Histogram{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}, nil
}

func newTestServer(t *testing.T, f *fakeScraper) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"}))
	srv := httptest.NewServer(New(f, log.New(io.Discard), reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})
	status, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, buildinfo.Version, body["version"])
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "test_total")
}

func TestSearch(t *testing.T) {
	f := &fakeScraper{}
	srv := newTestServer(t, f)

	status, body := get(t, srv, "/search?term=chess&country=gb&lang=en&count=5&page=2")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, body["ids"])
	assert.Equal(t, "chess", f.term)
	assert.Equal(t, itunes.SearchOptions{Count: 5, Page: 2, Country: "gb", Lang: "en"}, f.search)
}

func TestSearch_BadCount(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})
	status, body := get(t, srv, "/search?term=chess&count=many")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body["error"].(map[string]any)["code"])
}

func TestCollection_ResolvesNames(t *testing.T) {
	f := &fakeScraper{}
	srv := newTestServer(t, f)

	status, _ := get(t, srv, "/collections?collection=top_paid_ios&category=6018&count=10")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, market.Collection("toppaidapplications"), f.collection.Collection)
	assert.Equal(t, market.Category(6018), f.collection.Category)
	assert.Equal(t, 10, f.collection.Count)
}

func TestCollection_UnknownName(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})
	status, body := get(t, srv, "/collections?collection=NOPE")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_DESCRIPTOR", body["error"].(map[string]any)["code"])
}

func TestDeveloper(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})

	status, body := get(t, srv, "/developers/42/apps")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["apps"], 2)

	status, body = get(t, srv, "/developers/42/apps?ids_only=true")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{float64(100), float64(200)}, body["ids"])

	status, _ = get(t, srv, "/developers/abc/apps")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSimilar(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})
	status, body := get(t, srv, "/apps/41/similar")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{float64(42)}, body["ids"])
}

func TestDetails(t *testing.T) {
	f := &fakeScraper{}
	srv := newTestServer(t, f)

	status, body := get(t, srv, "/apps/872?country=gb&ratings=1&force=true")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Chess", body["trackName"])
	assert.Equal(t, "gb", f.details.Country)
	assert.True(t, f.details.Ratings)
	assert.True(t, f.details.Force)
	require.NotNil(t, f.details.Flatten)
	assert.True(t, *f.details.Flatten)

	_, _ = get(t, srv, "/apps/872?flatten=false")
	require.NotNil(t, f.details.Flatten)
	assert.False(t, *f.details.Flatten)
}

func TestBatch_SkipsFailures(t *testing.T) {
	f := &fakeScraper{}
	srv := newTestServer(t, f)

	status, body := get(t, srv, "/apps?ids=1,404,%203")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, f.batch, 3)
	apps := body["apps"].([]any)
	require.Len(t, apps, 2)
	assert.Equal(t, float64(3), apps[1].(map[string]any)["trackId"])
}

func TestBatch_RequiresIDs(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})
	status, _ := get(t, srv, "/apps?ids=")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRatings(t *testing.T) {
	f := &fakeScraper{}
	srv := newTestServer(t, f)

	status, body := get(t, srv, "/apps/872/ratings?countries=nl,%20gb,")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"nl", "gb"}, f.countries)
	assert.Equal(t, float64(15), body["total"])
	assert.Equal(t, float64(5), body["ratings"].(map[string]any)["5"])
}

func TestEntries(t *testing.T) {
	srv := newTestServer(t, &fakeScraper{})

	status, body := get(t, srv, "/entries/countries")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["names"], "NL")

	status, _ = get(t, srv, "/entries/planets")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.New(apperrors.ErrCodeInvalidInput, "x"), http.StatusBadRequest},
		{apperrors.New(apperrors.ErrCodeInvalidCountry, "x"), http.StatusBadRequest},
		{apperrors.New(apperrors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{apperrors.New(apperrors.ErrCodeNoResults, "x"), http.StatusNotFound},
		{apperrors.New(apperrors.ErrCodeNetwork, "x"), http.StatusBadGateway},
		{apperrors.New(apperrors.ErrCodeParse, "x"), http.StatusBadGateway},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(apperrors.GetCode(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestErrorBody(t *testing.T) {
	f := &fakeScraper{err: apperrors.New(apperrors.ErrCodeNotFound, "no app found with ID 872")}
	srv := newTestServer(t, f)

	status, body := get(t, srv, "/apps/872")
	assert.Equal(t, http.StatusNotFound, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
	assert.Equal(t, "no app found with ID 872", errBody["message"])
}

func TestErrorBody_PlainError(t *testing.T) {
	f := &fakeScraper{err: io.ErrUnexpectedEOF}
	srv := newTestServer(t, f)

	status, body := get(t, srv, "/search?term=chess")
	assert.Equal(t, http.StatusInternalServerError, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", errBody["code"])
	assert.True(t, strings.Contains(errBody["message"].(string), "unexpected EOF"))
}
