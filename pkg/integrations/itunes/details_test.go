package itunes

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/samber/lo"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/sink"
)

// lookupHandler answers /lookup for the track IDs in apps and returns an
// empty result list for every other ID.
func lookupHandler(t *testing.T, apps map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lookup" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("entity") != "software" {
			t.Errorf("entity = %q, want software", q.Get("entity"))
		}
		key := q.Get("id")
		if key == "" {
			key = q.Get("bundleId")
		}
		if app, ok := apps[key]; ok {
			fmt.Fprintf(w, `{"resultCount": 1, "results": [%s]}`, app)
			return
		}
		fmt.Fprint(w, `{"resultCount": 0, "results": []}`)
	}
}

const chessApp = `{"wrapperType": "software", "trackId": 1001, "trackName": "Pocket Chess",
	"bundleId": "com.example.chess", "genres": ["Games", "Board"], "genreIds": ["6014", "7004"]}`

func TestAppDetails(t *testing.T) {
	srv, hits := testServer(t, lookupHandler(t, map[string]string{"1001": chessApp}))
	c := testClient(t, srv.URL)

	app, err := c.AppDetails(context.Background(), TrackID(1001), DetailsOptions{})
	if err != nil {
		t.Fatalf("AppDetails() error: %v", err)
	}
	if app["trackName"] != "Pocket Chess" {
		t.Errorf("trackName = %v", app["trackName"])
	}
	if app["genres"] != "Games,Board" {
		t.Errorf("genres = %#v, want flattened string", app["genres"])
	}
	if app.TrackID() != 1001 {
		t.Errorf("TrackID() = %d", app.TrackID())
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
}

func TestAppDetails_BundleID(t *testing.T) {
	srv, _ := testServer(t, lookupHandler(t, map[string]string{"com.example.chess": chessApp}))
	c := testClient(t, srv.URL)

	id, err := ParseAppID("com.example.chess")
	if err != nil {
		t.Fatal(err)
	}
	app, err := c.AppDetails(context.Background(), id, DetailsOptions{Flatten: lo.ToPtr(false)})
	if err != nil {
		t.Fatalf("AppDetails() error: %v", err)
	}
	if _, ok := app["genres"].([]any); !ok {
		t.Errorf("genres = %#v, want unflattened list", app["genres"])
	}
}

func TestAppDetails_NotFoundNamesID(t *testing.T) {
	srv, _ := testServer(t, lookupHandler(t, nil))
	c := testClient(t, srv.URL)

	_, err := c.AppDetails(context.Background(), TrackID(872), DetailsOptions{})
	assertCode(t, err, apperrors.ErrCodeNotFound)
	if !strings.Contains(err.Error(), "872") {
		t.Errorf("error %q should name the app ID", err)
	}
}

func TestAppDetails_RetriesOnce(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad gateway", http.StatusBadGateway},
		{"throttled", http.StatusTooManyRequests},
		{"forbidden", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			calls := 0
			srv, hits := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				calls++
				n := calls
				mu.Unlock()
				if n == 1 {
					w.WriteHeader(tt.status)
					return
				}
				lookupHandler(t, map[string]string{"1001": chessApp})(w, r)
			})
			c := testClient(t, srv.URL)

			if _, err := c.AppDetails(context.Background(), TrackID(1001), DetailsOptions{}); err != nil {
				t.Fatalf("AppDetails() should succeed on retry: %v", err)
			}
			if hits.Load() != 2 {
				t.Errorf("requests = %d, want 2", hits.Load())
			}
		})
	}
}

func TestAppDetails_RetryExhausted(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   apperrors.Code
	}{
		{"server error", http.StatusInternalServerError, "", apperrors.ErrCodeNetwork},
		{"undecodable body", http.StatusOK, "<html>", apperrors.ErrCodeParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			c := testClient(t, srv.URL)

			_, err := c.AppDetails(context.Background(), TrackID(4242), DetailsOptions{})
			assertCode(t, err, tt.code)
			if !strings.Contains(err.Error(), "4242") {
				t.Errorf("error %q should name the app ID", err)
			}
			if hits.Load() != 2 {
				t.Errorf("requests = %d, want exactly 2", hits.Load())
			}
		})
	}
}

func TestAppDetails_ForceBustsCache(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	srv, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.URL.Query().Get("_"))
		mu.Unlock()
		lookupHandler(t, map[string]string{"1001": chessApp})(w, r)
	})
	c := testClient(t, srv.URL)

	ctx := context.Background()
	for range 2 {
		if _, err := c.AppDetails(ctx, TrackID(1001), DetailsOptions{Force: true}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.AppDetails(ctx, TrackID(1001), DetailsOptions{}); err != nil {
		t.Fatal(err)
	}

	if tokens[0] == "" || tokens[1] == "" || tokens[0] == tokens[1] {
		t.Errorf("forced requests should carry distinct tokens, got %q", tokens[:2])
	}
	if tokens[2] != "" {
		t.Errorf("unforced request carries token %q", tokens[2])
	}
}

func TestAppDetails_InvalidInput(t *testing.T) {
	srv, hits := testServer(t, lookupHandler(t, nil))
	c := testClient(t, srv.URL)

	_, err := c.AppDetails(context.Background(), AppID{}, DetailsOptions{})
	assertCode(t, err, apperrors.ErrCodeInvalidInput)

	_, err = c.AppDetails(context.Background(), TrackID(1), DetailsOptions{Country: "xz"})
	assertCode(t, err, apperrors.ErrCodeInvalidCountry)

	if hits.Load() != 0 {
		t.Errorf("requests = %d, want 0", hits.Load())
	}
}

func TestAppDetails_WithRatings(t *testing.T) {
	srv, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/nl/customer-reviews/id1001" {
			fmt.Fprint(w, reviewsPage("13", "2", "1", "0", "1"))
			return
		}
		lookupHandler(t, map[string]string{"1001": chessApp})(w, r)
	})
	c := testClient(t, srv.URL)

	app, err := c.AppDetails(context.Background(), TrackID(1001), DetailsOptions{Ratings: true})
	if err != nil {
		t.Fatalf("AppDetails() error: %v", err)
	}
	if want := "1: 1, 2: 0, 3: 1, 4: 2, 5: 13"; app[RatingsField] != want {
		t.Errorf("%s = %#v, want %q", RatingsField, app[RatingsField], want)
	}

	raw, err := c.AppDetails(context.Background(), TrackID(1001), DetailsOptions{Ratings: true, Flatten: lo.ToPtr(false)})
	if err != nil {
		t.Fatalf("AppDetails() error: %v", err)
	}
	if want := (Histogram{5: 13, 4: 2, 3: 1, 2: 0, 1: 1}); !reflect.DeepEqual(raw[RatingsField], want) {
		t.Errorf("%s = %#v, want %v", RatingsField, raw[RatingsField], want)
	}
}

func TestAppDetails_RatingsFailureDegrades(t *testing.T) {
	srv, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "customer-reviews") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		lookupHandler(t, map[string]string{"1001": chessApp})(w, r)
	})
	mem := sink.NewMemorySink()
	c := testClient(t, srv.URL, WithSink(mem))

	app, err := c.AppDetails(context.Background(), TrackID(1001), DetailsOptions{Ratings: true})
	if err != nil {
		t.Fatalf("ratings failure must not fail details: %v", err)
	}
	if app[RatingsField] != RatingsUnavailable {
		t.Errorf("%s = %#v, want sentinel", RatingsField, app[RatingsField])
	}
	if got := mem.Messages("nl"); len(got) != 1 {
		t.Errorf("sink messages = %v, want 1", got)
	}
}

func TestBatchDetails(t *testing.T) {
	srv, _ := testServer(t, lookupHandler(t, map[string]string{
		"1001": chessApp,
		"1003": `{"wrapperType": "software", "trackId": 1003, "trackName": "Go"}`,
	}))
	mem := sink.NewMemorySink()
	c := testClient(t, srv.URL, WithSink(mem))

	ids := TrackIDs([]int64{1001, 872, 1003})
	apps := c.BatchDetailsSlice(context.Background(), ids, BatchOptions{})

	got := lo.Map(apps, func(a AppRecord, _ int) int64 { return a.TrackID() })
	if want := []int64{1001, 1003}; !reflect.DeepEqual(got, want) {
		t.Errorf("batch = %v, want %v", got, want)
	}
	msgs := mem.Messages("nl")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "872") {
		t.Errorf("sink messages = %v, want one naming 872", msgs)
	}
}

func TestBatchDetails_BadMemberOnly(t *testing.T) {
	srv, _ := testServer(t, lookupHandler(t, nil))
	mem := sink.NewMemorySink()
	c := testClient(t, srv.URL, WithSink(mem))

	count := 0
	for range c.BatchDetails(context.Background(), []AppID{TrackID(872)}, BatchOptions{Country: "NL"}) {
		count++
	}
	if count != 0 {
		t.Errorf("yielded %d records, want 0", count)
	}
	if len(mem.Messages("nl")) != 1 || mem.Channels() != 1 {
		t.Errorf("want exactly one message in channel nl, got %v", mem.Messages("nl"))
	}
}

func TestBatchDetails_SinglePass(t *testing.T) {
	srv, hits := testServer(t, lookupHandler(t, map[string]string{"1001": chessApp}))
	c := testClient(t, srv.URL)

	seq := c.BatchDetails(context.Background(), TrackIDs([]int64{1001}), BatchOptions{})
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 1 || second != 0 {
		t.Errorf("ranges yielded %d then %d, want 1 then 0", first, second)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
}

func TestBatchDetails_StopsEarly(t *testing.T) {
	srv, hits := testServer(t, lookupHandler(t, map[string]string{"1001": chessApp, "1002": chessApp}))
	c := testClient(t, srv.URL)

	for range c.BatchDetails(context.Background(), TrackIDs([]int64{1001, 1002}), BatchOptions{}) {
		break
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1 after break", hits.Load())
	}
}

func TestBatchDetails_ContextCancelled(t *testing.T) {
	srv, hits := testServer(t, lookupHandler(t, map[string]string{"1001": chessApp}))
	mem := sink.NewMemorySink()
	c := testClient(t, srv.URL, WithSink(mem))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	apps := c.BatchDetailsSlice(ctx, TrackIDs([]int64{1001, 1001}), BatchOptions{})
	if len(apps) != 0 {
		t.Errorf("cancelled batch yielded %d records", len(apps))
	}
	if hits.Load() != 0 || mem.Channels() != 0 {
		t.Errorf("cancelled batch made %d requests and logged %d channels", hits.Load(), mem.Channels())
	}
}
