package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
)

var storeApps = map[string]string{
	"1001": `{"wrapperType": "software", "trackId": 1001, "trackName": "Pocket Chess", "artistName": "Example", "genres": ["Games", "Board"]}`,
	"1002": `{"wrapperType": "software", "trackId": 1002, "trackName": "Pocket Go", "artistName": "Example"}`,
}

const developerID = "42"

// storeServer fakes the search, lookup, chart and review endpoints.
func storeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			fmt.Fprint(w, `{"bubbles": [{"results": [{"id": "1001"}, {"id": "1002"}]}]}`)
		case r.URL.Path == "/lookup":
			id := r.URL.Query().Get("id")
			if id == developerID {
				fmt.Fprintf(w, `{"resultCount": 3, "results": [{"wrapperType": "artist", "artistId": %s}, %s, %s]}`,
					id, storeApps["1001"], storeApps["1002"])
				return
			}
			if app, ok := storeApps[id]; ok {
				fmt.Fprintf(w, `{"resultCount": 1, "results": [%s]}`, app)
				return
			}
			fmt.Fprint(w, `{"resultCount": 0, "results": []}`)
		case strings.HasSuffix(r.URL.Path, "/json"):
			fmt.Fprint(w, `{"feed": {"entry": [{"id": {"attributes": {"im:id": "1002"}}}]}}`)
		case strings.Contains(r.URL.Path, "/customer-reviews/"):
			fmt.Fprint(w, `<div><span class="total">50</span><span class="total">4</span><span class="total">3</span><span class="total">2</span><span class="total">1</span></div>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testCLI returns a root command wired to srv with an empty config, its
// stdout buffer and the buffer that receives styled status lines.
func testCLI(t *testing.T, srv *httptest.Server) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ITUNES_SCRAPER_SINK_BACKEND", "none")

	c := New(io.Discard, LogInfo)
	if srv != nil {
		c.clientOpts = []itunes.Option{
			itunes.WithEndpoints(srv.URL+"/search", srv.URL),
			itunes.WithRetryDelay(time.Millisecond),
			itunes.WithBatchDelay(-1),
			itunes.WithRatingsDelay(-1),
		}
	}

	var stdout, status bytes.Buffer
	prev := out
	out = &status
	t.Cleanup(func() { out = prev })

	root := c.RootCommand()
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	return root, &stdout, &status
}

func execute(t *testing.T, root *cobra.Command, args ...string) error {
	t.Helper()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"search", "collection", "developer", "similar", "details", "ratings", "list", "serve", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag not registered")
	}
}

func TestSearchCommand(t *testing.T) {
	root, stdout, _ := testCLI(t, storeServer(t))

	if err := execute(t, root, "search", "chess"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := stdout.String(); got != "1001\n1002\n" {
		t.Errorf("stdout = %q, want one ID per line", got)
	}
}

func TestSearchCommand_JSON(t *testing.T) {
	root, stdout, _ := testCLI(t, storeServer(t))

	if err := execute(t, root, "search", "chess", "--json", "--count", "1"); err != nil {
		t.Fatalf("search: %v", err)
	}
	var ids []int64
	if err := json.Unmarshal(stdout.Bytes(), &ids); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1001 {
		t.Errorf("ids = %v, want [1001]", ids)
	}
}

func TestCollectionCommand(t *testing.T) {
	root, stdout, _ := testCLI(t, storeServer(t))

	if err := execute(t, root, "collection", "--collection", "TOP_PAID_IOS", "--category", "GAMES"); err != nil {
		t.Fatalf("collection: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "1002" {
		t.Errorf("stdout = %q, want 1002", got)
	}

	root, _, _ = testCLI(t, storeServer(t))
	if err := execute(t, root, "collection", "--collection", "NOPE"); err == nil {
		t.Error("unknown collection should fail")
	}
}

func TestDeveloperCommand(t *testing.T) {
	root, stdout, _ := testCLI(t, storeServer(t))

	if err := execute(t, root, "developer", developerID, "--ids-only"); err != nil {
		t.Fatalf("developer: %v", err)
	}
	if got := stdout.String(); got != "1001\n1002\n" {
		t.Errorf("stdout = %q", got)
	}

	root, _, status := testCLI(t, storeServer(t))
	if err := execute(t, root, "developer", developerID); err != nil {
		t.Fatalf("developer: %v", err)
	}
	if !strings.Contains(status.String(), "Pocket Chess") {
		t.Errorf("table should list app names, got %q", status.String())
	}
}

func TestDetailsCommand_Single(t *testing.T) {
	root, _, status := testCLI(t, storeServer(t))

	if err := execute(t, root, "details", "1001"); err != nil {
		t.Fatalf("details: %v", err)
	}
	if !strings.Contains(status.String(), "Pocket Chess") {
		t.Errorf("output should show the app name, got %q", status.String())
	}
}

func TestDetailsCommand_NotFound(t *testing.T) {
	root, _, _ := testCLI(t, storeServer(t))

	err := execute(t, root, "details", "999")
	if err == nil || !strings.Contains(err.Error(), "999") {
		t.Errorf("details of unknown app = %v, want error naming the ID", err)
	}
}

func TestDetailsCommand_JSON(t *testing.T) {
	root, stdout, _ := testCLI(t, storeServer(t))

	if err := execute(t, root, "details", "1001", "--format", "json"); err != nil {
		t.Fatalf("details: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if rec["genres"] != "Games,Board" {
		t.Errorf("genres = %v, want flattened list", rec["genres"])
	}
}

func TestDetailsCommand_BatchCSV(t *testing.T) {
	root, _, status := testCLI(t, storeServer(t))
	root.SetIn(strings.NewReader("1001\n999\n1002\n"))
	path := filepath.Join(t.TempDir(), "apps.csv")

	if err := execute(t, root, "details", "-", "--format", "csv", "--output", path); err != nil {
		t.Fatalf("details: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header and two records", len(rows))
	}
	if rows[0][0] != "trackId" || rows[1][0] != "1001" || rows[2][0] != "1002" {
		t.Errorf("rows = %v", rows)
	}
	if !strings.Contains(status.String(), "1 apps could not be fetched") {
		t.Errorf("status should report the skipped app, got %q", status.String())
	}
}

func TestDetailsCommand_OutputNeedsFormat(t *testing.T) {
	root, _, _ := testCLI(t, storeServer(t))
	if err := execute(t, root, "details", "1001", "--output", "x.txt"); err == nil {
		t.Error("--output with table format should fail")
	}
}

func TestRatingsCommand(t *testing.T) {
	root, stdout, _ := testCLI(t, storeServer(t))

	if err := execute(t, root, "ratings", "1001", "--countries", "nl, be", "--json"); err != nil {
		t.Fatalf("ratings: %v", err)
	}
	var hist map[string]int
	if err := json.Unmarshal(stdout.Bytes(), &hist); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if hist["5"] != 100 || hist["1"] != 2 {
		t.Errorf("histogram = %v, want sums over two countries", hist)
	}
}

func TestListCommand(t *testing.T) {
	root, stdout, _ := testCLI(t, nil)

	if err := execute(t, root, "list", "countries"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(stdout.String(), "NL\n") {
		t.Errorf("countries should include NL")
	}

	root, stdout, _ = testCLI(t, nil)
	if err := execute(t, root, "list", "collections", "--json"); err != nil {
		t.Fatalf("list: %v", err)
	}
	var entries struct{ Names []string }
	if err := json.Unmarshal(stdout.Bytes(), &entries); err != nil || len(entries.Names) == 0 {
		t.Errorf("list --json = %q (%v)", stdout.String(), err)
	}

	root, _, _ = testCLI(t, nil)
	if err := execute(t, root, "list", "planets"); err == nil {
		t.Error("unknown table should fail")
	}
}

func TestInvalidConfig(t *testing.T) {
	root, _, _ := testCLI(t, nil)
	t.Setenv("ITUNES_SCRAPER_COUNTRY", "xx")

	if err := execute(t, root, "search", "chess"); err == nil {
		t.Error("an unknown configured country should fail before any request")
	}
}

func TestReadIDs(t *testing.T) {
	ids, err := readIDs([]string{"1", "2"}, strings.NewReader("ignored"))
	if err != nil || len(ids) != 2 {
		t.Errorf("readIDs(args) = %v, %v", ids, err)
	}

	ids, err = readIDs([]string{"-"}, strings.NewReader("1 2\n3\n"))
	if err != nil || strings.Join(ids, ",") != "1,2,3" {
		t.Errorf("readIDs(-) = %v, %v", ids, err)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"284882215", 284882215, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"com.example", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseID(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestField(t *testing.T) {
	rec := itunes.AppRecord{"trackId": float64(1001), "price": 1.99, "name": "Chess", "none": nil}
	tests := map[string]string{
		"trackId": "1001",
		"price":   "1.99",
		"name":    "Chess",
		"none":    "",
		"missing": "",
	}
	for key, want := range tests {
		if got := field(rec, key); got != want {
			t.Errorf("field(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestTerminalOrDiscard(t *testing.T) {
	var buf bytes.Buffer
	if terminalOrDiscard(&buf) != io.Discard {
		t.Error("a buffer is not a terminal")
	}
}
