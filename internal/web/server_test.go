package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/gridview/client"
	"github.com/JonMunkholm/gridview/grid"
	"github.com/JonMunkholm/gridview/internal/config"
	"github.com/JonMunkholm/gridview/internal/store"
	"golang.org/x/text/language"
)

const peopleJSON = `{
  "columns": [
    {"key": "id", "label": "ID", "type": "number"},
    {"key": "name", "label": "Name", "type": "string"},
    {"key": "age", "label": "Age", "type": "number", "filter": {"kind": "range"}},
    {"key": "team", "label": "Team", "type": "select", "filter": {"kind": "select", "options": ["red", "blue"]}}
  ],
  "rows": [
    {"id": 1, "name": "Charlie", "age": 35, "team": "red"},
    {"id": 2, "name": "Alice", "age": 30, "team": "blue"},
    {"id": 3, "name": "Bob, Jr.", "age": 25, "team": "red"},
    {"id": 4, "name": "Dana", "age": null, "team": "blue"}
  ]
}`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Collection: config.CollectionConfig{
			Name:            "people",
			DefaultPageSize: 2,
			MaxPageSize:     100,
		},
	}
}

type testServer struct {
	*Server
	URL string
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	coll, err := store.ReadCollection(strings.NewReader(peopleJSON))
	if err != nil {
		t.Fatalf("ReadCollection() error = %v", err)
	}
	srv := NewServer(store.NewMemory(coll, language.English, nil), cfg)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: srv, URL: ts.URL}
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func pageNames(page grid.ResultPage) string {
	names := make([]string, len(page.Rows))
	for i, r := range page.Rows {
		names[i] = r.Get("name").Text()
	}
	return strings.Join(names, "|")
}

func TestHandleCollection_DefaultPage(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var page grid.ResultPage
	resp := getJSON(t, ts.URL+"/people", &page)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if page.TotalRecords != 4 || page.TotalPages != 2 {
		t.Errorf("totals = %d/%d, want 4/2", page.TotalRecords, page.TotalPages)
	}
	if got := pageNames(page); got != "Charlie|Alice" {
		t.Errorf("rows = %q, want %q", got, "Charlie|Alice")
	}
}

func TestHandleCollection_Params(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		name  string
		query string
		want  string
		total int
	}{
		{"sort desc", "?sort=-name&pageSize=4", "Dana|Charlie|Bob, Jr.|Alice", 4},
		{"second page", "?sort=name&page=2", "Charlie|Dana", 4},
		{"range keeps nulls", "?age_min=30&pageSize=10", "Charlie|Alice|Dana", 3},
		{"select", "?team=blue&pageSize=10", "Alice|Dana", 2},
		{"search", "?search=ALI", "Alice", 1},
		{"past the end", "?page=9", "", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page grid.ResultPage
			resp := getJSON(t, ts.URL+"/people"+tt.query, &page)

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if got := pageNames(page); got != tt.want {
				t.Errorf("rows = %q, want %q", got, tt.want)
			}
			if page.TotalRecords != tt.total {
				t.Errorf("totalRecords = %d, want %d", page.TotalRecords, tt.total)
			}
		})
	}
}

func TestHandleCollection_BadRequest(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"page", "?page=zero", "invalid page"},
		{"page size", "?pageSize=-1", "invalid pageSize"},
		{"too large", "?pageSize=1000", "exceeds maximum"},
		{"range bound", "?age_min=old", "invalid age_min"},
		{"sort column", "?sort=shoe", "cannot sort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorResponse
			resp := getJSON(t, ts.URL+"/people"+tt.query, &body)

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if !strings.Contains(body.Message, tt.want) {
				t.Errorf("message = %q, want it to contain %q", body.Message, tt.want)
			}
		})
	}
}

func TestHandleRecord(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var row grid.Row
	resp := getJSON(t, ts.URL+"/people/2", &row)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if row.Get("name").Text() != "Alice" {
		t.Errorf("name = %q, want Alice", row.Get("name").Text())
	}

	var body ErrorResponse
	resp = getJSON(t, ts.URL+"/people/99", &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body.Message != "Record not found" {
		t.Errorf("message = %q, want %q", body.Message, "Record not found")
	}
}

func TestHandleExport(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/people?export=true&page=2&search=zzz")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="export_`) {
		t.Errorf("Content-Disposition = %q, want export_ filename", cd)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// View parameters are ignored: every row is exported.
	if len(records) != 5 {
		t.Fatalf("got %d csv records, want 5", len(records))
	}
	if strings.Join(records[0], ",") != "id,name,age,team" {
		t.Errorf("header = %v", records[0])
	}
	if records[3][1] != "Bob, Jr." {
		t.Errorf("row 3 name = %q, want %q", records[3][1], "Bob, Jr.")
	}
	if records[4][2] != "" {
		t.Errorf("null age = %q, want empty", records[4][2])
	}
}

func TestNotFoundRoute(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var body ErrorResponse
	resp := getJSON(t, ts.URL+"/nothing-here", &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body.Message == "" {
		t.Error("expected a message in the error body")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp := getJSON(t, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Latency = 60 * time.Millisecond
	ts := newTestServer(t, cfg)

	start := time.Now()
	resp := getJSON(t, ts.URL+"/people", nil)
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if elapsed < cfg.Server.Latency {
		t.Errorf("request took %v, want at least %v", elapsed, cfg.Server.Latency)
	}

	start = time.Now()
	getJSON(t, ts.URL+"/healthz", nil)
	if time.Since(start) >= cfg.Server.Latency {
		t.Error("health check should not be delayed")
	}
}

func TestClientRoundTrip(t *testing.T) {
	ts := newTestServer(t, testConfig())

	c, err := client.New(ts.URL+"/people", client.Options{})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	ctx := context.Background()

	view := grid.ViewState{
		Page:     1,
		PageSize: 10,
		Filters:  grid.FilterSet{"team": {Value: grid.Text("red")}},
		Sort:     grid.SortSpec{Key: "age", Order: grid.Asc},
	}
	page, err := c.FetchPage(ctx, view)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if got := pageNames(page); got != "Bob, Jr.|Charlie" {
		t.Errorf("rows = %q, want %q", got, "Bob, Jr.|Charlie")
	}

	row, err := c.FetchRecord(ctx, "4")
	if err != nil {
		t.Fatalf("FetchRecord() error = %v", err)
	}
	if !row.Get("age").IsNull() {
		t.Errorf("age = %v, want null", row.Get("age"))
	}

	_, err = c.FetchRecord(ctx, "404")
	var apiErr *grid.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Record not found" {
		t.Errorf("FetchRecord(404) error = %v, want 404 Record not found", err)
	}
}
