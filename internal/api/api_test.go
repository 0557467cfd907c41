package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drukpa1455/crewai-job/internal/metrics"
	"github.com/drukpa1455/crewai-job/internal/pipeline"
	"github.com/drukpa1455/crewai-job/internal/scrape"
	"github.com/drukpa1455/crewai-job/internal/testutil"
	"github.com/drukpa1455/crewai-job/pkg/errors"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

type fakeRuns struct {
	runs []types.Run
	err  error
	got  int
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]types.Run, error) {
	f.got = limit
	return f.runs, f.err
}

func newTestServer(t *testing.T, run RunFunc, runs RunLister) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewPrometheusSink(reg).RunCompleted("review", time.Second, nil)
	sc := scrape.New(scrape.Config{Timeout: 5 * time.Second, RatePerS: 100}, nil)
	if runs == nil {
		runs = &fakeRuns{}
	}
	s := NewServer(0, sc, run, runs, reg)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv, reg
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeError(t *testing.T, res *http.Response) errors.ApiError {
	t.Helper()
	var apiErr errors.ApiError
	if err := json.NewDecoder(res.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

func TestExtract(t *testing.T) {
	page := testutil.ServePage(t, testutil.GreenhousePosting)
	srv, _ := newTestServer(t, nil, nil)

	res := post(t, srv.URL+"/api/extract", fmt.Sprintf(`{"url": %q}`, page.URL))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	var posting types.JobPosting
	if err := json.NewDecoder(res.Body).Decode(&posting); err != nil {
		t.Fatal(err)
	}
	if posting.Title != "Senior Go Engineer" || posting.Company != "Acme Corp" {
		t.Errorf("posting = %+v", posting)
	}
}

func TestExtract_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{"url":`, http.StatusBadRequest},
		{"missing url", `{}`, http.StatusBadRequest},
		{"bad scheme", `{"url": "ftp://example.com/job"}`, http.StatusBadRequest},
		{"unreachable host", `{"url": "http://127.0.0.1:1/job"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := post(t, srv.URL+"/api/extract", tt.body)
			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
			apiErr := decodeError(t, res)
			if apiErr.RequestID == "" || apiErr.RequestID != res.Header.Get("X-Request-ID") {
				t.Errorf("request id = %q, header = %q", apiErr.RequestID, res.Header.Get("X-Request-ID"))
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	res, err := http.Get(srv.URL + "/api/extract")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", res.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/run", nil)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", res2.StatusCode)
	}
	if res2.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header on preflight")
	}
}

func TestValidateCV(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	valid := `{
  "full_name": "Jane Doe",
  "headline": "Senior Go Engineer",
  "professional_summary": "Go engineer with eight years of experience building payment infrastructure.",
  "experience": [{"company": "Paylane", "role": "Backend Engineer", "period": "2019 - 2025", "highlights": ["Built the settlement service"]}],
  "skills": ["Go"]
}`
	res := post(t, srv.URL+"/api/validate/cv", valid)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	invalid := `{"full_name": "Jane Doe", "headline": "Engineer", "professional_summary": "too short", "experience": [], "skills": ["Go"]}`
	res = post(t, srv.URL+"/api/validate/cv", invalid)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", res.StatusCode)
	}
	apiErr := decodeError(t, res)
	if len(apiErr.Fields) != 2 {
		t.Fatalf("fields = %v, want 2 entries", apiErr.Fields)
	}
	first, ok := apiErr.Fields[0].(map[string]any)
	if !ok || first["field"] != "professional_summary" || first["rule"] != "min" {
		t.Errorf("first field = %v", apiErr.Fields[0])
	}

	res = post(t, srv.URL+"/api/validate/cv", `{"full_name": "Jane", "unknown": 1}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", res.StatusCode)
	}
}

func TestValidateCoverLetter(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	res := post(t, srv.URL+"/api/validate/cover-letter", `{"recipient": "Hiring Manager"}`)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", res.StatusCode)
	}
	if apiErr := decodeError(t, res); apiErr.Message != "Validation Failed" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestRun(t *testing.T) {
	var gotURL string
	var gotVariant types.Variant
	run := func(_ context.Context, url string, v types.Variant) (*pipeline.Result, error) {
		gotURL, gotVariant = url, v
		return &pipeline.Result{Run: types.Run{ID: "run-1", Status: types.RunSucceeded}, Final: "done"}, nil
	}
	srv, _ := newTestServer(t, run, nil)

	res := post(t, srv.URL+"/api/run", `{"url": " https://jobs.example.com/1 "}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if gotURL != "https://jobs.example.com/1" || gotVariant != types.VariantReview {
		t.Errorf("run called with %q, %q", gotURL, gotVariant)
	}
	var out pipeline.Result
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Run.ID != "run-1" || out.Final != "done" {
		t.Errorf("result = %+v", out)
	}

	res = post(t, srv.URL+"/api/run", `{"url": "https://jobs.example.com/1", "variant": "pdf"}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("bad variant status = %d, want 400", res.StatusCode)
	}
}

func TestRun_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", pipeline.ErrRunInProgress, http.StatusConflict},
		{"incomplete posting", fmt.Errorf("job extraction failed: %w", scrape.ErrIncompletePosting), http.StatusUnprocessableEntity},
		{"fetch failure", fmt.Errorf("job extraction failed: %w: job page returned status 404", scrape.ErrFetch), http.StatusBadGateway},
		{"other extraction failure", fmt.Errorf("job extraction failed: rate limiter: context canceled"), http.StatusInternalServerError},
		{"timeout", fmt.Errorf("task write_cv: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"llm failure", fmt.Errorf("task evaluate: model unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(context.Context, string, types.Variant) (*pipeline.Result, error) {
				return &pipeline.Result{Run: types.Run{ID: "run-2"}}, tt.err
			}
			srv, _ := newTestServer(t, run, nil)
			res := post(t, srv.URL+"/api/run", `{"url": "https://jobs.example.com/1", "variant": "render"}`)
			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
			apiErr := decodeError(t, res)
			if len(apiErr.Fields) != 1 {
				t.Errorf("fields = %v, want run id", apiErr.Fields)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	runs := &fakeRuns{runs: []types.Run{{ID: "a"}, {ID: "b"}}}
	srv, _ := newTestServer(t, nil, runs)

	res, err := http.Get(srv.URL + "/api/runs?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var got []types.Run
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || runs.got != 5 {
		t.Errorf("got %d runs with limit %d", len(got), runs.got)
	}

	res2, err := http.Get(srv.URL + "/api/runs?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res2.StatusCode)
	}
}

func TestRuns_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t, nil, &fakeRuns{})

	res, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" {
		t.Errorf("body = %s, want []", raw)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "applycrew_runs_total") {
		t.Errorf("metrics output missing applycrew_runs_total")
	}
}

func TestRecover(t *testing.T) {
	h := RequestID(Recover(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequestID_Propagates(t *testing.T) {
	h := RequestID(func(w http.ResponseWriter, r *http.Request) {})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}
