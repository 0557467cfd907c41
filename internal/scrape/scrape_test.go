package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

const greenhousePage = `<html><head><title>Careers</title>
<script>var tracking = "Senior Go Engineer";</script>
</head><body>
<h1 class="app-title">Senior Go Engineer</h1>
<h1 class="job-title">Wrong Title</h1>
<span class="company-name">Acme&nbsp;Corp</span>
<div class="location">Remote,   EU</div>
<div id="content">
  <p>We build   payment rails.</p>
  <ul><li>Design services</li><li>Own on-call</li></ul>
</div>
</body></html>`

const workdayPage = `<html><body>
<div data-automation-id="jobPostingHeader">Platform Engineer</div>
<div data-automation-id="company">Globex</div>
<div data-automation-id="locations">Berlin</div>
<section class="job-details"><p>Kubernetes all day.</p></section>
</body></html>`

const barePage = `<html><body><p>Nothing to see</p></body></html>`

const largestBlockPage = `<html><body>
<h1>Data Engineer</h1>
<div class="sidebar">Apply now</div>
<article><p>Build pipelines in Go and SQL.</p><p>Work with analysts across the company every week.</p></article>
</body></html>`

func newTestScraper(strict bool) *Scraper {
	return New(Config{Timeout: 5 * time.Second, RatePerS: 100, Strict: strict}, nil)
}

func TestParse_FirstMatchWins(t *testing.T) {
	p, err := newTestScraper(false).Parse(strings.NewReader(greenhousePage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Title != "Senior Go Engineer" {
		t.Errorf("expected first selector title, got %q", p.Title)
	}
	if p.Company != "Acme Corp" {
		t.Errorf("expected normalised company, got %q", p.Company)
	}
	if p.Location != "Remote, EU" {
		t.Errorf("expected collapsed location, got %q", p.Location)
	}
	if !strings.Contains(p.Description, "We build payment rails.") {
		t.Errorf("description missing first paragraph: %q", p.Description)
	}
	if !strings.Contains(p.Description, "Design services\n") {
		t.Errorf("description should keep list items on separate lines: %q", p.Description)
	}
}

func TestParse_LaterSelectors(t *testing.T) {
	p, err := newTestScraper(false).Parse(strings.NewReader(workdayPage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := types.JobPosting{
		Title:       "Platform Engineer",
		Company:     "Globex",
		Location:    "Berlin",
		Description: "Kubernetes all day.",
	}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestParse_AllPlaceholders(t *testing.T) {
	p, err := newTestScraper(false).Parse(strings.NewReader(`<html><body></body></html>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != TitleNotFound || p.Company != CompanyNotFound ||
		p.Location != LocationNotFound || p.Description != DescriptionNotFound {
		t.Errorf("expected all placeholders, got %+v", p)
	}
	for _, v := range []string{p.Title, p.Company, p.Location, p.Description} {
		if !IsPlaceholder(v) {
			t.Errorf("%q should be a placeholder", v)
		}
	}
}

func TestParse_LargestBlockFallback(t *testing.T) {
	p, err := newTestScraper(false).Parse(strings.NewReader(largestBlockPage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "Data Engineer" {
		t.Errorf("expected generic h1 title, got %q", p.Title)
	}
	if !strings.HasPrefix(p.Description, "Build pipelines in Go and SQL.") {
		t.Errorf("expected article text as description, got %q", p.Description)
	}
	if strings.Contains(p.Description, "Apply now") {
		t.Errorf("description should not include the sidebar: %q", p.Description)
	}
}

func TestFetch_SendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(greenhousePage))
	}))
	defer server.Close()

	p, err := newTestScraper(false).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != UserAgent {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
	if p.URL != server.URL {
		t.Errorf("expected URL to be recorded, got %q", p.URL)
	}
}

func TestFetch_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestScraper(false).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch for 404, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestFetch_UnreachableHost(t *testing.T) {
	_, err := newTestScraper(false).Fetch(context.Background(), "http://127.0.0.1:1/job")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetch_StrictMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(barePage))
	}))
	defer server.Close()

	p, err := newTestScraper(false).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("lossy mode should not fail: %v", err)
	}
	if p.Title != TitleNotFound {
		t.Errorf("expected title placeholder, got %q", p.Title)
	}

	_, err = newTestScraper(true).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrIncompletePosting) {
		t.Fatalf("expected ErrIncompletePosting, got %v", err)
	}
}

type memCache struct {
	mu   sync.Mutex
	m    map[string]types.JobPosting
	puts int
}

func (c *memCache) Get(_ context.Context, url string) (types.JobPosting, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.m[url]
	return p, ok, nil
}

func (c *memCache) Put(_ context.Context, url string, p types.JobPosting) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[url] = p
	c.puts++
	return nil
}

func TestFetch_UsesCache(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(workdayPage))
	}))
	defer server.Close()

	cache := &memCache{m: map[string]types.JobPosting{}}
	s := New(Config{RatePerS: 100}, cache)
	for i := 0; i < 2; i++ {
		p, err := s.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Title != "Platform Engineer" {
			t.Errorf("unexpected title %q", p.Title)
		}
	}
	if hits != 1 {
		t.Errorf("expected one upstream request, got %d", hits)
	}
	if cache.puts != 1 {
		t.Errorf("expected one cache write, got %d", cache.puts)
	}
}

func TestHostLimiter_ReusesPerHost(t *testing.T) {
	hl := NewHostLimiter(100, 1)
	a := hl.limiterFor("a.example")
	if hl.limiterFor("a.example") != a {
		t.Error("expected the same limiter for the same host")
	}
	if hl.limiterFor("b.example") == a {
		t.Error("expected a distinct limiter per host")
	}
	if err := hl.WaitURL(context.Background(), "::not a url"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
