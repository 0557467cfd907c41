package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// GreenhousePosting is a job page laid out like a Greenhouse board.
const GreenhousePosting = `<!DOCTYPE html>
<html><head><title>Job Application for Senior Go Engineer at Acme Corp</title>
<script>window.dataLayer = [];</script>
<style>h1 { color: red; }</style>
</head><body>
<div id="app_body">
  <h1 class="app-title">Senior Go Engineer</h1>
  <span class="company-name">Acme Corp</span>
  <div class="location">Remote (EU)</div>
  <div id="content">
    <p>Acme builds payment infrastructure for small businesses.</p>
    <h3>Responsibilities</h3>
    <ul><li>Design and operate Go services</li><li>Mentor engineers</li></ul>
    <h3>Qualifications</h3>
    <ul><li>5+ years of Go</li><li>Experience with PostgreSQL</li></ul>
  </div>
</div>
</body></html>`

// ServePage starts a test server answering every request with html.
func ServePage(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}
