package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/drukpa1455/crewai-job/internal/cleaner"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ErrIncompletePosting is returned in strict mode when the title or company
// could not be found.
var ErrIncompletePosting = errors.New("job posting is missing title or company")

// ErrFetch wraps transport failures and error statuses from the job site.
var ErrFetch = errors.New("failed to fetch job page")

// Cache stores scraped postings by URL. Implementations must treat a miss as
// (zero, false, nil).
type Cache interface {
	Get(ctx context.Context, url string) (types.JobPosting, bool, error)
	Put(ctx context.Context, url string, p types.JobPosting) error
}

type Config struct {
	Timeout   time.Duration
	RatePerS  float64
	Strict    bool
	UserAgent string
}

type Scraper struct {
	hc      *http.Client
	rules   Rules
	limiter *HostLimiter
	cache   Cache
	clean   *cleaner.Cleaner
	cfg     Config
}

func New(cfg Config, cache Cache) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerS <= 0 {
		cfg.RatePerS = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}
	return &Scraper{
		hc:      &http.Client{Timeout: cfg.Timeout},
		rules:   DefaultRules(),
		limiter: NewHostLimiter(cfg.RatePerS, 2),
		cache:   cache,
		clean:   cleaner.NewCleaner(),
		cfg:     cfg,
	}
}

// Fetch downloads and parses a job posting. Missing fields come back as
// placeholders unless the scraper is strict.
func (s *Scraper) Fetch(ctx context.Context, url string) (types.JobPosting, error) {
	logger := slog.With("component", "scrape", "operation", "fetch")
	url = strings.TrimSpace(url)
	if url == "" {
		return types.JobPosting{}, fmt.Errorf("job URL is empty")
	}

	if s.cache != nil {
		if p, ok, err := s.cache.Get(ctx, url); err != nil {
			logger.WarnContext(ctx, "posting cache read failed", "error", err)
		} else if ok {
			logger.InfoContext(ctx, "posting served from cache", "url", url)
			return p, s.check(p)
		}
	}

	if err := s.limiter.WaitURL(ctx, url); err != nil {
		return types.JobPosting{}, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.JobPosting{}, fmt.Errorf("invalid job URL: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	res, err := s.hc.Do(req)
	if err != nil {
		return types.JobPosting{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return types.JobPosting{}, fmt.Errorf("%w: job page returned status %d", ErrFetch, res.StatusCode)
	}

	posting, err := s.Parse(res.Body)
	if err != nil {
		return types.JobPosting{}, err
	}
	posting.URL = url
	logger.InfoContext(ctx, "job page parsed",
		"url", url,
		"status", res.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"title", posting.Title,
		"company", posting.Company,
		"description_length", len(posting.Description))

	if s.cache != nil {
		if err := s.cache.Put(ctx, url, posting); err != nil {
			logger.WarnContext(ctx, "posting cache write failed", "error", err)
		}
	}
	return posting, s.check(posting)
}

// Parse runs the selector cascades over an HTML document.
func (s *Scraper) Parse(r io.Reader) (types.JobPosting, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return types.JobPosting{}, fmt.Errorf("failed to parse job page HTML: %w", err)
	}
	s.clean.StripNoise(doc)

	// Description last: block extraction rewrites line breaks in the tree.
	return types.JobPosting{
		Title:       orDefault(s.rules.Title.Extract(doc), TitleNotFound),
		Company:     orDefault(s.rules.Company.Extract(doc), CompanyNotFound),
		Location:    orDefault(s.rules.Location.Extract(doc), LocationNotFound),
		Description: orDefault(s.rules.Description.Extract(doc), DescriptionNotFound),
	}, nil
}

func (s *Scraper) check(p types.JobPosting) error {
	if !s.cfg.Strict {
		return nil
	}
	if p.Title == TitleNotFound || p.Company == CompanyNotFound {
		return fmt.Errorf("%w (title=%q, company=%q)", ErrIncompletePosting, p.Title, p.Company)
	}
	return nil
}

// IsPlaceholder reports whether v is one of the "not found" defaults.
func IsPlaceholder(v string) bool {
	switch v {
	case TitleNotFound, CompanyNotFound, LocationNotFound, DescriptionNotFound:
		return true
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
