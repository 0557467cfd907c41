package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/drukpa1455/crewai-job/internal/cache"
	"github.com/drukpa1455/crewai-job/internal/config"
	"github.com/drukpa1455/crewai-job/internal/llm"
	"github.com/drukpa1455/crewai-job/internal/metrics"
	"github.com/drukpa1455/crewai-job/internal/pipeline"
	"github.com/drukpa1455/crewai-job/internal/render"
	"github.com/drukpa1455/crewai-job/internal/scrape"
	"github.com/drukpa1455/crewai-job/internal/secrets"
	"github.com/drukpa1455/crewai-job/internal/store"
	"github.com/drukpa1455/crewai-job/pkg/logger"
)

// app holds the long-lived pieces every command shares.
type app struct {
	cfg      config.Config
	scraper  *scrape.Scraper
	cache    *cache.Redis
	db       *store.DB
	registry *prometheus.Registry
	sink     metrics.Sink
	llm      llm.Client
}

func loadConfig(override func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(config.Options{EnvFile: envFile, YAMLFile: configFile})
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if override != nil {
		override(&cfg)
		if err := config.Validate(cfg); err != nil {
			return cfg, err
		}
	}
	logger.Setup(cfg.LogLevel)
	return cfg, nil
}

// newApp wires the scraper, optional posting cache, run history and
// metrics. The LLM client is built separately because only some commands
// need it.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.sink = metrics.NewPrometheusSink(a.registry)

	var postings scrape.Cache
	if cfg.RedisAddr != "" {
		c, err := cache.Dial(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			slog.Warn("Posting cache unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		} else {
			a.cache = c
			postings = c
		}
	}
	a.scraper = scrape.New(scrape.Config{
		Timeout:  cfg.FetchTimeout,
		RatePerS: cfg.FetchRate,
		Strict:   cfg.StrictExtraction,
	}, postings)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open run history: %w", err)
	}
	a.db = db
	return a, nil
}

func (a *app) Close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// llmClient resolves the provider key from the environment or the keychain.
func (a *app) llmClient(ctx context.Context) (llm.Client, error) {
	if a.cfg.APIKey() == "" {
		key, err := secrets.APIKey(a.cfg.LLMProvider, "")
		if err != nil && !errors.Is(err, secrets.ErrNotFound) {
			slog.Warn("Keychain lookup failed", "error", err)
		}
		a.cfg.SetAPIKey(key)
	}
	if err := config.RequireAPIKey(a.cfg); err != nil {
		return nil, err
	}
	client, err := llm.New(ctx, llm.Options{
		Provider:    a.cfg.LLMProvider,
		Model:       a.cfg.LLMModel,
		Temperature: a.cfg.LLMTemperature,
		APIKey:      a.cfg.APIKey(),
		BaseURL:     a.cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("LLM client ready", "provider", client.Name(), "model", a.cfg.LLMModel)
	a.llm = client
	return client, nil
}

func (a *app) renderer() *render.Renderer {
	return render.New(a.cfg.TemplateDir, a.cfg.OutputDir, render.NewChrome(a.cfg.ChromePath), a.cfg.RenderTimeout)
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	client, err := a.llmClient(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		CVPath:          a.cfg.CVPath,
		CoverLetterPath: a.cfg.CoverLetterPath,
		OutputDir:       a.cfg.OutputDir,
		Variant:         a.cfg.Variant,
		MaxToolRounds:   a.cfg.MaxToolRounds,
		LLMTimeout:      a.cfg.LLMTimeout,
	}, client, a.scraper, a.renderer(),
		pipeline.WithStore(a.db),
		pipeline.WithMetrics(a.sink),
	), nil
}
