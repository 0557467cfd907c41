package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

const (
	DefaultEnvFile  = ".env"
	DefaultYAMLFile = "applycrew.yaml"
)

type Config struct {
	LLMProvider    string  `yaml:"llm_provider"`
	LLMModel       string  `yaml:"llm_model"`
	LLMTemperature float64 `yaml:"llm_temperature"`
	OpenAIBaseURL  string  `yaml:"openai_base_url"`

	// Secrets never come from the YAML file.
	OpenAIAPIKey    string `yaml:"-"`
	GeminiKey       string `yaml:"-"`
	DiscordBotToken string `yaml:"-"`

	CVPath          string        `yaml:"cv_path"`
	CoverLetterPath string        `yaml:"cover_letter_path"`
	OutputDir       string        `yaml:"output_dir"`
	TemplateDir     string        `yaml:"template_dir"`
	Variant         types.Variant `yaml:"variant"`

	StrictExtraction bool          `yaml:"strict_extraction"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	LLMTimeout       time.Duration `yaml:"llm_timeout"`
	RenderTimeout    time.Duration `yaml:"render_timeout"`
	MaxToolRounds    int           `yaml:"max_tool_rounds"`
	FetchRate        float64       `yaml:"fetch_rate"`

	DBPath     string        `yaml:"db_path"`
	RedisAddr  string        `yaml:"redis_addr"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	Port       int           `yaml:"port"`
	LogLevel   string        `yaml:"log_level"`
	ChromePath string        `yaml:"chrome_path"`
}

func Defaults() Config {
	return Config{
		LLMProvider:     "openai",
		LLMTemperature:  0.7,
		CVPath:          "CV.txt",
		CoverLetterPath: "Cover_Letter.txt",
		OutputDir:       "output",
		TemplateDir:     "templates",
		Variant:         types.VariantReview,
		FetchTimeout:    30 * time.Second,
		LLMTimeout:      2 * time.Minute,
		RenderTimeout:   time.Minute,
		MaxToolRounds:   15,
		FetchRate:       1,
		DBPath:          "data/applycrew.db",
		CacheTTL:        24 * time.Hour,
		Port:            8080,
		LogLevel:        "info",
	}
}

type Options struct {
	EnvFile  string
	YAMLFile string
	// Getenv defaults to os.LookupEnv.
	Getenv func(string) (string, bool)
}

// Load builds the configuration from defaults, the YAML file, the .env file
// and the process environment, each overriding the previous. Missing files
// are skipped. The result is validated.
func Load(opts Options) (Config, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}
	if opts.YAMLFile == "" {
		opts.YAMLFile = DefaultYAMLFile
	}
	if opts.Getenv == nil {
		opts.Getenv = os.LookupEnv
	}

	cfg := Defaults()
	if b, err := os.ReadFile(opts.YAMLFile); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", opts.YAMLFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", opts.YAMLFile, err)
	}

	dotenv, err := godotenv.Read(opts.EnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", opts.EnvFile, err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := opts.Getenv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	errs := applyEnv(&cfg, lookup)
	errs = append(errs, validate(cfg)...)
	if len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) ValidationErrors {
	var errs ValidationErrors
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("invalid duration: %v", err)})
			return
		}
		*dst = d
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: "must be an integer"})
			return
		}
		*dst = n
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: "must be a number"})
			return
		}
		*dst = f
	}

	str("LLM_PROVIDER", &cfg.LLMProvider)
	str("LLM_MODEL", &cfg.LLMModel)
	float("LLM_TEMPERATURE", &cfg.LLMTemperature)
	str("OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	str("GEMINI_KEY", &cfg.GeminiKey)
	str("CV_PATH", &cfg.CVPath)
	str("COVER_LETTER_PATH", &cfg.CoverLetterPath)
	str("OUTPUT_DIR", &cfg.OutputDir)
	str("TEMPLATE_DIR", &cfg.TemplateDir)
	var variant string
	str("VARIANT", &variant)
	if variant != "" {
		cfg.Variant = types.Variant(strings.ToLower(variant))
	}
	if v, ok := lookup("STRICT_EXTRACTION"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "STRICT_EXTRACTION", Message: "must be a boolean"})
		} else {
			cfg.StrictExtraction = b
		}
	}
	dur("FETCH_TIMEOUT", &cfg.FetchTimeout)
	dur("LLM_TIMEOUT", &cfg.LLMTimeout)
	dur("RENDER_TIMEOUT", &cfg.RenderTimeout)
	integer("MAX_TOOL_ROUNDS", &cfg.MaxToolRounds)
	float("FETCH_RATE", &cfg.FetchRate)
	str("DB_PATH", &cfg.DBPath)
	str("REDIS_ADDR", &cfg.RedisAddr)
	dur("CACHE_TTL", &cfg.CacheTTL)
	integer("PORT", &cfg.Port)
	str("DISCORD_BOT_TOKEN", &cfg.DiscordBotToken)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("CHROME_PATH", &cfg.ChromePath)
	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)
	return errs
}

// APIKey returns the key of the configured provider, if any.
func (c Config) APIKey() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiKey
	}
	return c.OpenAIAPIKey
}

// APIKeyVar names the environment variable holding the provider's key.
func (c Config) APIKeyVar() string {
	if c.LLMProvider == "gemini" {
		return "GEMINI_KEY"
	}
	return "OPENAI_API_KEY"
}

func (c *Config) SetAPIKey(key string) {
	if c.LLMProvider == "gemini" {
		c.GeminiKey = key
		return
	}
	c.OpenAIAPIKey = key
}
