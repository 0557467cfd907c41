package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every configuration problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration. It does not require an API key, since
// commands like extract and history never call a model.
func Validate(cfg Config) error {
	if errs := validate(cfg); len(errs) > 0 {
		return errs
	}
	return nil
}

func validate(cfg Config) ValidationErrors {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	switch cfg.LLMProvider {
	case "openai", "gemini":
	default:
		add("LLM_PROVIDER", fmt.Sprintf("unknown provider %q (want openai or gemini)", cfg.LLMProvider))
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		add("LLM_TEMPERATURE", "must be between 0 and 2")
	}
	if !cfg.Variant.Valid() {
		add("VARIANT", fmt.Sprintf("unknown variant %q (want review or render)", cfg.Variant))
	}
	for _, f := range []struct{ name, value string }{
		{"CV_PATH", cfg.CVPath},
		{"COVER_LETTER_PATH", cfg.CoverLetterPath},
		{"OUTPUT_DIR", cfg.OutputDir},
		{"TEMPLATE_DIR", cfg.TemplateDir},
		{"DB_PATH", cfg.DBPath},
	} {
		if strings.TrimSpace(f.value) == "" {
			add(f.name, "required")
		}
	}
	if cfg.FetchTimeout <= 0 {
		add("FETCH_TIMEOUT", "must be positive")
	}
	if cfg.LLMTimeout <= 0 {
		add("LLM_TIMEOUT", "must be positive")
	}
	if cfg.RenderTimeout <= 0 {
		add("RENDER_TIMEOUT", "must be positive")
	}
	if cfg.MaxToolRounds < 1 {
		add("MAX_TOOL_ROUNDS", "must be at least 1")
	}
	if cfg.FetchRate <= 0 {
		add("FETCH_RATE", "must be positive")
	}
	if cfg.CacheTTL < 0 {
		add("CACHE_TTL", "must not be negative")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		add("PORT", "must be between 1 and 65535")
	}
	return errs
}

// RequireAPIKey reports a missing key for the configured provider.
func RequireAPIKey(cfg Config) error {
	if strings.TrimSpace(cfg.APIKey()) == "" {
		return ValidationErrors{{Field: cfg.APIKeyVar(), Message: "required (set it in the environment or with 'applycrew key set')"}}
	}
	return nil
}
