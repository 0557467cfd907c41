package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{
		EnvFile:  filepath.Join(dir, "missing.env"),
		YAMLFile: filepath.Join(dir, "missing.yaml"),
		Getenv:   envMap(nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Variant != types.VariantReview || cfg.OutputDir != "output" || cfg.LLMTemperature != 0.7 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "applycrew.yaml", `
llm_provider: gemini
output_dir: from-yaml
fetch_timeout: 10s
port: 9000
variant: render
`)
	envPath := writeFile(t, dir, ".env", "OUTPUT_DIR=from-dotenv\nGEMINI_KEY=dotenv-key\nPORT=9100\n")

	cfg, err := Load(Options{
		EnvFile:  envPath,
		YAMLFile: yamlPath,
		Getenv:   envMap(map[string]string{"PORT": "9200", "STRICT_EXTRACTION": "true"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLMProvider != "gemini" {
		t.Errorf("expected provider from yaml, got %s", cfg.LLMProvider)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("expected yaml duration, got %v", cfg.FetchTimeout)
	}
	if cfg.OutputDir != "from-dotenv" {
		t.Errorf(".env should override yaml, got %s", cfg.OutputDir)
	}
	if cfg.Port != 9200 {
		t.Errorf("environment should override .env, got %d", cfg.Port)
	}
	if !cfg.StrictExtraction {
		t.Error("expected strict extraction from env")
	}
	if cfg.APIKey() != "dotenv-key" || cfg.APIKeyVar() != "GEMINI_KEY" {
		t.Errorf("unexpected key resolution %q %q", cfg.APIKey(), cfg.APIKeyVar())
	}
	if cfg.Variant != types.VariantRender {
		t.Errorf("expected render variant, got %s", cfg.Variant)
	}
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Options{
		EnvFile:  filepath.Join(dir, "none"),
		YAMLFile: filepath.Join(dir, "none.yaml"),
		Getenv: envMap(map[string]string{
			"LLM_PROVIDER":    "ollama",
			"FETCH_TIMEOUT":   "soon",
			"MAX_TOOL_ROUNDS": "0",
			"VARIANT":         "poster",
		}),
	})
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %T %v", err, err)
	}
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"LLM_PROVIDER", "FETCH_TIMEOUT", "MAX_TOOL_ROUNDS", "VARIANT"} {
		if !fields[f] {
			t.Errorf("expected error for %s in %v", f, errs)
		}
	}
	if !strings.HasPrefix(err.Error(), "4 validation errors:") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "applycrew.yaml", "port: [not, a, number]\n")
	if _, err := Load(Options{YAMLFile: yamlPath, EnvFile: filepath.Join(dir, "none"), Getenv: envMap(nil)}); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := Defaults()
	err := RequireAPIKey(cfg)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected missing OPENAI_API_KEY, got %v", err)
	}
	cfg.SetAPIKey("sk-test")
	if err := RequireAPIKey(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("expected key on openai field")
	}
}

func TestValidationErrors_Format(t *testing.T) {
	single := ValidationErrors{{Field: "PORT", Message: "bad"}}
	if single.Error() != "PORT: bad" {
		t.Errorf("unexpected single format %q", single.Error())
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("expected empty string")
	}
	if Validate(Defaults()) != nil {
		t.Error("defaults must validate")
	}
}
