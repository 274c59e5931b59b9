package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if cfg.SlackBotToken != "xoxb-test" {
		t.Fatalf("unexpected slack bot token: %q", cfg.SlackBotToken)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected provider: %q", cfg.LLMProvider)
	}
	if cfg.DBPath != "./accidentbot.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.APIBaseURL != "http://localhost:8000/api/v1" {
		t.Fatalf("unexpected api base url default: %q", cfg.APIBaseURL)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Fatalf("unexpected session ttl default: %s", cfg.SessionTTL())
	}
	if cfg.SessionSweepSchedule != "@every 10m" {
		t.Fatalf("unexpected sweep schedule default: %q", cfg.SessionSweepSchedule)
	}
	if cfg.HistoryMaxTurns != 40 {
		t.Fatalf("unexpected history max turns default: %d", cfg.HistoryMaxTurns)
	}
	if cfg.SubmitRetries() != 1 {
		t.Fatalf("unexpected submit retries default: %d", cfg.SubmitRetries())
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
slack_bot_token: "yaml-bot"
slack_app_token: "yaml-app"
llm_provider: "anthropic"
anthropic_api_key: "yaml-anthropic"
timezone: "America/Bogota"
db_path: "/tmp/yaml.db"
api_base_url: "http://backend:8000/api/v1/"
external_http_timeout_seconds: 75
submit_retry_limit: -1
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("EXTERNAL_HTTP_TIMEOUT_SECONDS", "120")

	cfg := LoadConfig()

	if cfg.SlackBotToken != "yaml-bot" {
		t.Fatalf("expected slack token from yaml, got %q", cfg.SlackBotToken)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected provider from env override, got %q", cfg.LLMProvider)
	}
	if cfg.OpenAIAPIKey != "sk-env" {
		t.Fatalf("expected openai key from env override")
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.APIBaseURL != "http://backend:8000/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.ExternalHTTPTimeoutSeconds != 120 {
		t.Fatalf("expected external HTTP timeout from env override, got %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.Location == nil || cfg.Location.String() != "America/Bogota" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.SubmitRetries() != 0 {
		t.Fatalf("expected submit_retry_limit -1 to disable retries, got %d", cfg.SubmitRetries())
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("ACCIDENTBOT_DOTENV_PROBE=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing-config.yaml"))
	setMinimalValidConfigEnv(t)
	t.Setenv("DOTENV_PATH", envPath)
	t.Cleanup(func() { _ = os.Unsetenv("ACCIDENTBOT_DOTENV_PROBE") })

	LoadConfig()

	if got := os.Getenv("ACCIDENTBOT_DOTENV_PROBE"); got != "from-dotenv" {
		t.Fatalf("expected .env value to be loaded, got %q", got)
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("AB_TEST_STR", "value")
	envOverride(&s, "AB_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	empty := "initial"
	t.Setenv("AB_TEST_EMPTY", "")
	envOverrideAllowEmpty(&empty, "AB_TEST_EMPTY")
	if empty != "" {
		t.Fatalf("envOverrideAllowEmpty failed, got %q", empty)
	}

	i := 1
	t.Setenv("AB_TEST_INT", "42")
	envOverrideInt(&i, "AB_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, spec := range []string{"@every 10m", "*/5 * * * *", "@hourly"} {
		if err := validateSchedule(spec); err != nil {
			t.Fatalf("validateSchedule(%q) returned error: %v", spec, err)
		}
	}
	if err := validateSchedule("every ten minutes"); err == nil {
		t.Fatal("expected validateSchedule to reject malformed spec")
	}
}

func TestSessionTTLDisabled(t *testing.T) {
	if got := (Config{SessionTTLMinutes: -1}).SessionTTL(); got != 0 {
		t.Fatalf("expected disabled ttl, got %s", got)
	}
}

func TestLoadConfigExplicitZeroSurvivesDefaults(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{
			name: "env",
			env:  map[string]string{"SESSION_TTL_MINUTES": "0", "HISTORY_MAX_TURNS": "0"},
		},
		{
			name: "yaml",
			yaml: "session_ttl_minutes: 0\nhistory_max_turns: 0\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			if tt.yaml != "" {
				if err := os.WriteFile(cfgPath, []byte(tt.yaml), 0o644); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}
			t.Setenv("CONFIG_PATH", cfgPath)
			setMinimalValidConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := LoadConfig()

			if cfg.SessionTTLMinutes != 0 || cfg.SessionTTL() != 0 {
				t.Fatalf("expected session expiry disabled, got %d minutes", cfg.SessionTTLMinutes)
			}
			if cfg.HistoryMaxTurns != 0 {
				t.Fatalf("expected unbounded history, got %d turns", cfg.HistoryMaxTurns)
			}
		})
	}
}

func TestLoadConfigInvalidTimezoneFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_TZ_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		_ = os.Setenv("SLACK_APP_TOKEN", "xapp-test")
		_ = os.Setenv("LLM_PROVIDER", "openai")
		_ = os.Setenv("OPENAI_API_KEY", "sk-test")
		_ = os.Setenv("TIMEZONE", "Mars/Colony")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidTimezoneFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_TZ_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
