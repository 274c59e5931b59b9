package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	defaultTimezone             = "America/Bogota"
	defaultSessionTTLMinutes    = 24 * 60
	defaultSessionSweepSchedule = "@every 10m"
	defaultHistoryMaxTurns      = 40
	defaultSubmitRetryLimit     = 1
	defaultLLMMaxTokens         = 1024
)

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	LLMMaxTokens    int    `yaml:"llm_max_tokens"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`

	APIBaseURL                 string `yaml:"api_base_url"`
	APIToken                   string `yaml:"api_token"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`

	DBPath      string `yaml:"db_path"`
	CatalogPath string `yaml:"catalog_path"`
	HealthAddr  string `yaml:"health_addr"`

	Timezone             string `yaml:"timezone"`
	SessionTTLMinutes    int    `yaml:"session_ttl_minutes"`
	SessionSweepSchedule string `yaml:"session_sweep_schedule"`
	HistoryMaxTurns      int    `yaml:"history_max_turns"`
	// -1 in YAML or env means "never retry"; 0 is treated as unset.
	SubmitRetryLimit int `yaml:"submit_retry_limit"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	// Seeded before YAML and env so an explicit 0 survives: no session expiry,
	// unbounded history.
	cfg := Config{
		SessionTTLMinutes: defaultSessionTTLMinutes,
		HistoryMaxTurns:   defaultHistoryMaxTurns,
	}

	envPath := ".env"
	if p := os.Getenv("DOTENV_PATH"); p != "" {
		envPath = p
	}
	if err := godotenv.Load(envPath); err == nil {
		log.Printf("Loaded environment from %s", envPath)
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.APIBaseURL, "API_BASE_URL")
	envOverrideAllowEmpty(&cfg.APIToken, "API_TOKEN")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.CatalogPath, "CATALOG_PATH")
	envOverrideAllowEmpty(&cfg.HealthAddr, "HEALTH_ADDR")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideInt(&cfg.SessionTTLMinutes, "SESSION_TTL_MINUTES")
	envOverride(&cfg.SessionSweepSchedule, "SESSION_SWEEP_SCHEDULE")
	envOverrideInt(&cfg.HistoryMaxTurns, "HISTORY_MAX_TURNS")
	envOverrideInt(&cfg.SubmitRetryLimit, "SUBMIT_RETRY_LIMIT")

	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = defaultLLMMaxTokens
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8000/api/v1"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./accidentbot.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.SessionSweepSchedule == "" {
		cfg.SessionSweepSchedule = defaultSessionSweepSchedule
	}
	if cfg.SubmitRetryLimit == 0 {
		cfg.SubmitRetryLimit = defaultSubmitRetryLimit
	}

	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.LLMMaxTokens < 64 {
		log.Fatalf("invalid llm_max_tokens '%d': must be >= 64", cfg.LLMMaxTokens)
	}
	if cfg.SessionTTLMinutes < 0 {
		log.Fatalf("invalid session_ttl_minutes '%d': must be >= 0", cfg.SessionTTLMinutes)
	}
	if cfg.HistoryMaxTurns < 0 {
		log.Fatalf("invalid history_max_turns '%d': must be >= 0", cfg.HistoryMaxTurns)
	}
	if cfg.SubmitRetryLimit < -1 {
		log.Fatalf("invalid submit_retry_limit '%d': must be >= -1", cfg.SubmitRetryLimit)
	}
	if err := validateSchedule(cfg.SessionSweepSchedule); err != nil {
		log.Fatalf("invalid session_sweep_schedule '%s': %v", cfg.SessionSweepSchedule, err)
	}
	if cfg.CatalogPath != "" {
		if err := validateCatalogPath(cfg.CatalogPath); err != nil {
			log.Fatalf("invalid catalog_path '%s': %v", cfg.CatalogPath, err)
		}
	}

	return cfg
}

// SessionTTL is zero when idle sessions are kept forever.
func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// SubmitRetries is the number of extra submission attempts offered after a failure.
func (c Config) SubmitRetries() int {
	if c.SubmitRetryLimit < 0 {
		return 0
	}
	return c.SubmitRetryLimit
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func validateSchedule(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(spec)
	return err
}

func validateCatalogPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var c struct {
		VictimConditions []struct{} `yaml:"victim_conditions"`
		Gravities        []struct{} `yaml:"gravities"`
		AccidentTypes    []struct{} `yaml:"accident_types"`
		Locations        []struct{} `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse catalog yaml: %w", err)
	}
	return nil
}
