package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pocketmemory/pkg/logger"
)

const (
	DefaultPort            = "8080"
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxRounds       = 15
	DefaultSuspicionRounds = 5
	DefaultMaxOutputTokens = 750
	// DefaultThinkingBudget turns model thinking off so it cannot eat the
	// output token cap. -1 lets the model decide.
	DefaultThinkingBudget = 0
)

// Resolver holds the tuning knobs of the resolution loop and its model.
type Resolver struct {
	Model           string
	MaxRounds       int
	SuspicionRounds int
	MaxOutputTokens int
	ThinkingBudget  int
}

// resolverFile is the YAML tuning file. Pointers tell an explicit zero from
// an absent key.
type resolverFile struct {
	Model           *string `yaml:"model"`
	MaxRounds       *int    `yaml:"max_rounds"`
	SuspicionRounds *int    `yaml:"suspicion_rounds"`
	MaxOutputTokens *int    `yaml:"max_output_tokens"`
	ThinkingBudget  *int    `yaml:"thinking_budget"`
}

type Config struct {
	DatabaseURL  string
	Port         string
	JWTSecret    string
	GeminiAPIKey string
	LogLevel     string
	Resolver     Resolver
}

// Load reads .env (if present), the process environment and the optional
// YAML tuning file named by RESOLVER_CONFIG.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	cfg := &Config{
		DatabaseURL:  env("DATABASE_URL"),
		Port:         env("PORT"),
		JWTSecret:    env("JWT_SECRET"),
		GeminiAPIKey: env("GEMINI_API_KEY"),
		LogLevel:     env("LOG_LEVEL"),
		Resolver: Resolver{
			Model:           DefaultModel,
			MaxRounds:       DefaultMaxRounds,
			SuspicionRounds: DefaultSuspicionRounds,
			MaxOutputTokens: DefaultMaxOutputTokens,
			ThinkingBudget:  DefaultThinkingBudget,
		},
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = splitDatabaseURL()
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = env("SUPABASE_JWT_SECRET")
	}
	if m := env("RESOLVER_MODEL"); m != "" {
		cfg.Resolver.Model = m
	}

	if path := env("RESOLVER_CONFIG"); path != "" {
		if err := cfg.Resolver.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Resolver.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Resolver) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read resolver config: %w", err)
	}
	var file resolverFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse resolver config %s: %w", path, err)
	}
	if file.Model != nil && *file.Model != "" {
		r.Model = *file.Model
	}
	if file.MaxRounds != nil {
		r.MaxRounds = *file.MaxRounds
	}
	if file.SuspicionRounds != nil {
		r.SuspicionRounds = *file.SuspicionRounds
	}
	if file.MaxOutputTokens != nil {
		r.MaxOutputTokens = *file.MaxOutputTokens
	}
	if file.ThinkingBudget != nil {
		r.ThinkingBudget = *file.ThinkingBudget
	}
	return nil
}

func (r *Resolver) validate() error {
	if r.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be positive, got %d", r.MaxRounds)
	}
	if r.SuspicionRounds < 0 || r.SuspicionRounds >= r.MaxRounds {
		return fmt.Errorf("suspicion_rounds must be in [0, %d), got %d", r.MaxRounds, r.SuspicionRounds)
	}
	if r.MaxOutputTokens < 1 {
		return fmt.Errorf("max_output_tokens must be positive, got %d", r.MaxOutputTokens)
	}
	if r.ThinkingBudget < -1 {
		return fmt.Errorf("thinking_budget must be -1 or more, got %d", r.ThinkingBudget)
	}
	return nil
}

// splitDatabaseURL builds a DSN from the user/password/host/port/dbname variables.
func splitDatabaseURL() string {
	dbHost := env("host")
	if dbHost == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(env("user"), env("password")),
		Host:     dbHost + ":" + envOr("port", "5432"),
		Path:     "/" + env("dbname"),
		RawQuery: "sslmode=require",
	}
	return u.String()
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}
