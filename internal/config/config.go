// Package config provides Viper-based configuration loading for the narrator backend.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/chronicle/internal/game/tier"
)

// Environments accepted in server.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// LLM providers accepted in llm.provider.
const (
	ProviderAnthropic = "anthropic"
	// ProviderEcho answers every turn with the player's own input and no state
	// changes. It needs no credentials.
	ProviderEcho = "echo"
)

// ServerConfig holds top-level process settings.
type ServerConfig struct {
	// Environment is "development" or "production". Production hides internal
	// error text from turn responses.
	Environment string `mapstructure:"environment"`
	// ShutdownTimeout bounds how long services get to stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IsProduction reports whether the server runs in production.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == EnvProduction
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// LLMConfig holds narrator model settings.
type LLMConfig struct {
	// Provider is "anthropic" or "echo".
	Provider string `mapstructure:"provider"`
	// Model is the provider model identifier.
	Model string `mapstructure:"model"`
	// APIKey authenticates against the provider. Required for anthropic.
	APIKey string `mapstructure:"api_key"`
	// MaxTokens caps the length of one narrator reply.
	MaxTokens int64 `mapstructure:"max_tokens"`
	// Timeout bounds one narrator call. Zero disables the bound.
	Timeout time.Duration `mapstructure:"timeout"`
}

// GameConfig holds turn pipeline settings.
type GameConfig struct {
	// Tier holds the divine and multiverse upgrade gates.
	Tier tier.Thresholds `mapstructure:"tier"`
	// NPCTemplateDir holds NPC template YAML files. Empty disables preload.
	NPCTemplateDir string `mapstructure:"npc_template_dir"`
	// RulesDir holds global Lua discrepancy rules; each subdirectory holds the
	// rules for the campaign of the same ID. Empty disables scripted rules.
	RulesDir string `mapstructure:"rules_dir"`
	// RuleInstructionLimit caps VM instructions per scripted rule call.
	RuleInstructionLimit int `mapstructure:"rule_instruction_limit"`
	// NumericTablePath overrides the built-in numeric coercion table.
	NumericTablePath string `mapstructure:"numeric_table_path"`
	// StrictHealth rejects hp above hp_max on incoming character records instead of clamping.
	StrictHealth bool `mapstructure:"strict_health"`
	// StoryContextEntries is how many recent story entries the narrator sees.
	StoryContextEntries int `mapstructure:"story_context_entries"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Game     GameConfig     `mapstructure:"game"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLLM(c.LLM); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	validEnvs := map[string]bool{EnvDevelopment: true, EnvProduction: true}
	if !validEnvs[s.Environment] {
		return fmt.Errorf("server.environment must be one of [development, production], got %q", s.Environment)
	}
	if s.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateLLM(l LLMConfig) error {
	var errs []string
	switch l.Provider {
	case ProviderAnthropic:
		if l.APIKey == "" {
			errs = append(errs, "llm.api_key must not be empty for provider anthropic")
		}
		if l.Model == "" {
			errs = append(errs, "llm.model must not be empty for provider anthropic")
		}
	case ProviderEcho:
	default:
		errs = append(errs, fmt.Sprintf("llm.provider must be one of [anthropic, echo], got %q", l.Provider))
	}
	if l.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("llm.max_tokens must be >= 1, got %d", l.MaxTokens))
	}
	if l.Timeout < 0 {
		errs = append(errs, "llm.timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.Tier.DivinePotential < 1 {
		errs = append(errs, fmt.Sprintf("game.tier.divine_potential must be >= 1, got %d", g.Tier.DivinePotential))
	}
	if g.Tier.DivineLevel < 1 {
		errs = append(errs, fmt.Sprintf("game.tier.divine_level must be >= 1, got %d", g.Tier.DivineLevel))
	}
	if g.Tier.UniverseControl < 1 {
		errs = append(errs, fmt.Sprintf("game.tier.universe_control must be >= 1, got %d", g.Tier.UniverseControl))
	}
	if g.RuleInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("game.rule_instruction_limit must be >= 0, got %d", g.RuleInstructionLimit))
	}
	if g.StoryContextEntries < 0 {
		errs = append(errs, fmt.Sprintf("game.story_context_entries must be >= 0, got %d", g.StoryContextEntries))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with CHRONICLE_ prefix
	v.SetEnvPrefix("CHRONICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewViper returns a Viper instance carrying only the built-in defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chronicle")
	v.SetDefault("database.password", "chronicle")
	v.SetDefault("database.name", "chronicle")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("llm.provider", ProviderEcho)
	v.SetDefault("llm.model", "claude-sonnet-4-5")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "2m")

	defaults := tier.DefaultThresholds()
	v.SetDefault("game.tier.divine_potential", defaults.DivinePotential)
	v.SetDefault("game.tier.divine_level", defaults.DivineLevel)
	v.SetDefault("game.tier.universe_control", defaults.UniverseControl)
	v.SetDefault("game.rule_instruction_limit", 100000)
	v.SetDefault("game.story_context_entries", 20)
}
