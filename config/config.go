package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"storyforge/models"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the process configuration. Variable names are read without a prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	Port        int         `envconfig:"PORT" default:"8080"`

	// MongoDB. An empty URI sends the storage layer straight to the in-memory fallback.
	MongoDBURI       string        `envconfig:"MONGODB_URI"`
	MongoDBDatabase  string        `envconfig:"MONGODB_DATABASE" default:"storyforge"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`

	// Gemini
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// Comma separated list of CORS origins; empty allows any origin.
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS"`

	// Physical collection names per resource kind
	CollectionCharacters      string `envconfig:"COLLECTION_CHARACTERS" default:"characters"`
	CollectionLocations       string `envconfig:"COLLECTION_LOCATIONS" default:"locations"`
	CollectionThemes          string `envconfig:"COLLECTION_THEMES" default:"themes"`
	CollectionArchetypes      string `envconfig:"COLLECTION_ARCHETYPES" default:"archetypes"`
	CollectionStoryParameters string `envconfig:"COLLECTION_STORY_PARAMETERS" default:"story_parameters"`
	CollectionStories         string `envconfig:"COLLECTION_STORIES" default:"stories"`
	CollectionStoryDrafts     string `envconfig:"COLLECTION_STORY_DRAFTS" default:"story_drafts"`
}

// Load reads an optional .env file and then the process environment.
// It reports whether a .env file was found so the caller can log it.
func Load() (*Config, bool, error) {
	foundEnv := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, foundEnv, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, foundEnv, err
	}
	return &cfg, foundEnv, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvTesting, EnvProduction:
	default:
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}
	if c.DBConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive, got %s", c.DBConnectTimeout)
	}
	if c.MongoDBDatabase == "" {
		return fmt.Errorf("MONGODB_DATABASE must not be empty")
	}
	seen := make(map[string]models.Kind)
	for _, kind := range models.AllKinds {
		name := c.Collections()[kind]
		if name == "" {
			return fmt.Errorf("collection name for %s must not be empty", kind)
		}
		if other, ok := seen[name]; ok {
			return fmt.Errorf("collection %q configured for both %s and %s", name, other, kind)
		}
		seen[name] = kind
	}
	return nil
}

// NewForTesting returns a config with defaults and no database endpoint.
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		Port:                      8080,
		MongoDBDatabase:           "storyforge_test",
		DBConnectTimeout:          time.Second,
		GeminiModel:               "gemini-2.5-flash",
		CollectionCharacters:      "characters",
		CollectionLocations:       "locations",
		CollectionThemes:          "themes",
		CollectionArchetypes:      "archetypes",
		CollectionStoryParameters: "story_parameters",
		CollectionStories:         "stories",
		CollectionStoryDrafts:     "story_drafts",
	}
}

// Collections maps each resource kind to its configured collection name.
func (c *Config) Collections() models.Collections {
	return models.Collections{
		models.KindCharacters:      c.CollectionCharacters,
		models.KindLocations:       c.CollectionLocations,
		models.KindThemes:          c.CollectionThemes,
		models.KindArchetypes:      c.CollectionArchetypes,
		models.KindStoryParameters: c.CollectionStoryParameters,
		models.KindStories:         c.CollectionStories,
		models.KindStoryDrafts:     c.CollectionStoryDrafts,
	}
}

// Origins splits AllowedOrigins into a list. An empty setting yields "*".
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// HTTPAddr returns the HTTP listen address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
