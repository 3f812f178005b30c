// Package config loads application configuration from the environment.
//
// Configuration Loading Order:
// 1. Load from .env file (if present)
// 2. Read environment variables
// Values are validated once at construction; callers never see a Config
// that failed Validate().
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/joho/godotenv"
)

// Environment selects the base URL the signed HTTP client targets.
type Environment string

const (
	EnvironmentDemo Environment = "demo"
	EnvironmentProd Environment = "prod"
)

// SynthesizerBackend selects which Synthesizer implementation cmd/marketedged
// wires up.
type SynthesizerBackend string

const (
	SynthesizerMock      SynthesizerBackend = "mock"
	SynthesizerProviderA SynthesizerBackend = "provider-a"
	SynthesizerProviderB SynthesizerBackend = "provider-b"
	SynthesizerLocal     SynthesizerBackend = "local"
)

// Config holds everything the §6 Environment inputs table recognizes.
type Config struct {
	Environment        Environment
	KeyID              string
	PrivateKeyPath     string
	PrivateKeyB64      string
	ResearchAPIKey     string
	SynthesizerBackend SynthesizerBackend
	RunLiveAPI         bool
	LogLevel           string
	LogPretty          bool
	DataDir            string
}

// Load reads .env (if present) then the process environment, and validates
// the result. dataDirOverride lets cmd/ wiring pass a CLI flag ahead of the
// MARKETEDGE_DATA_DIR variable.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("MARKETEDGE_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create data dir: %w", err)
	}

	cfg := &Config{
		Environment:        Environment(getEnv("ENVIRONMENT", "demo")),
		KeyID:              getEnv("KEY_ID", ""),
		PrivateKeyPath:     getEnv("PRIVATE_KEY_PATH", ""),
		PrivateKeyB64:      getEnv("PRIVATE_KEY_B64", ""),
		ResearchAPIKey:     getEnv("RESEARCH_API_KEY", ""),
		SynthesizerBackend: SynthesizerBackend(getEnv("SYNTHESIZER_BACKEND", "mock")),
		RunLiveAPI:         getEnvAsBool("RUN_LIVE_API", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
		DataDir:            absDataDir,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first field that violates §6's recognized values.
// Construction never panics on bad input; callers get a domain.ValidationError.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvironmentDemo, EnvironmentProd:
	default:
		return &domain.ValidationError{Field: "ENVIRONMENT", Message: fmt.Sprintf("must be demo or prod, got %q", c.Environment)}
	}

	switch c.SynthesizerBackend {
	case SynthesizerMock, SynthesizerProviderA, SynthesizerProviderB, SynthesizerLocal:
	default:
		return &domain.ValidationError{Field: "SYNTHESIZER_BACKEND", Message: fmt.Sprintf("unrecognized backend %q", c.SynthesizerBackend)}
	}

	if c.KeyID != "" {
		if c.PrivateKeyPath == "" && c.PrivateKeyB64 == "" {
			return &domain.ValidationError{Field: "PRIVATE_KEY_PATH", Message: "KEY_ID set but neither PRIVATE_KEY_PATH nor PRIVATE_KEY_B64 provided"}
		}
		if c.PrivateKeyPath != "" && c.PrivateKeyB64 != "" {
			return &domain.ValidationError{Field: "PRIVATE_KEY_PATH", Message: "PRIVATE_KEY_PATH and PRIVATE_KEY_B64 are mutually exclusive"}
		}
	}

	return nil
}

// Authenticated reports whether enough credentials are present to build the
// signed (as opposed to public-only) HTTP client.
func (c *Config) Authenticated() bool {
	return c.KeyID != "" && (c.PrivateKeyPath != "" || c.PrivateKeyB64 != "")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return defaultValue
	}
}
