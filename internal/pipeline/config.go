package pipeline

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the runtime tuning of a pipeline run, parsed from
// ASSAYSPEC_-prefixed environment variables. Everything has a default;
// the environment only overrides.
type Config struct {
	UniProtBaseURL string        `env:"UNIPROT_BASE_URL" envDefault:"https://rest.uniprot.org/uniprotkb"`
	OLSBaseURL     string        `env:"OLS_BASE_URL" envDefault:"https://www.ebi.ac.uk/ols4/api/ontologies"`
	Workers        int           `env:"WORKERS" envDefault:"4"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	RefreshTerms   bool          `env:"REFRESH_TERMS" envDefault:"false"`
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "ASSAYSPEC_"}); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}
