package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config carries everything the pipelines and the web server need. Values
// come from environment variables; a .env file in the working directory is
// honored if present (loaded by the command layer before Load runs).
type Config struct {
	AWS      AWSConfig
	Store    StoreConfig
	Identify IdentifyConfig
}

type AWSConfig struct {
	Region     string `env:"AWS_REGION" envDefault:"us-east-1"`
	Collection string `env:"SNAPMATCH_COLLECTION" envDefault:"snapmatch"`
}

type StoreConfig struct {
	// Path to the SQLite database. Created on first use.
	Path string `env:"SNAPMATCH_DB" envDefault:"snapmatch.db"`
	// Optional JSON-lines file recording every search and its results.
	AuditLog string `env:"SNAPMATCH_AUDIT_LOG"`
}

// IdentifyConfig tunes the per-face filters of the identification pipeline.
type IdentifyConfig struct {
	// Detections below this confidence (0-100) are skipped.
	MinConfidence float64 `env:"SNAPMATCH_MIN_CONFIDENCE" envDefault:"90"`
	// Detections narrower than this fraction of the photo width are skipped.
	MinFaceWidth float64 `env:"SNAPMATCH_MIN_FACE_WIDTH" envDefault:"0.02"`
	// At most this many faces are matched per photo, largest first.
	MaxFacesPerPhoto int `env:"SNAPMATCH_MAX_FACES" envDefault:"20"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(&cfg.AWS); err != nil {
		return nil, fmt.Errorf("failed to parse AWS config: %w", err)
	}
	if err := env.Parse(&cfg.Store); err != nil {
		return nil, fmt.Errorf("failed to parse store config: %w", err)
	}
	if err := env.Parse(&cfg.Identify); err != nil {
		return nil, fmt.Errorf("failed to parse identify config: %w", err)
	}
	return cfg, nil
}
