package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"

	"github.com/MiteyIronPaw/selfoss/pkg/api"
	"github.com/MiteyIronPaw/selfoss/pkg/api/auth"
	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/lib/log"
	"github.com/MiteyIronPaw/selfoss/pkg/sources"
	"github.com/MiteyIronPaw/selfoss/pkg/storage/postgres"
)

type Config struct {
	// Storage selects where source records live: the local database, an
	// in-process map (tests, ephemeral setups) or a remote host
	// application exposing the configuration-store API.
	Storage         string `env:"STORAGE_BACKEND,default=postgres" validate:"oneof=postgres memory remote"`
	RemoteStoreURL  string `env:"REMOTE_STORE_URL,default="`
	RemoteStoreAuth string `env:"REMOTE_STORE_AUTH,default="`

	DB      postgres.Config `env:""`
	API     api.Config      `env:""`
	Auth    auth.Config     `env:""`
	Log     log.Config      `env:""`
	Sources sources.Config  `env:""`
}

func Load() (*Config, error) {
	var cfg Config

	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := lib.ValidateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Storage == "remote" && cfg.RemoteStoreURL == "" {
		return nil, fmt.Errorf("remote storage backend requires REMOTE_STORE_URL")
	}

	return &cfg, nil
}
