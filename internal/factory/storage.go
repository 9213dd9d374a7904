// Package factory turns configuration into concrete store, index, embedder
// and extractor instances.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/config"
	"github.com/mnemolab/mnemo/internal/metadatalog"
	logpg "github.com/mnemolab/mnemo/internal/metadatalog/postgres"
	logsqlite "github.com/mnemolab/mnemo/internal/metadatalog/sqlite"
)

// NewMetadataLog returns the metadata log selected by cfg.DBDriver. The
// schema is created during construction; a failure here is fatal since
// nothing works without the log.
func NewMetadataLog(ctx context.Context, cfg *config.Config, log zerolog.Logger) (metadatalog.Log, error) {
	switch cfg.DBDriver {
	case "sqlite":
		s, err := logsqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite metadata log: %w", err)
		}
		log.Debug().Str("path", cfg.SQLitePath).Msg("sqlite metadata log ready")
		return s, nil
	case "postgres":
		cctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
		defer cancel()
		s, err := logpg.New(cctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres metadata log: %w", err)
		}
		log.Debug().Msg("postgres metadata log ready")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
