package config

import (
	"context"
	"fmt"
	"os"

	"github.com/stratofs/stratofs/internal/logger"
	"github.com/stratofs/stratofs/pkg/filesystem"
	"github.com/stratofs/stratofs/pkg/metrics"
	"github.com/stratofs/stratofs/pkg/registry"
	"github.com/stratofs/stratofs/pkg/services"
)

// NewFileSystem builds a ready-to-use filesystem instance from cfg: it
// applies the logging configuration, registers the configured schemes on a
// private descriptor table and installs scheme defaults, grace period and
// metrics on the instance.
func NewFileSystem(ctx context.Context, cfg *Config) (*filesystem.FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)
	if cfg.Logging.Output == "stdout" {
		logger.SetOutput(os.Stdout)
	} else {
		logger.SetOutput(os.Stderr)
	}

	table := registry.NewTable()
	opts := []filesystem.Option{
		filesystem.WithTable(table),
		filesystem.WithGracePeriod(cfg.Bridge.GracePeriod),
	}

	for i, svc := range cfg.Services {
		if err := services.Register(table, svc.Scheme); err != nil {
			return nil, fmt.Errorf("services[%d]: register scheme %q: %w", i, svc.Scheme, err)
		}
		if len(svc.Options) > 0 {
			opts = append(opts, filesystem.WithSchemeDefaults(svc.Scheme, svc.Options))
		}
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		if m := metrics.NewOperationMetrics(); m != nil {
			opts = append(opts, filesystem.WithMetrics(m))
		}
	}

	logger.Info("filesystem configured: schemes=%v grace_period=%s",
		table.KnownSchemes(), cfg.Bridge.GracePeriod)

	return filesystem.New(opts...), nil
}
