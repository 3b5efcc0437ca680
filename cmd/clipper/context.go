package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services/drive"
	"clipper/internal/services/objectstore"
	"clipper/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// driveClient returns an authorized Drive client, or nil when no token has
// been stored yet.
func (c *commandContext) driveClient(ctx context.Context) (*drive.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Drive.TokenPath); err != nil {
		return nil, nil
	}
	return drive.NewFromConfig(ctx, cfg.Drive.ClientSecretPath, cfg.Drive.TokenPath)
}

func (c *commandContext) objectStore() (*objectstore.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return objectstore.New(objectstore.Config{
		Endpoint:   cfg.S3.Endpoint,
		Region:     cfg.S3.Region,
		Bucket:     cfg.S3.Bucket,
		Prefix:     cfg.S3.Prefix,
		AccessKey:  cfg.S3.AccessKey,
		SecretKey:  cfg.S3.SecretKey,
		UseSSL:     cfg.S3.UseSSL,
		LinkExpiry: cfg.LinkExpiry(),
	})
}

func (c *commandContext) newSink(cfg *config.Config, logger *slog.Logger) *notifications.Sink {
	return notifications.NewSinkFromConfig(cfg, logger, notifications.WithPreview(workflow.NewPreviewer(cfg, nil)))
}

func closeSink(cfg *config.Config, sink *notifications.Sink, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout())
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		logger.Warn("notifications abandoned at shutdown", logging.Error(err))
	}
	delivered, failed, dropped := sink.Stats()
	logger.Debug("notification sink closed",
		logging.Int64("delivered", delivered),
		logging.Int64("failed", failed),
		logging.Int64("dropped", dropped),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
