package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"liteq/internal/config"
	"liteq/internal/logging"
	"liteq/internal/queue"
)

type commandContext struct {
	configFlag string
	dbFlag     string
	memoryFlag bool
	queueFlag  string
	jsonFlag   bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if c.dbFlag != "" {
			cfg.Store.DatabasePath = c.dbFlag
			cfg.Store.InMemory = false
		}
		if c.memoryFlag {
			cfg.Store.InMemory = true
			cfg.Store.DatabasePath = ""
		}
		if c.queueFlag != "" {
			cfg.Queue.Namespace = c.queueFlag
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		logger, _ := logging.New(os.Stderr, logging.Options{})
		return logger
	}
	logger, err := logging.New(os.Stderr, logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		logger, _ = logging.New(os.Stderr, logging.Options{})
	}
	return logger
}

// withQueue opens the store, binds the configured namespace, runs fn, and
// closes the store. Every command invocation holds the store only for its
// own duration so other processes sharing the database are not starved.
func (c *commandContext) withQueue(ctx context.Context, fn func(*queue.Queue) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := queue.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := store.Queue(ctx, cfg.Queue.Namespace, cfg.Queue.MaxSize)
	if err != nil {
		return err
	}
	return fn(q)
}
