package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fusiondex/internal/analyzer"
	"fusiondex/internal/config"
	"fusiondex/internal/dex"
	"fusiondex/internal/entities"
	"fusiondex/internal/fusioncache"
	"fusiondex/internal/ledger"
	"fusiondex/internal/logging"
	"fusiondex/internal/teams"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	runtimeOnce sync.Once
	runtime     *appRuntime
	runtimeErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.configPath, c.configExists = resolved, exists
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// appRuntime holds the components shared by analyze, teams, cache, and serve.
type appRuntime struct {
	cfg         *config.Config
	logger      *slog.Logger
	cache       *fusioncache.Store
	entities    entities.Directory
	sprites     *dex.SpriteStore
	ledger      *ledger.Store
	coordinator *analyzer.Coordinator
}

func (c *commandContext) ensureRuntime(ctx context.Context) (*appRuntime, error) {
	c.runtimeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.runtimeErr = err
			return
		}
		c.runtime, c.runtimeErr = newAppRuntime(ctx, cfg)
	})
	return c.runtime, c.runtimeErr
}

func (c *commandContext) close() {
	if c.runtime != nil {
		c.runtime.close()
	}
}

func newAppRuntime(ctx context.Context, cfg *config.Config) (*appRuntime, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt := &appRuntime{cfg: cfg, logger: logger}

	rt.cache = fusioncache.Open(ctx, fusioncache.Options{
		Path:         cfg.Paths.CacheFile,
		FallbackPath: cfg.Paths.FallbackCacheFile,
		ReadOnly:     !cfg.PersistCache(),
		Logger:       logger,
	})

	names, err := entities.LoadFile(cfg.Paths.EntitiesFile)
	switch {
	case err == nil:
		rt.entities = names
	case errors.Is(err, fs.ErrNotExist):
		logging.WarnWithContext(logger, "entity metadata not found", "entities_missing",
			logging.String("path", cfg.Paths.EntitiesFile),
			logging.String(logging.FieldErrorHint, "place the entity metadata JSON at paths.entities_file"),
			logging.String(logging.FieldImpact, "ids are not validated and are shown without names"))
	default:
		return nil, fmt.Errorf("load entities: %w", err)
	}

	rt.sprites = dex.NewSpriteStore(dex.SpriteOptions{
		Dir:       cfg.Paths.SpritesDir,
		UserAgent: cfg.Dex.UserAgent,
		Timeout:   cfg.SpriteTimeout(),
		Logger:    logger,
	})

	if store, err := ledger.Open(ctx, cfg.Paths.LedgerDB); err != nil {
		logging.WarnWithContext(logger, "fetch ledger unavailable", "ledger_open_failed",
			logging.String("path", cfg.Paths.LedgerDB),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the ledger database to recreate it"),
			logging.String(logging.FieldImpact, "fetch outcomes are not recorded"))
	} else {
		rt.ledger = store
	}

	opts := analyzer.Options{
		Cache:        rt.cache,
		Entities:     rt.entities,
		Workers:      cfg.EffectiveWorkers(),
		BatchTimeout: cfg.BatchTimeout(),
		Offline:      cfg.Fetch.Offline,
		Logger:       logger,
	}
	if rt.ledger != nil {
		opts.Recorder = rt.ledger
	}
	if !cfg.Fetch.Offline {
		client, err := dex.New(cfg.Dex.BaseURL,
			dex.WithTimeout(cfg.RequestTimeout()),
			dex.WithUserAgent(cfg.Dex.UserAgent),
			dex.WithRequestsPerSecond(cfg.Dex.RequestsPerSecond),
			dex.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("init dex client: %w", err)
		}
		opts.Fetcher = client
		opts.Sprites = rt.sprites
	}
	rt.coordinator = analyzer.New(opts)
	return rt, nil
}

func (rt *appRuntime) teamBuilder(greedy bool) teams.Builder {
	b := teams.Builder{
		ExactLimit:      rt.cfg.Teams.ExactLimit,
		CandidateLimit:  rt.cfg.Teams.CandidateLimit,
		DefaultMaxTeams: rt.cfg.Teams.MaxTeams,
		Logger:          rt.logger,
	}
	if greedy {
		b.Matcher = teams.GreedyMatcher{}
	}
	return b
}

func (rt *appRuntime) close() {
	if rt.ledger != nil {
		_ = rt.ledger.Close()
	}
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
