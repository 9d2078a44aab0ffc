package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDex(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateTeams(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CacheFile) == "" {
		return errors.New("paths.cache_file must be set")
	}
	if c.Paths.FallbackCacheFile != "" && c.Paths.FallbackCacheFile == c.Paths.CacheFile {
		return errors.New("paths.fallback_cache_file must differ from paths.cache_file")
	}
	return nil
}

func (c *Config) validateDex() error {
	parsed, err := url.Parse(c.Dex.BaseURL)
	if err != nil {
		return fmt.Errorf("dex.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("dex.base_url must be an http(s) URL, got %q", c.Dex.BaseURL)
	}
	if c.Dex.RequestsPerSecond < 0 {
		return errors.New("dex.requests_per_second must be >= 0 (0 disables the limiter)")
	}
	return ensurePositiveMap(map[string]int{
		"dex.request_timeout": c.Dex.RequestTimeout,
		"dex.sprite_timeout":  c.Dex.SpriteTimeout,
	})
}

func (c *Config) validateFetch() error {
	return ensurePositiveMap(map[string]int{
		"fetch.workers":             c.Fetch.Workers,
		"fetch.constrained_workers": c.Fetch.ConstrainedWorkers,
		"fetch.batch_timeout":       c.Fetch.BatchTimeout,
	})
}

func (c *Config) validateTeams() error {
	if c.Teams.TeamSize < 2 {
		return errors.New("teams.team_size must be at least 2")
	}
	if c.Teams.ExactLimit < 2 || c.Teams.ExactLimit > maxExactLimit {
		return fmt.Errorf("teams.exact_limit must be between 2 and %d", maxExactLimit)
	}
	return ensurePositiveMap(map[string]int{
		"teams.max_teams":       c.Teams.MaxTeams,
		"teams.candidate_limit": c.Teams.CandidateLimit,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
