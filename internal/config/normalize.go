package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDex()
	if err := c.normalizeFetch(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	files := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.cache_file", &c.Paths.CacheFile, defaultCacheFile},
		{"paths.fallback_cache_file", &c.Paths.FallbackCacheFile, ""},
		{"paths.sprites_dir", &c.Paths.SpritesDir, defaultSpritesDir},
		{"paths.entities_file", &c.Paths.EntitiesFile, defaultEntitiesFile},
		{"paths.ledger_db", &c.Paths.LedgerDB, ""},
		{"paths.log_dir", &c.Paths.LogDir, ""},
	}
	for _, f := range files {
		if strings.TrimSpace(*f.value) == "" {
			*f.value = f.fallback
		}
		if *f.value, err = resolveUnder(c.Paths.DataDir, *f.value); err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeDex() {
	c.Dex.BaseURL = strings.TrimSpace(c.Dex.BaseURL)
	if c.Dex.BaseURL == "" {
		c.Dex.BaseURL = defaultDexBaseURL
	}
	c.Dex.UserAgent = strings.TrimSpace(c.Dex.UserAgent)
	if c.Dex.UserAgent == "" {
		c.Dex.UserAgent = defaultDexUserAgent
	}
	if c.Dex.RequestTimeout <= 0 {
		c.Dex.RequestTimeout = defaultRequestTimeout
	}
	if c.Dex.SpriteTimeout <= 0 {
		c.Dex.SpriteTimeout = defaultSpriteTimeout
	}
}

func (c *Config) normalizeFetch() error {
	if value, ok := os.LookupEnv("MAX_FUSION_WORKERS"); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("MAX_FUSION_WORKERS: %w", err)
		}
		c.Fetch.Workers = workers
	}
	if value, ok := os.LookupEnv("WEB_DEPLOYMENT"); ok {
		c.Fetch.WebDeployment = strings.TrimSpace(value) == "1"
	}
	if value, ok := os.LookupEnv("FUSIONDEX_OFFLINE"); ok {
		c.Fetch.Offline = strings.TrimSpace(value) == "1"
	}
	if c.Fetch.ConstrainedWorkers <= 0 {
		c.Fetch.ConstrainedWorkers = defaultConstrainedWorkers
	}
	if c.Fetch.BatchTimeout <= 0 {
		c.Fetch.BatchTimeout = defaultBatchTimeout
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	origins := make([]string, 0, len(c.API.AllowedOrigins))
	seen := make(map[string]struct{}, len(c.API.AllowedOrigins))
	for _, origin := range c.API.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	c.API.AllowedOrigins = origins
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
