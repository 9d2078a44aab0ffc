package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data file and directory locations. Relative file entries
// resolve under DataDir.
type Paths struct {
	DataDir           string `toml:"data_dir"`
	CacheFile         string `toml:"cache_file"`
	FallbackCacheFile string `toml:"fallback_cache_file"`
	SpritesDir        string `toml:"sprites_dir"`
	EntitiesFile      string `toml:"entities_file"`
	LedgerDB          string `toml:"ledger_db"`
	LogDir            string `toml:"log_dir"`
}

// Dex contains settings for the fusion detail site.
type Dex struct {
	BaseURL           string  `toml:"base_url"`
	UserAgent         string  `toml:"user_agent"`
	RequestTimeout    int     `toml:"request_timeout"`
	SpriteTimeout     int     `toml:"sprite_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Fetch contains settings for batch resolution of missing pairs.
type Fetch struct {
	Workers            int  `toml:"workers"`
	ConstrainedWorkers int  `toml:"constrained_workers"`
	BatchTimeout       int  `toml:"batch_timeout"`
	WebDeployment      bool `toml:"web_deployment"`
	Offline            bool `toml:"offline"`
}

// Teams contains defaults for team generation.
type Teams struct {
	TeamSize       int `toml:"team_size"`
	MaxTeams       int `toml:"max_teams"`
	ExactLimit     int `toml:"exact_limit"`
	CandidateLimit int `toml:"candidate_limit"`
}

// API contains settings for the JSON HTTP server.
type API struct {
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fusiondex.
//
// Configuration sections by subsystem:
//   - Paths: cache files, sprites, entity metadata, ledger, logs
//   - Dex: detail site location, politeness, and timeouts
//   - Fetch: worker pool sizing and deployment modes
//   - Teams: team generation defaults and matcher limits
//   - API: HTTP bind address and CORS origins
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Dex     Dex     `toml:"dex"`
	Fetch   Fetch   `toml:"fetch"`
	Teams   Teams   `toml:"teams"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fusiondex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, sprite, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.SpritesDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EffectiveWorkers returns the worker pool width for a fetch batch. Offline
// runs are serial and web deployments are capped at ConstrainedWorkers.
func (c *Config) EffectiveWorkers() int {
	if c.Fetch.Offline {
		return 1
	}
	workers := c.Fetch.Workers
	if c.Fetch.WebDeployment && workers > c.Fetch.ConstrainedWorkers {
		workers = c.Fetch.ConstrainedWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// PersistCache reports whether fetched records may be written back to disk.
func (c *Config) PersistCache() bool {
	return !c.Fetch.WebDeployment
}

// RequestTimeout returns the per-page HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Dex.RequestTimeout) * time.Second
}

// SpriteTimeout returns the per-sprite download timeout.
func (c *Config) SpriteTimeout() time.Duration {
	return time.Duration(c.Dex.SpriteTimeout) * time.Second
}

// BatchTimeout returns the overall deadline for one fetch batch.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.Fetch.BatchTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// resolveUnder expands pathValue, anchoring relative values at base.
func resolveUnder(base, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", nil
	}
	if !strings.HasPrefix(pathValue, "~") && !filepath.IsAbs(pathValue) {
		pathValue = filepath.Join(base, pathValue)
	}
	return expandPath(pathValue)
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
