package dex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fusiondex/internal/fileutil"
	"fusiondex/internal/fusion"
	"fusiondex/internal/logging"
)

const (
	defaultSpriteTimeout = 5 * time.Second
	maxSpriteBytes       = 2 << 20
)

// ErrNoSpriteURL reports a record without a remote sprite to download.
var ErrNoSpriteURL = errors.New("no sprite url")

// SpriteStore downloads sprites into dir as "{a}.{b}.png".
type SpriteStore struct {
	dir        string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// SpriteOptions configures a SpriteStore.
type SpriteOptions struct {
	Dir        string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewSpriteStore creates a sprite store rooted at opts.Dir.
func NewSpriteStore(opts SpriteOptions) *SpriteStore {
	s := &SpriteStore{
		dir:        opts.Dir,
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		logger:     logging.NewComponentLogger(opts.Logger, "sprites"),
	}
	if s.timeout <= 0 {
		s.timeout = defaultSpriteTimeout
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{}
	}
	if strings.TrimSpace(s.userAgent) == "" {
		s.userAgent = defaultAgent
	}
	return s
}

// Dir returns the sprite directory.
func (s *SpriteStore) Dir() string {
	return s.dir
}

// FileName returns the sprite file name for key.
func FileName(key fusion.Key) string {
	return key.FileStem() + ".png"
}

// Ensure makes sure the sprite for key exists locally and returns its file
// name relative to the sprite directory. Existing files are never re-fetched.
func (s *SpriteStore) Ensure(ctx context.Context, key fusion.Key, spriteURL string) (string, error) {
	name := FileName(key)
	path := filepath.Join(s.dir, name)
	if fileutil.Exists(path) {
		return name, nil
	}
	spriteURL = strings.TrimSpace(spriteURL)
	if spriteURL == "" {
		return "", ErrNoSpriteURL
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spriteURL, nil)
	if err != nil {
		return "", fmt.Errorf("build sprite request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download sprite: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sprite download returned %d", resp.StatusCode)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create sprite directory: %w", err)
	}
	if _, err := fileutil.WriteReaderAtomic(path, resp.Body, 0o644, maxSpriteBytes); err != nil {
		return "", fmt.Errorf("write sprite: %w", err)
	}
	return name, nil
}

// Attach downloads sprites for records and sets LocalSprite on success.
// Failures are logged and leave the record unchanged. It returns the number of
// records that now carry a local sprite.
func (s *SpriteStore) Attach(ctx context.Context, records map[fusion.Key]fusion.Record) int {
	attached := 0
	for key, rec := range records {
		if ctx.Err() != nil {
			break
		}
		name, err := s.Ensure(ctx, key, rec.SpriteURL)
		if err != nil {
			s.logger.Debug("sprite unavailable",
				logging.String(logging.FieldPair, key.FileStem()),
				logging.Error(err))
			continue
		}
		rec.LocalSprite = name
		records[key] = rec
		attached++
	}
	return attached
}
