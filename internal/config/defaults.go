package config

const (
	defaultConfigPath         = "~/.config/fusiondex/config.toml"
	defaultDataDir            = "~/.local/share/fusiondex"
	defaultCacheFile          = "all_fusions_data.json"
	defaultFallbackCacheFile  = "all_fusions_data_full_run.json"
	defaultSpritesDir         = "sprites"
	defaultEntitiesFile       = "fusion_pokemon_data.json"
	defaultLedgerDB           = "fetch_ledger.db"
	defaultLogDir             = "~/.local/share/fusiondex/logs"
	defaultDexBaseURL         = "https://infinitefusiondex.com/details/"
	defaultDexUserAgent       = "fusiondex/dev"
	defaultRequestTimeout     = 20
	defaultSpriteTimeout      = 5
	defaultRequestsPerSecond  = 8.0
	defaultWorkers            = 10
	defaultConstrainedWorkers = 5
	defaultBatchTimeout       = 600
	defaultTeamSize           = 6
	defaultMaxTeams           = 20
	defaultExactLimit         = 20
	defaultCandidateLimit     = 5000
	defaultAPIBind            = "127.0.0.1:8050"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	// maxExactLimit bounds the subset table of the exact matcher (2^n entries).
	maxExactLimit = 24
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:           defaultDataDir,
			CacheFile:         defaultCacheFile,
			FallbackCacheFile: defaultFallbackCacheFile,
			SpritesDir:        defaultSpritesDir,
			EntitiesFile:      defaultEntitiesFile,
			LedgerDB:          defaultLedgerDB,
			LogDir:            defaultLogDir,
		},
		Dex: Dex{
			BaseURL:           defaultDexBaseURL,
			UserAgent:         defaultDexUserAgent,
			RequestTimeout:    defaultRequestTimeout,
			SpriteTimeout:     defaultSpriteTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Fetch: Fetch{
			Workers:            defaultWorkers,
			ConstrainedWorkers: defaultConstrainedWorkers,
			BatchTimeout:       defaultBatchTimeout,
		},
		Teams: Teams{
			TeamSize:       defaultTeamSize,
			MaxTeams:       defaultMaxTeams,
			ExactLimit:     defaultExactLimit,
			CandidateLimit: defaultCandidateLimit,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
