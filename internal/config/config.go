package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables holding transport secrets.
const (
	EnvDiscordToken = "CARDBOT_DISCORD_TOKEN"
	EnvSlackToken   = "CARDBOT_SLACK_TOKEN"
)

// Supported transports.
const (
	TransportDiscord = "discord"
	TransportSlack   = "slack"
)

// Config holds application configuration.
type Config struct {
	// Channel is the channel id the poller watches
	Channel string `json:"channel,omitempty"`

	// Identity overrides the bot name used for the self-mention card.
	// Empty means use the name reported by the transport.
	Identity string `json:"identity,omitempty"`

	// Operator is the contact named in the reply footer
	Operator string `json:"operator,omitempty"`

	// Transport selects the platform: "discord" or "slack"
	Transport string `json:"transport,omitempty"`

	// CorpusPath is the card corpus JSON file
	CorpusPath string `json:"corpus_path,omitempty"`

	// BatchSize caps events fetched per stream per cycle
	BatchSize int `json:"batch_size"`

	// DedupCapacity bounds the in-memory window of handled event ids
	DedupCapacity int `json:"dedup_capacity"`

	// DedupTrim is how many of the oldest ids are evicted at once
	DedupTrim int `json:"dedup_trim"`

	// PollIntervalMS is the minimum time between cycles. 0 means no pause.
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`

	// SplitStreams polls submissions and comments concurrently
	SplitStreams bool `json:"split_streams,omitempty"`

	// PartialMatchCeiling bounds the progressive-prefix scan
	PartialMatchCeiling int `json:"partial_match_ceiling"`

	// LenientPartialMatch accepts a lone candidate that does not start
	// with the full query
	LenientPartialMatch bool `json:"lenient_partial_match,omitempty"`

	// ImageURLTemplate builds image links; "{}" is replaced by the card key
	ImageURLTemplate string `json:"image_url_template"`

	// FallbackImageURL is linked when the image check fails. Empty means
	// the card name is rendered without a link.
	FallbackImageURL string `json:"fallback_image_url,omitempty"`

	// ImageContentType is the Content-Type an image response must carry
	ImageContentType string `json:"image_content_type"`

	// ImageCheckTimeoutMS bounds each image check
	ImageCheckTimeoutMS int `json:"image_check_timeout_ms"`

	// ImageCheckWorkers bounds concurrent image checks per event
	ImageCheckWorkers int `json:"image_check_workers"`

	// SourceURL and ContactURL are linked in the reply footer
	SourceURL  string `json:"source_url,omitempty"`
	ContactURL string `json:"contact_url,omitempty"`

	// Tips are "did you know" lines; one is picked per reply
	Tips []string `json:"tips,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "card", "reply", "lookup".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// LogLevel is debug, info, warn or error
	LogLevel string `json:"log_level,omitempty"`

	// LogJSON switches the log handler to JSON
	LogJSON bool `json:"log_json,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Transport:           TransportDiscord,
		BatchSize:           10,
		DedupCapacity:       1000,
		DedupTrim:           10,
		PartialMatchCeiling: 30,
		ImageURLTemplate:    "http://www.legends-decks.com/img_cards/{}.png",
		ImageContentType:    "image/png",
		ImageCheckTimeoutMS: 5000,
		ImageCheckWorkers:   4,
		LogLevel:            "info",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cardbot.
func Load(baseDir string) (*Config, error) {
	return LoadFile(filepath.Join(baseDir, "config.json"))
}

// LoadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func LoadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithProject loads the global config (~/.cardbot) and the nearest
// .cardbot/config.json found walking upward from startDir. Project values
// win for scalars; arrays are merged.
func LoadWithProject(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	project, err := loadFileRaw(FindProjectConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), project), nil
}

// FindProjectConfig walks upward from startDir to find .cardbot/config.json.
// Returns "" when none exists.
func FindProjectConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".cardbot", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero config (not defaults) when the file is missing.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Strings and ints: overlay wins if non-zero
	result.Channel = pick(overlay.Channel, base.Channel)
	result.Identity = pick(overlay.Identity, base.Identity)
	result.Operator = pick(overlay.Operator, base.Operator)
	result.Transport = pick(overlay.Transport, base.Transport)
	result.CorpusPath = pick(overlay.CorpusPath, base.CorpusPath)
	result.BatchSize = pick(overlay.BatchSize, base.BatchSize)
	result.DedupCapacity = pick(overlay.DedupCapacity, base.DedupCapacity)
	result.DedupTrim = pick(overlay.DedupTrim, base.DedupTrim)
	result.PollIntervalMS = pick(overlay.PollIntervalMS, base.PollIntervalMS)
	result.PartialMatchCeiling = pick(overlay.PartialMatchCeiling, base.PartialMatchCeiling)
	result.ImageURLTemplate = pick(overlay.ImageURLTemplate, base.ImageURLTemplate)
	result.FallbackImageURL = pick(overlay.FallbackImageURL, base.FallbackImageURL)
	result.ImageContentType = pick(overlay.ImageContentType, base.ImageContentType)
	result.ImageCheckTimeoutMS = pick(overlay.ImageCheckTimeoutMS, base.ImageCheckTimeoutMS)
	result.ImageCheckWorkers = pick(overlay.ImageCheckWorkers, base.ImageCheckWorkers)
	result.SourceURL = pick(overlay.SourceURL, base.SourceURL)
	result.ContactURL = pick(overlay.ContactURL, base.ContactURL)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)

	// Booleans: overlay wins if true, else base
	result.SplitStreams = base.SplitStreams || overlay.SplitStreams
	result.LenientPartialMatch = base.LenientPartialMatch || overlay.LenientPartialMatch
	result.LogJSON = base.LogJSON || overlay.LogJSON

	// Arrays: merge and deduplicate
	result.Tips = mergeStringSlice(base.Tips, overlay.Tips)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Validate checks the values the poll loop depends on.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	case c.DedupCapacity <= 0:
		return fmt.Errorf("dedup_capacity must be positive, got %d", c.DedupCapacity)
	case c.DedupTrim < 1 || c.DedupTrim > c.DedupCapacity:
		return fmt.Errorf("dedup_trim must be in [1, %d], got %d", c.DedupCapacity, c.DedupTrim)
	case c.PartialMatchCeiling <= 0:
		return fmt.Errorf("partial_match_ceiling must be positive, got %d", c.PartialMatchCeiling)
	case c.PollIntervalMS < 0:
		return fmt.Errorf("poll_interval_ms must not be negative, got %d", c.PollIntervalMS)
	case c.ImageCheckWorkers < 0:
		return fmt.Errorf("image_check_workers must not be negative, got %d", c.ImageCheckWorkers)
	}
	switch c.Transport {
	case TransportDiscord, TransportSlack:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportDiscord, TransportSlack)
	}
	return nil
}

// LoadEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Token returns the secret for the configured transport.
func (c *Config) Token() (string, error) {
	env := EnvDiscordToken
	if c.Transport == TransportSlack {
		env = EnvSlackToken
	}
	token := strings.TrimSpace(os.Getenv(env))
	if token == "" {
		return "", fmt.Errorf("%s is not set", env)
	}
	return token, nil
}
