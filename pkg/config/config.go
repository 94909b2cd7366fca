package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the favorites archiver
type Config struct {
	// Local archive settings
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Browser rendering settings
	Render RenderConfig `yaml:"render" json:"render"`

	// Remote photo-frame library settings
	Frame FrameConfig `yaml:"frame" json:"frame"`

	// Per-service source settings
	Services ServicesConfig `yaml:"services" json:"services"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ArchiveConfig holds local screenshot archive configuration
type ArchiveConfig struct {
	// Root is the backup directory that holds one subtree per service
	Root string `yaml:"root" json:"root"`
	// FolderCapacity is the maximum number of screenshots per numbered subfolder
	FolderCapacity int `yaml:"folder_capacity" json:"folder_capacity"`
	// TimeZone is the fixed named zone used for embedded metadata dates
	TimeZone string `yaml:"time_zone" json:"time_zone"`
}

// Location resolves the configured metadata time zone.
func (a *ArchiveConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.TimeZone)
}

// RenderConfig holds browser rendering configuration
type RenderConfig struct {
	DeviceScaleFactor float64       `yaml:"device_scale_factor" json:"device_scale_factor"`
	ViewportWidth     int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height" json:"viewport_height"`
	ScreenshotQuality int           `yaml:"screenshot_quality" json:"screenshot_quality"`
	SignInTimeout     time.Duration `yaml:"sign_in_timeout" json:"sign_in_timeout"`
}

// FrameConfig holds remote photo-frame library configuration
type FrameConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	BaseURL       string `yaml:"base_url" json:"base_url"`
	MonitorURL    string `yaml:"monitor_url" json:"monitor_url"`
	Username      string `yaml:"username" json:"username"`
	Password      string `yaml:"password" json:"password"`
	AlbumCapacity int    `yaml:"album_capacity" json:"album_capacity"`
	// ListPageSize is the window used to find a freshly uploaded photo by filename
	ListPageSize int `yaml:"list_page_size" json:"list_page_size"`
}

// ServicesConfig holds the configuration for every favorite source
type ServicesConfig struct {
	Bluesky  BlueskyConfig  `yaml:"bluesky" json:"bluesky"`
	Mastodon MastodonConfig `yaml:"mastodon" json:"mastodon"`
	Twitter  TwitterConfig  `yaml:"twitter" json:"twitter"`
}

// BlueskyConfig holds Bluesky credentials and paging limits
type BlueskyConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	BaseURL     string `yaml:"base_url" json:"base_url"`
	Identifier  string `yaml:"identifier" json:"identifier"`
	AppPassword string `yaml:"app_password" json:"app_password"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
}

// MastodonConfig holds Mastodon credentials and paging limits
type MastodonConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Server      string `yaml:"server" json:"server"`
	AccessToken string `yaml:"access_token" json:"access_token"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
}

// TwitterConfig holds Twitter session cookies and paging limits
type TwitterConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	BaseURL       string `yaml:"base_url" json:"base_url"`
	UserID        string `yaml:"user_id" json:"user_id"`
	BearerToken   string `yaml:"bearer_token" json:"bearer_token"`
	AuthToken     string `yaml:"auth_token" json:"auth_token"`
	CSRFToken     string `yaml:"csrf_token" json:"csrf_token"`
	SessionCookie string `yaml:"session_cookie" json:"session_cookie"`
	PageSize      int    `yaml:"page_size" json:"page_size"`
	// MaxPosts caps the total favorites scanned in one run to bound network use
	MaxPosts int `yaml:"max_posts" json:"max_posts"`
}

// HTTPConfig holds shared HTTP transport configuration
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Root:           "./archive",
			FolderCapacity: 2000,
			TimeZone:       "America/Los_Angeles",
		},
		Render: RenderConfig{
			DeviceScaleFactor: 3,
			ViewportWidth:     1920,
			ViewportHeight:    1200,
			ScreenshotQuality: 80,
			SignInTimeout:     time.Hour,
		},
		Frame: FrameConfig{
			Enabled:       false,
			AlbumCapacity: 2000,
			ListPageSize:  15,
		},
		Services: ServicesConfig{
			Bluesky: BlueskyConfig{
				BaseURL:  "https://bsky.social/xrpc",
				PageSize: 100,
			},
			Mastodon: MastodonConfig{
				PageSize: 40,
			},
			Twitter: TwitterConfig{
				BaseURL:  "https://x.com/i/api",
				PageSize: 88,
				MaxPosts: 264,
			},
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			MaxRetries:        3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if root := os.Getenv("FAVESCREEN_ARCHIVE_ROOT"); root != "" {
		c.Archive.Root = root
	}
	if tz := os.Getenv("FAVESCREEN_TIME_ZONE"); tz != "" {
		c.Archive.TimeZone = tz
	}
	if capacity := os.Getenv("FAVESCREEN_FOLDER_CAPACITY"); capacity != "" {
		if val, err := strconv.Atoi(capacity); err == nil && val > 0 {
			c.Archive.FolderCapacity = val
		}
	}

	if baseURL := os.Getenv("FAVESCREEN_FRAME_BASE_URL"); baseURL != "" {
		c.Frame.BaseURL = baseURL
	}
	if monitorURL := os.Getenv("FAVESCREEN_FRAME_MONITOR_URL"); monitorURL != "" {
		c.Frame.MonitorURL = monitorURL
	}
	if username := os.Getenv("FAVESCREEN_FRAME_USERNAME"); username != "" {
		c.Frame.Username = username
	}
	if password := os.Getenv("FAVESCREEN_FRAME_PASSWORD"); password != "" {
		c.Frame.Password = password
	}
	if enabled := os.Getenv("FAVESCREEN_FRAME_ENABLED"); enabled != "" {
		c.Frame.Enabled = strings.ToLower(enabled) == "true"
	}

	if identifier := os.Getenv("FAVESCREEN_BLUESKY_IDENTIFIER"); identifier != "" {
		c.Services.Bluesky.Identifier = identifier
	}
	if password := os.Getenv("FAVESCREEN_BLUESKY_APP_PASSWORD"); password != "" {
		c.Services.Bluesky.AppPassword = password
	}
	if server := os.Getenv("FAVESCREEN_MASTODON_SERVER"); server != "" {
		c.Services.Mastodon.Server = server
	}
	if token := os.Getenv("FAVESCREEN_MASTODON_ACCESS_TOKEN"); token != "" {
		c.Services.Mastodon.AccessToken = token
	}
	if userID := os.Getenv("FAVESCREEN_TWITTER_USER_ID"); userID != "" {
		c.Services.Twitter.UserID = userID
	}
	if bearer := os.Getenv("FAVESCREEN_TWITTER_BEARER_TOKEN"); bearer != "" {
		c.Services.Twitter.BearerToken = bearer
	}
	if authToken := os.Getenv("FAVESCREEN_TWITTER_AUTH_TOKEN"); authToken != "" {
		c.Services.Twitter.AuthToken = authToken
	}
	if csrf := os.Getenv("FAVESCREEN_TWITTER_CSRF_TOKEN"); csrf != "" {
		c.Services.Twitter.CSRFToken = csrf
	}
	if session := os.Getenv("FAVESCREEN_TWITTER_SESSION_COOKIE"); session != "" {
		c.Services.Twitter.SessionCookie = session
	}

	if rpm := os.Getenv("FAVESCREEN_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.HTTP.RequestsPerMinute = val
		}
	}
	if logLevel := os.Getenv("FAVESCREEN_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile looks for a configuration file in default locations
func (c *Config) findConfigFile() string {
	candidates := []string{
		"favescreen.yaml",
		"favescreen.yml",
		".favescreen.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".favescreen.yaml"),
			filepath.Join(home, ".config", "favescreen", "config.yaml"),
		)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Archive.Root == "" {
		return errors.New("archive root directory is required")
	}
	if c.Archive.FolderCapacity <= 0 {
		return errors.New("archive folder capacity must be positive")
	}
	if _, err := c.Archive.Location(); err != nil {
		return fmt.Errorf("invalid archive time zone %q: %w", c.Archive.TimeZone, err)
	}

	if c.Render.ScreenshotQuality < 1 || c.Render.ScreenshotQuality > 100 {
		return errors.New("screenshot quality must be between 1 and 100")
	}
	if c.Render.SignInTimeout <= 0 {
		return errors.New("sign-in timeout must be positive")
	}

	if c.Frame.Enabled {
		if c.Frame.BaseURL == "" {
			return errors.New("frame base URL is required when uploads are enabled")
		}
		if c.Frame.AlbumCapacity <= 0 {
			return errors.New("frame album capacity must be positive")
		}
		if c.Frame.ListPageSize <= 0 {
			return errors.New("frame list page size must be positive")
		}
	}

	if c.Services.Mastodon.Enabled && c.Services.Mastodon.Server == "" {
		return errors.New("mastodon server is required when the service is enabled")
	}
	if c.Services.Bluesky.Enabled && c.Services.Bluesky.Identifier == "" {
		return errors.New("bluesky identifier is required when the service is enabled")
	}
	if c.Services.Twitter.Enabled && c.Services.Twitter.UserID == "" {
		return errors.New("twitter user id is required when the service is enabled")
	}

	if c.HTTP.Timeout <= 0 {
		return errors.New("http timeout must be positive")
	}

	return nil
}

// Load creates a configuration by merging defaults, file, env, and flag overrides
func Load(configFile string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFlags applies command line flag overrides
func applyFlags(cfg *Config, flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "archive-root":
			if v, ok := value.(string); ok {
				cfg.Archive.Root = v
			}
		case "folder-capacity":
			if v, ok := value.(int); ok && v > 0 {
				cfg.Archive.FolderCapacity = v
			}
		case "frame-enabled":
			if v, ok := value.(bool); ok {
				cfg.Frame.Enabled = v
			}
		case "log-level":
			if v, ok := value.(string); ok {
				cfg.Logging.Level = v
			}
		}
	}
}
