// File: internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Leaderboard   LeaderboardConfig  `mapstructure:"leaderboard"`
	Feed          FeedConfig         `mapstructure:"feed"`
	KeepAlive     KeepAliveConfig    `mapstructure:"keepalive"`
	Tiers         []TierConfig       `mapstructure:"tiers"`
	DefaultTier   TierConfig         `mapstructure:"default_tier"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// StorageConfig selects and configures the donation log backend
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // file, sqlite, postgres
	Path             string        `mapstructure:"path"`
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// NotificationConfig contains outbound webhook and message formatting settings
type NotificationConfig struct {
	EnableDonations    bool          `mapstructure:"enable_donations"`
	DonationWebhookURL string        `mapstructure:"donation_webhook_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RatePerSecond      float64       `mapstructure:"rate_per_second"`
	RateBurst          int           `mapstructure:"rate_burst"`
	DonationColor      string        `mapstructure:"donation_color"`
	LeaderboardColor   string        `mapstructure:"leaderboard_color"`
	LiveColor          string        `mapstructure:"live_color"`
	ShortColor         string        `mapstructure:"short_color"`
	VideoColor         string        `mapstructure:"video_color"`
	Footer             string        `mapstructure:"footer"`
	Currency           string        `mapstructure:"currency"`
	AnonymousName      string        `mapstructure:"anonymous_name"`
	EmptyMessage       string        `mapstructure:"empty_message"`
	LeaderboardTitle   string        `mapstructure:"leaderboard_title"`
	ChannelFieldName   string        `mapstructure:"channel_field_name"`
	ReferenceFieldName string        `mapstructure:"reference_field_name"`
	MessageHeading     string        `mapstructure:"message_heading"`
	AmountLabel        string        `mapstructure:"amount_label"`
}

// LeaderboardConfig controls the weekly donor ranking
type LeaderboardConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Window     time.Duration `mapstructure:"window"`
	Limit      int           `mapstructure:"limit"`
}

// FeedConfig controls the video channel watcher
type FeedConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ChannelID    string        `mapstructure:"channel_id"`
	FeedURL      string        `mapstructure:"feed_url"`
	WebhookURL   string        `mapstructure:"webhook_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// KeepAliveConfig controls the periodic self-ping of the public URL
type KeepAliveConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"`
}

// TierConfig describes one donation amount bracket
type TierConfig struct {
	Min   float64  `mapstructure:"min" json:"min"`
	Max   *float64 `mapstructure:"max" json:"max,omitempty"`
	Title string   `mapstructure:"title" json:"title"`
	Image string   `mapstructure:"image" json:"image,omitempty"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	normalizeMinutes(v, "feed.poll_interval")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if raw := os.Getenv("TIERS_JSON"); raw != "" {
		var tiers []TierConfig
		if err := json.Unmarshal([]byte(raw), &tiers); err != nil {
			return nil, fmt.Errorf("error parsing TIERS_JSON: %w", err)
		}
		config.Tiers = tiers
	}

	if config.Feed.FeedURL == "" && config.Feed.ChannelID != "" {
		config.Feed.FeedURL = "https://www.youtube.com/feeds/videos.xml?channel_id=" + config.Feed.ChannelID
	}
	if config.Leaderboard.WebhookURL == "" {
		config.Leaderboard.WebhookURL = config.Notifications.DonationWebhookURL
	}

	return &config, nil
}

// bindEnv maps the plain environment names used by existing deployments
func bindEnv(v *viper.Viper) {
	v.BindEnv("notifications.donation_webhook_url", "RELAY_NOTIFICATIONS_DONATION_WEBHOOK_URL", "DISCORD_WEBHOOK_URL")
	v.BindEnv("leaderboard.webhook_url", "RELAY_LEADERBOARD_WEBHOOK_URL", "DISCORD_LEADERBOARD_WEBHOOK_URL")
	v.BindEnv("feed.webhook_url", "RELAY_FEED_WEBHOOK_URL", "DISCORD_VIDEO_WEBHOOK_URL")
	v.BindEnv("feed.channel_id", "RELAY_FEED_CHANNEL_ID", "YOUTUBE_CHANNEL_ID")
	v.BindEnv("feed.poll_interval", "RELAY_FEED_POLL_INTERVAL", "CHECK_INTERVAL")
	v.BindEnv("storage.path", "RELAY_STORAGE_PATH", "LEADERBOARD_FILE")
	v.BindEnv("keepalive.url", "RELAY_KEEPALIVE_URL", "PUBLIC_URL")
	v.BindEnv("server.port", "RELAY_SERVER_PORT", "PORT")
	v.BindEnv("storage.connection_string", "RELAY_STORAGE_CONNECTION_STRING", "DATABASE_URL")
}

// normalizeMinutes reads a bare integer at key as a number of minutes, the
// unit CHECK_INTERVAL has always been given in
func normalizeMinutes(v *viper.Viper, key string) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return
	}
	if minutes, err := strconv.Atoi(raw); err == nil {
		v.Set(key, time.Duration(minutes)*time.Minute)
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "donation-relay")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "./data/leaderboard.json")
	v.SetDefault("storage.max_connections", 5)
	v.SetDefault("storage.max_idle_time", "15m")

	// Notification defaults
	v.SetDefault("notifications.enable_donations", true)
	v.SetDefault("notifications.timeout", "10s")
	v.SetDefault("notifications.rate_per_second", 2.5)
	v.SetDefault("notifications.rate_burst", 5)
	v.SetDefault("notifications.donation_color", "0xffe066")
	v.SetDefault("notifications.leaderboard_color", "0xf1c40f")
	v.SetDefault("notifications.live_color", "0xff0000")
	v.SetDefault("notifications.short_color", "0xff66cc")
	v.SetDefault("notifications.video_color", "0x3498db")
	v.SetDefault("notifications.footer", "สนับสนุนเพิ่มเติมได้ที่: https://ezdn.app/mrtongx0")
	v.SetDefault("notifications.currency", "บาท")
	v.SetDefault("notifications.anonymous_name", "ผู้สนับสนุน")
	v.SetDefault("notifications.empty_message", "-")
	v.SetDefault("notifications.leaderboard_title", "🏆 อันดับผู้สนับสนุนประจำสัปดาห์")
	v.SetDefault("notifications.channel_field_name", "ช่องทางชำระเงิน")
	v.SetDefault("notifications.reference_field_name", "เลขอ้างอิง")
	v.SetDefault("notifications.message_heading", "💬 **ข้อความจากผู้สนับสนุน:**")
	v.SetDefault("notifications.amount_label", "ร่วมสนับสนุนจำนวน")

	// Leaderboard defaults
	v.SetDefault("leaderboard.enabled", true)
	v.SetDefault("leaderboard.window", "168h")
	v.SetDefault("leaderboard.limit", 5)

	// Feed defaults
	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.poll_interval", "5m")

	// Keep-alive defaults
	v.SetDefault("keepalive.enabled", false)
	v.SetDefault("keepalive.interval", "10m")

	// Tier defaults
	v.SetDefault("tiers", DefaultTiers())
	v.SetDefault("default_tier.title", "ผู้สนับสนุน")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// DefaultTiers returns the stock amount brackets
func DefaultTiers() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"min":   0,
			"max":   50,
			"title": "ผู้สนับสนุนระดับหมอรำ!",
			"image": "https://media.giphy.com/media/HmO7FZjok6mhW/giphy.gif",
		},
		{
			"min":   51,
			"max":   100,
			"title": "ผู้สนับสนุนระดับพิเศษ!",
			"image": "https://media.giphy.com/media/CIe1iwzke30wU/giphy.gif",
		},
		{
			"min":   101,
			"max":   300,
			"title": "ผู้สนับสนุนระดับซุปเปอร์!",
			"image": "https://media.giphy.com/media/11nuvoZGgSH3Ne/giphy.gif",
		},
		{
			"min":   301,
			"title": "ผู้สนับสนุนระดับตำนาน!",
			"image": "https://media.giphy.com/media/rfqZyGGilNv20/giphy.gif",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if c.Notifications.EnableDonations && c.Notifications.DonationWebhookURL == "" {
		return fmt.Errorf("donation webhook URL is required when donations are enabled")
	}
	if c.Notifications.Timeout <= 0 {
		return fmt.Errorf("notification timeout must be positive")
	}
	if c.Leaderboard.Enabled && c.Leaderboard.Window <= 0 {
		return fmt.Errorf("leaderboard window must be positive")
	}
	if c.Feed.Enabled {
		if c.Feed.FeedURL == "" {
			return fmt.Errorf("feed channel id or feed URL is required when the feed watcher is enabled")
		}
		if c.Feed.WebhookURL == "" {
			return fmt.Errorf("video webhook URL is required when the feed watcher is enabled")
		}
		if c.Feed.PollInterval <= 0 {
			return fmt.Errorf("feed poll interval must be positive")
		}
	}
	if c.KeepAlive.Enabled {
		if c.KeepAlive.URL == "" {
			return fmt.Errorf("keep-alive URL is required when keep-alive is enabled")
		}
		if c.KeepAlive.Interval <= 0 {
			return fmt.Errorf("keep-alive interval must be positive")
		}
	}
	for i, tier := range c.Tiers {
		if tier.Max != nil && *tier.Max < tier.Min {
			return fmt.Errorf("tier %d (%q) has max below min", i, tier.Title)
		}
	}
	for _, color := range []string{
		c.Notifications.DonationColor,
		c.Notifications.LeaderboardColor,
		c.Notifications.LiveColor,
		c.Notifications.ShortColor,
		c.Notifications.VideoColor,
	} {
		if _, err := ParseColor(color); err != nil {
			return err
		}
	}
	return nil
}

// ParseColor parses a hex color such as "0xffe066", "#ffe066" or "ffe066"
func ParseColor(value string) (int, error) {
	s := strings.TrimSpace(strings.ToLower(value))
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty color value")
	}
	n, err := strconv.ParseInt(s, 16, 32)
	if err != nil || n < 0 || n > 0xffffff {
		return 0, fmt.Errorf("invalid color value %q", value)
	}
	return int(n), nil
}

// MustColor parses value and falls back to def when it is not a valid color
func MustColor(value string, def int) int {
	n, err := ParseColor(value)
	if err != nil {
		return def
	}
	return n
}
