package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the default User-Agent string sent with all HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:147.0) Gecko/20100101 Firefox/147.0"

type Config struct {
	Download DownloadConfig `mapstructure:"download"`
	Organize OrganizeConfig `mapstructure:"organize"`
	Library  LibraryConfig  `mapstructure:"library"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	UserAgent string `mapstructure:"user_agent"`
	// ClientTimeout is a Go duration string like "30s", "1h", etc.
	ClientTimeout string `mapstructure:"client_timeout"`
	LogLevel      string `mapstructure:"log_level"`
	SentryDSN     string `mapstructure:"sentry_dsn"`
}

// DownloadConfig controls where downloads land and how transfers behave.
type DownloadConfig struct {
	OutputDir              string `mapstructure:"output_dir"`
	OverwriteExisting      bool   `mapstructure:"overwrite_existing"`
	MaxConcurrentDownloads int    `mapstructure:"max_concurrent_downloads"`
	MaxRetries             int    `mapstructure:"max_retries"`
}

// OrganizeConfig controls pattern-based folder and filename derivation.
// FolderStructure and NamingPattern are templates rendered against an item's
// descriptive attributes, e.g. "{studio}" or "{code} {title}".
type OrganizeConfig struct {
	AutoOrganize    bool   `mapstructure:"auto_organize"`
	FolderStructure string `mapstructure:"folder_structure"`
	NamingPattern   string `mapstructure:"naming_pattern"`
	CreateNFO       bool   `mapstructure:"create_nfo"`
	DownloadCover   bool   `mapstructure:"download_cover"`
}

// LibraryConfig points at a Jellyfin-compatible media server used for
// duplicate detection and post-download filing. Integration is best-effort:
// a missing or unreachable server never fails a download.
type LibraryConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	ServerURL string   `mapstructure:"server_url"`
	APIKey    string   `mapstructure:"api_key"`
	UserID    string   `mapstructure:"user_id"`
	Libraries []string `mapstructure:"libraries"`
}

type CacheConfig struct {
	Provider      string `mapstructure:"provider"` // "memory" or "redis"
	Size          int    `mapstructure:"size"`
	TTL           string `mapstructure:"ttl"` // Go duration string like "1h", "24h", etc.
	RedisAddress  string `mapstructure:"redis_address"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: false,
	}).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	level := zerolog.InfoLevel // default
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)

	globalConfig = config
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".grabtree"))
	}

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("GRABTREE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = viper.BindEnv("log_level", "LOG_LEVEL")

	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Download.OutputDir == "" {
		config.Download.OutputDir = defaultOutputDir()
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("download.overwrite_existing", false)
	viper.SetDefault("download.max_concurrent_downloads", 4)
	viper.SetDefault("download.max_retries", 3)
	viper.SetDefault("organize.auto_organize", true)
	viper.SetDefault("organize.folder_structure", "{studio}")
	viper.SetDefault("organize.naming_pattern", "{code}")
	viper.SetDefault("organize.create_nfo", true)
	viper.SetDefault("organize.download_cover", true)
	viper.SetDefault("cache.provider", "memory")
	viper.SetDefault("cache.size", 256)
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("client_timeout", "30s")
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads", "grabtree")
}

func GetConfig() *Config {
	return globalConfig
}

func GetUserAgent() string {
	if globalConfig != nil && globalConfig.UserAgent != "" {
		return globalConfig.UserAgent
	}

	return DefaultUserAgent
}

func GetLogger() zerolog.Logger {
	return logger
}
