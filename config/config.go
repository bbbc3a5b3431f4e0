package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/convqueue/internal/domain"
)

const EnvPrefix = "CONVQUEUE"

type Config struct {
	DataDir string        `mapstructure:"dataDir"`
	Store   StoreConfig   `mapstructure:"store"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	FFmpeg  ToolConfig    `mapstructure:"ffmpeg"`
	FFprobe ToolConfig    `mapstructure:"ffprobe"`
	Gallery GalleryConfig `mapstructure:"gallery"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Redis   RedisConfig   `mapstructure:"redis"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or json
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	AdminTokenHash  string        `mapstructure:"adminTokenHash"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ToolConfig struct {
	Path string `mapstructure:"path"`
}

type GalleryConfig struct {
	ConversionTimeout time.Duration           `mapstructure:"conversionTimeout"`
	EncoderSettings   []domain.EncoderSetting `mapstructure:"encoderSettings"`
}

type QueueConfig struct {
	PurgeAfterDays int           `mapstructure:"purgeAfterDays"`
	PurgeInterval  time.Duration `mapstructure:"purgeInterval"`
}

// RedisConfig enables cache invalidation when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AMQPConfig enables event fan-out when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Load reads the optional config file at configPath, then applies
// CONVQUEUE_* environment variables on top of it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("dataDir", EnvPrefix+"_DATA_DIR")
	_ = v.BindEnv("http.adminTokenHash", EnvPrefix+"_HTTP_ADMIN_TOKEN_HASH")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataDir", "/data")
	v.SetDefault("store.driver", "sqlite")

	v.SetDefault("http.port", 7890)
	v.SetDefault("http.adminTokenHash", "")
	v.SetDefault("http.shutdownTimeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffprobe.path", "ffprobe")

	v.SetDefault("gallery.conversionTimeout", "30m")
	v.SetDefault("gallery.encoderSettings", domain.DefaultEncoderSettings())

	v.SetDefault("queue.purgeAfterDays", 180)
	v.SetDefault("queue.purgeInterval", "24h")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "convqueue.events")
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "json":
	default:
		return fmt.Errorf("invalid store.driver %q: must be sqlite or json", c.Store.Driver)
	}
	if c.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	if c.Queue.PurgeAfterDays < 0 {
		return fmt.Errorf("queue.purgeAfterDays must not be negative")
	}
	if c.Gallery.ConversionTimeout < 0 {
		return fmt.Errorf("gallery.conversionTimeout must not be negative")
	}

	seen := make(map[int]bool, len(c.Gallery.EncoderSettings))
	for _, s := range c.Gallery.EncoderSettings {
		if seen[s.Sequence] {
			return fmt.Errorf("duplicate encoder setting sequence %d", s.Sequence)
		}
		seen[s.Sequence] = true
		if !strings.HasPrefix(s.DestinationExt, ".") {
			return fmt.Errorf("encoder setting %d: destinationExt must start with a dot", s.Sequence)
		}
		if s.SourceExt == "" {
			return fmt.Errorf("encoder setting %d: sourceExt is required", s.Sequence)
		}
	}
	return nil
}

// GallerySettings returns the single gallery profile; every gallery shares it.
func (c *Config) GallerySettings(int64) domain.GallerySettings {
	settings := make([]domain.EncoderSetting, len(c.Gallery.EncoderSettings))
	copy(settings, c.Gallery.EncoderSettings)
	return domain.GallerySettings{
		EncoderSettings:   settings,
		ConversionTimeout: c.Gallery.ConversionTimeout,
	}
}
