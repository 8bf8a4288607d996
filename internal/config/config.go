// Package config loads service configuration from .env, an optional config.yaml
// and CLEANCITY_* environment variables, and holds the scoring policy constants.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Evidence pipelines. Exactly one is active per deployment.
const (
	PipelineLabelObject = "label_object"
	PipelineAIVerdict   = "ai_verdict"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Evidence EvidenceConfig `mapstructure:"evidence"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Geocode  GeocodeConfig  `mapstructure:"geocode"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
	AddSource   bool   `mapstructure:"add_source"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// EvidenceConfig selects the evidence pipeline and bounds every outbound call.
type EvidenceConfig struct {
	Pipeline        string        `mapstructure:"pipeline"`
	DetectorTimeout time.Duration `mapstructure:"detector_timeout"`
	VerdictTimeout  time.Duration `mapstructure:"verdict_timeout"`
	GeocodeTimeout  time.Duration `mapstructure:"geocode_timeout"`
	HistoryTimeout  time.Duration `mapstructure:"history_timeout"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
}

type VisionConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

type GeocodeConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	RPS       float64       `mapstructure:"rps"`
}

type BlobConfig struct {
	Bucket       string        `mapstructure:"bucket"`
	Region       string        `mapstructure:"region"`
	Endpoint     string        `mapstructure:"endpoint"`
	UsePathStyle bool          `mapstructure:"use_path_style"`
	PresignTTL   time.Duration `mapstructure:"presign_ttl"`
}

type TelegramConfig struct {
	Token      string `mapstructure:"token"`
	LocalesDir string `mapstructure:"locales_dir"`
}

// SetDefaults initializes default values for every key so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.service_name", "cleancity")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.add_source", false)

	// -- Database --
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "cleancitydb")
	v.SetDefault("database.sslmode", "disable")

	// -- Redis --
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "complaints:events")

	// -- Auth --
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "cleancity-service")
	v.SetDefault("auth.token_ttl", "72h")

	// -- Evidence --
	v.SetDefault("evidence.pipeline", PipelineLabelObject)
	v.SetDefault("evidence.detector_timeout", "8s")
	v.SetDefault("evidence.verdict_timeout", "20s")
	v.SetDefault("evidence.geocode_timeout", "5s")
	v.SetDefault("evidence.history_timeout", "2s")
	v.SetDefault("evidence.notify_timeout", "5s")

	// -- Collaborators --
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.endpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("vision.max_results", 25)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "CleanCity/1.0 (municipal complaints)")
	v.SetDefault("geocode.cache_ttl", "720h")
	v.SetDefault("geocode.rps", 1.0)
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "eu-central-1")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.use_path_style", false)
	v.SetDefault("blob.presign_ttl", "1h")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.locales_dir", "")
}

// Load reads .env (if present), then config.yaml or cfgFile, then the environment.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("CLEANCITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and sane values.
func (c *Config) Validate() error {
	switch c.Evidence.Pipeline {
	case PipelineLabelObject, PipelineAIVerdict:
	default:
		return fmt.Errorf("evidence.pipeline must be %q or %q, got %q",
			PipelineLabelObject, PipelineAIVerdict, c.Evidence.Pipeline)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Evidence.DetectorTimeout <= 0 || c.Evidence.VerdictTimeout <= 0 ||
		c.Evidence.GeocodeTimeout <= 0 || c.Evidence.HistoryTimeout <= 0 {
		return errors.New("evidence timeouts must be positive durations")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be a positive integer")
	}
	return nil
}
