package config

import (
	"errors"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the impact service.
// It is loaded once and handed to every component that needs a piece of it.
type Config struct {
	Debug       bool           `mapstructure:"debug"`
	GrpcPort    string         `mapstructure:"grpc_port"`
	HttpPort    string         `mapstructure:"http_port"`
	Compression string         `mapstructure:"compression"`
	Log         LogConfig      `mapstructure:"log"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	S3          S3Config       `mapstructure:"s3"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Jobs        JobsConfig     `mapstructure:"jobs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or sqlite-pure.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Path   string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Prefix       string `mapstructure:"prefix"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type LLMConfig struct {
	// Provider is one of openai, anthropic, gemini, ollama or mock.
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Required bool   `mapstructure:"required"`
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	// Insecure accepts the raw token text as the user id.
	Insecure bool `mapstructure:"insecure"`
}

type JobsConfig struct {
	SweepSchedule string `mapstructure:"sweep_schedule"`
	// SweepGrace is the minimum age of a row before the sweep may treat it
	// as an orphan. It must exceed the longest running analysis.
	SweepGrace    time.Duration `mapstructure:"sweep_grace"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	// AttemptLease is how long a pending attempt keeps its idempotency key
	// before another request may take it over.
	AttemptLease time.Duration `mapstructure:"attempt_lease"`
}

var defaults = map[string]any{
	"debug":               false,
	"grpc_port":           "4000",
	"http_port":           "4001",
	"compression":         "gzip",
	"log.level":           "info",
	"log.format":          "text",
	"database.driver":     "sqlite",
	"database.dsn":        "",
	"database.path":       "./.tmp/db/impact.db",
	"redis.addr":          "",
	"redis.password":      "",
	"redis.db":            0,
	"redis.ttl":           "10m",
	"kafka.brokers":       "",
	"kafka.topic":         "impact.events",
	"s3.bucket":           "",
	"s3.region":           "us-east-1",
	"s3.prefix":           "",
	"s3.endpoint":         "",
	"s3.use_path_style":   false,
	"llm.provider":        "",
	"llm.model":           "",
	"llm.api_key":         "",
	"llm.base_url":        "",
	"llm.timeout":         "60s",
	"auth.required":       false,
	"auth.secret":         "",
	"auth.issuer":         "impact",
	"auth.insecure":       false,
	"jobs.sweep_schedule": "@every 10m",
	"jobs.sweep_grace":    "30m",
	"jobs.retry_interval": "1m",
	"jobs.max_attempts":   3,
	"jobs.attempt_lease":  "10m",
}

// LoadConfig reads impact.yml from the working directory (or ./.config) and
// applies IMPACT_* environment overrides. A missing file is not an error.
func LoadConfig() *Config {
	v := viper.New()
	v.SetConfigName("impact")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./.config")
	v.SetEnvPrefix("IMPACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.Warnf("error reading config file: %v", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		logrus.Errorf("error decoding config: %v", err)
	}

	// the openai key is commonly exported without the prefix
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = v.GetString("OPENAI_API_KEY")
	}

	return cfg
}

// SetupLogging applies the log level and format to the global logrus logger.
func SetupLogging(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	if cfg.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if cfg.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
