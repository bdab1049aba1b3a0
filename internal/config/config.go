package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	Docstore  DocstoreConfig  `yaml:"docstore" mapstructure:"docstore"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Lenders   LendersConfig   `yaml:"lenders" mapstructure:"lenders"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	// RateLimit caps Claude requests per second across the process.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// IntakeConfig configures the intake workflow.
type IntakeConfig struct {
	ExtractName   bool   `yaml:"extract_name" mapstructure:"extract_name"`
	DefaultFolder string `yaml:"default_folder" mapstructure:"default_folder"`
	MinStatements int    `yaml:"min_statements" mapstructure:"min_statements"`
	MaxUploadMB   int64  `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// DocstoreConfig selects where uploaded documents are kept.
type DocstoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Root     string `yaml:"root" mapstructure:"root"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// RedisConfig configures the realtime event channel. An empty Addr
// disables publishing.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Channel  string `yaml:"channel" mapstructure:"channel"`
}

// NotionConfig holds Notion API credentials for the deal board.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	DealDB string `yaml:"deal_db" mapstructure:"deal_db"`
}

// Enabled reports whether the deal board is configured.
func (c NotionConfig) Enabled() bool {
	return c.Token != "" && c.DealDB != ""
}

// LendersConfig points at the lender directory file.
type LendersConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	EditDebounceMS int      `yaml:"edit_debounce_ms" mapstructure:"edit_debounce_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadOption adjusts how Load resolves settings.
type LoadOption func(*loadOptions)

type loadOptions struct {
	file      string
	overrides map[string]any
}

// WithFile reads settings from path instead of ./config.yaml. Unlike the
// default file, an explicit one must exist.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) { o.file = path }
}

// WithOverride sets key above every other source, as command-line flags do.
func WithOverride(key string, value any) LoadOption {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]any)
		}
		o.overrides[key] = value
	}
}

// Load reads configuration from .env, file and environment, then applies
// overrides.
func Load(opts ...LoadOption) (*Config, error) {
	var lo loadOptions
	for _, o := range opts {
		o(&lo)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	if lo.file != "" {
		v.SetConfigFile(lo.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("DEALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.rate_limit", 2.0)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_ocr_model", "mistral-ocr-latest")
	v.SetDefault("intake.extract_name", true)
	v.SetDefault("intake.default_folder", "New Deal")
	v.SetDefault("intake.min_statements", 0)
	v.SetDefault("intake.max_upload_mb", 64)
	v.SetDefault("docstore.driver", "local")
	v.SetDefault("docstore.root", "./documents")
	v.SetDefault("docstore.bucket", "")
	v.SetDefault("docstore.prefix", "deals")
	v.SetDefault("docstore.region", "us-east-1")
	v.SetDefault("docstore.endpoint", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "dealdesk:events")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.deal_db", "")
	v.SetDefault("lenders.directory", "lenders.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.edit_debounce_ms", 800)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}
	for k, val := range lo.overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it starts. Mode is
// the command name: serve, intake, match, migrate, lenders, deals or
// tracker.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "serve", "intake", "match", "migrate", "lenders", "deals", "tracker":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required (sqlite file path)")
		}
	default:
		problems = append(problems, "store.driver must be postgres or sqlite, got "+quote(c.Store.Driver))
	}

	needsClaude := mode == "serve" || mode == "intake" || mode == "match"
	if needsClaude && c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}

	if mode == "serve" || mode == "intake" {
		switch c.OCR.Provider {
		case "local", "":
		case "mistral":
			if c.OCR.MistralKey == "" {
				problems = append(problems, "ocr.mistral_api_key is required for the mistral provider")
			}
		default:
			problems = append(problems, "ocr.provider must be local or mistral, got "+quote(c.OCR.Provider))
		}

		switch c.Docstore.Driver {
		case "local", "":
			if c.Docstore.Root == "" {
				problems = append(problems, "docstore.root is required for the local driver")
			}
		case "s3":
			if c.Docstore.Bucket == "" {
				problems = append(problems, "docstore.bucket is required for the s3 driver")
			}
		default:
			problems = append(problems, "docstore.driver must be local or s3, got "+quote(c.Docstore.Driver))
		}

		if c.Intake.MinStatements < 0 {
			problems = append(problems, "intake.min_statements must not be negative")
		}
	}

	if mode == "tracker" && !c.Notion.Enabled() {
		problems = append(problems, "notion.token and notion.deal_db are required")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be positive")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func quote(s string) string {
	return "\"" + s + "\""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
