// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory|redis
	Shards        int           `yaml:"shards"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RetentionConfig struct {
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
}

type StableDiffusionConfig struct {
	URL               string        `yaml:"url"`
	Timeout           time.Duration `yaml:"timeout"`
	Steps             int           `yaml:"steps"`
	CFGScale          float64       `yaml:"cfg_scale"`
	Sampler           string        `yaml:"sampler"`
	DenoisingStrength float64       `yaml:"denoising_strength"`
	ControlNetModel   string        `yaml:"controlnet_model"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	Size   string `yaml:"size"`
}

type GenerationConfig struct {
	Provider           string                `yaml:"provider"` // stable_diffusion|gemini|openai|noop
	ConcurrentLimit    int                   `yaml:"concurrent_limit"`
	QueueSize          int                   `yaml:"queue_size"`
	FailOrphansOnStart bool                  `yaml:"fail_orphans_on_start"`
	InstanceID         string                `yaml:"instance_id"` // stable per replica; scopes orphan failing
	StableDiffusion    StableDiffusionConfig `yaml:"stable_diffusion"`
	Gemini             GeminiConfig          `yaml:"gemini"`
	OpenAI             OpenAIConfig          `yaml:"openai"`
}

type StorageConfig struct {
	UploadDir  string `yaml:"upload_dir"`
	PublicPath string `yaml:"public_path"`
}

type AdminConfig struct {
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type TelegramNotifyConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type NotifyConfig struct {
	Telegram TelegramNotifyConfig `yaml:"telegram"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Retention  RetentionConfig  `yaml:"retention"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Admin      AdminConfig      `yaml:"admin"`
	Notify     NotifyConfig     `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. Values of the form ${VAR} are
// expanded from the environment, after .env files in the working directory
// have been loaded (existing variables win).
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse expands environment references in raw, decodes it, applies defaults
// and validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	cfg.Server.ReadTimeout = orDuration(cfg.Server.ReadTimeout, 30*time.Second)
	cfg.Server.WriteTimeout = orDuration(cfg.Server.WriteTimeout, 60*time.Second)
	cfg.Server.ShutdownTimeout = orDuration(cfg.Server.ShutdownTimeout, 30*time.Second)
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "job:"
	}

	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	cfg.Cache.TTL = orDuration(cfg.Cache.TTL, time.Hour)
	cfg.Cache.SweepInterval = orDuration(cfg.Cache.SweepInterval, time.Hour)

	cfg.Retention.MaxAge = orDuration(cfg.Retention.MaxAge, 30*24*time.Hour)
	cfg.Retention.SweepInterval = orDuration(cfg.Retention.SweepInterval, 24*time.Hour)
	cfg.Retention.LockTTL = orDuration(cfg.Retention.LockTTL, 10*time.Minute)

	g := &cfg.Generation
	g.Provider = strings.ToLower(strings.TrimSpace(g.Provider))
	if g.Provider == "" {
		g.Provider = "stable_diffusion"
	}
	if g.ConcurrentLimit <= 0 {
		g.ConcurrentLimit = 4
	}
	if g.QueueSize <= 0 {
		g.QueueSize = 256
	}
	if g.StableDiffusion.URL == "" {
		g.StableDiffusion.URL = "http://localhost:7860"
	}
	g.StableDiffusion.Timeout = orDuration(g.StableDiffusion.Timeout, 5*time.Minute)
	if g.StableDiffusion.Steps <= 0 {
		g.StableDiffusion.Steps = 50
	}
	if g.StableDiffusion.CFGScale <= 0 {
		g.StableDiffusion.CFGScale = 7.5
	}
	if g.StableDiffusion.Sampler == "" {
		g.StableDiffusion.Sampler = "DPM++ 2M Karras"
	}
	if g.StableDiffusion.DenoisingStrength <= 0 {
		g.StableDiffusion.DenoisingStrength = 0.75
	}
	if g.StableDiffusion.ControlNetModel == "" {
		g.StableDiffusion.ControlNetModel = "control_v11f1p_sd15_depth [cfd03158]"
	}
	if g.Gemini.Model == "" {
		g.Gemini.Model = "gemini-2.5-flash-image"
	}
	if g.OpenAI.Model == "" {
		g.OpenAI.Model = "dall-e-3"
	}
	if g.OpenAI.Size == "" {
		g.OpenAI.Size = "1024x1024"
	}

	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}
	if cfg.Storage.PublicPath == "" {
		cfg.Storage.PublicPath = "/api/images"
	}
	cfg.Admin.TokenTTL = orDuration(cfg.Admin.TokenTTL, 30*time.Minute)
}

// Validate performs the minimal checks needed to start the service.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend)
	}
	switch c.Generation.Provider {
	case "stable_diffusion", "noop":
	case "gemini":
		if c.Generation.Gemini.APIKey == "" {
			return errors.New("generation.gemini.api_key is required")
		}
	case "openai":
		if c.Generation.OpenAI.APIKey == "" {
			return errors.New("generation.openai.api_key is required")
		}
	default:
		return fmt.Errorf("generation.provider %q is not supported", c.Generation.Provider)
	}
	if c.Generation.FailOrphansOnStart && c.Cache.Backend == "redis" && c.Generation.InstanceID == "" {
		return errors.New("generation.instance_id is required when fail_orphans_on_start is used with the redis cache backend")
	}
	if c.Admin.APIKey != "" && len(c.Admin.JWTSecret) < 16 {
		return errors.New("admin.jwt_secret must be at least 16 characters when admin.api_key is set")
	}
	return nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
