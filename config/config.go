package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"kidneyserve/logging"
)

const DefaultPort = 5000

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Artifacts struct {
		Source string `yaml:"source"`
		Path   string `yaml:"path"`
		Watch  bool   `yaml:"watch"`
	} `yaml:"artifacts"`
	Pipeline struct {
		UnknownCategoryPolicy string `yaml:"unknown_category_policy"`
		ImputeAbsent          bool   `yaml:"impute_absent"`
	} `yaml:"pipeline"`
	Monitoring struct {
		FallbackLogSize int `yaml:"fallback_log_size"`
	} `yaml:"monitoring"`
	Log logging.Config `yaml:"log"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Http.Port = DefaultPort
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Http.AllowedOrigins = []string{"*"}
	cfg.Artifacts.Source = "dir"
	cfg.Artifacts.Path = "artifacts"
	cfg.Pipeline.UnknownCategoryPolicy = "fallback"
	cfg.Monitoring.FallbackLogSize = 256
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the YAML file at path over the defaults, then applies .env and environment
// overrides. A missing file is not an error: the service runs on defaults and env alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be a number, got %q", v)
		}
		cfg.Http.Port = port
	}
	cfg.Artifacts.Source = getEnv("ARTIFACTS_SOURCE", cfg.Artifacts.Source)
	cfg.Artifacts.Path = getEnv("ARTIFACTS_PATH", cfg.Artifacts.Path)
	cfg.Pipeline.UnknownCategoryPolicy = getEnv("UNKNOWN_CATEGORY_POLICY", cfg.Pipeline.UnknownCategoryPolicy)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Http.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.Http.Port)
	}
	if c.Http.Timeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	if c.Http.MaxBodyBytes <= 0 {
		return errors.New("http max_body_bytes must be positive")
	}
	if c.Artifacts.Path == "" {
		return errors.New("artifacts path is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
