package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Enhancer  EnhancerConfig  `yaml:"enhancer"`
	Video     VideoConfig     `yaml:"video"`
	Instagram InstagramConfig `yaml:"instagram"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	SlowRequest     time.Duration `yaml:"slow_request"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type EnhancerConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float64       `yaml:"temperature"`
	TopP             float64       `yaml:"top_p"`
	SuggestMaxTokens int           `yaml:"suggest_max_tokens"`
	SuggestTemp      float64       `yaml:"suggest_temperature"`
	Timeout          time.Duration `yaml:"timeout"`
}

type VideoConfig struct {
	BaseURL      string        `yaml:"base_url"`
	MotionLevel  string        `yaml:"motion_level"`
	Quality      string        `yaml:"quality"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Timeout      time.Duration `yaml:"timeout"`
}

type InstagramConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIVersion   string        `yaml:"api_version"`
	ThumbOffset  int           `yaml:"thumb_offset_ms"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Timeout      time.Duration `yaml:"timeout"`
}

type YouTubeConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	CategoryID      string        `yaml:"category_id"`
	DefaultLanguage string        `yaml:"default_language"`
	PrivacyStatus   string        `yaml:"privacy_status"`
	BaseTags        []string      `yaml:"base_tags"`
	MaxTags         int           `yaml:"max_tags"`
	MadeForKids     bool          `yaml:"made_for_kids"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

type PipelineConfig struct {
	Parallel bool `yaml:"parallel"`
}

// Default returns the settings used when no file overrides them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			SlowRequest:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Enhancer: EnhancerConfig{
			BaseURL:          "https://api.perplexity.ai",
			Model:            "sonar-pro",
			MaxTokens:        1000,
			Temperature:      0.8,
			TopP:             0.9,
			SuggestMaxTokens: 800,
			SuggestTemp:      0.7,
			Timeout:          60 * time.Second,
		},
		Video: VideoConfig{
			BaseURL:      "https://api.runwayml.com/v1",
			MotionLevel:  "medium",
			Quality:      "high",
			PollInterval: 10 * time.Second,
			MaxAttempts:  60,
			Timeout:      30 * time.Second,
		},
		Instagram: InstagramConfig{
			BaseURL:      "https://graph.instagram.com",
			APIVersion:   "v18.0",
			ThumbOffset:  2000,
			PollInterval: 5 * time.Second,
			MaxAttempts:  20,
			Timeout:      30 * time.Second,
		},
		YouTube: YouTubeConfig{
			CategoryID:      "22",
			DefaultLanguage: "zh-TW",
			PrivacyStatus:   "public",
			BaseTags:        []string{"AI", "automation", "shorts", "tutorial"},
			MaxTags:         10,
			DownloadTimeout: 10 * time.Minute,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file at
// DefaultPath is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pollers and clients cannot work with.
func (c *Config) Validate() error {
	if c.Video.MaxAttempts <= 0 {
		return errors.New("video.max_attempts must be positive")
	}
	if c.Instagram.MaxAttempts <= 0 {
		return errors.New("instagram.max_attempts must be positive")
	}
	if c.Video.PollInterval < 0 || c.Instagram.PollInterval < 0 {
		return errors.New("poll intervals must not be negative")
	}
	if c.YouTube.MaxTags <= 0 {
		return errors.New("youtube.max_tags must be positive")
	}
	return nil
}
