// Package config loads and validates aozorafetch configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all tool configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Unpack  UnpackConfig  `mapstructure:"unpack"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SourceConfig identifies the library site being mirrored.
type SourceConfig struct {
	// AuthorURL is the works-listing page whose card links seed a run.
	AuthorURL string `mapstructure:"author_url"`
	// BaseURL resolves relative hrefs found on the author page.
	BaseURL string `mapstructure:"base_url"`
	// PageEncoding is assumed for HTML pages served without a charset.
	PageEncoding string `mapstructure:"page_encoding"`
}

// FetchConfig governs the link collector and archive downloader.
type FetchConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Delay           time.Duration `mapstructure:"delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	OutputDir       string        `mapstructure:"output_dir"`
}

// UnpackConfig governs archive extraction and text conversion.
type UnpackConfig struct {
	InputDir  string   `mapstructure:"input_dir"`
	OutputDir string   `mapstructure:"output_dir"`
	TextExts  []string `mapstructure:"text_exts"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AOZORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.author_url", "https://www.aozora.gr.jp/index_pages/person1403.html")
	v.SetDefault("source.base_url", "https://www.aozora.gr.jp/")
	v.SetDefault("source.page_encoding", "shift_jis")
	v.SetDefault("fetch.user_agent", "aozorafetch/1.0 (+https://github.com/aozoratools/aozorafetch)")
	v.SetDefault("fetch.delay", "500ms")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.download_timeout", "60s")
	v.SetDefault("fetch.output_dir", "data/zips")
	v.SetDefault("unpack.input_dir", "data/zips")
	v.SetDefault("unpack.output_dir", "data/utf8")
	v.SetDefault("unpack.text_exts", []string{".txt", ".htm", ".html"})
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9091)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.AuthorURL == "" {
		return fmt.Errorf("source.author_url must be set")
	}
	if _, err := url.Parse(c.Source.AuthorURL); err != nil {
		return fmt.Errorf("source.author_url is not a valid URL: %w", err)
	}
	base, err := url.Parse(c.Source.BaseURL)
	if err != nil || !base.IsAbs() {
		return fmt.Errorf("source.base_url must be an absolute URL")
	}
	if c.Source.PageEncoding == "" {
		return fmt.Errorf("source.page_encoding must be set")
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	if c.Fetch.Delay < 0 {
		return fmt.Errorf("fetch.delay must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.DownloadTimeout <= 0 {
		return fmt.Errorf("fetch.download_timeout must be > 0")
	}
	if c.Fetch.OutputDir == "" {
		return fmt.Errorf("fetch.output_dir must be set")
	}
	if c.Unpack.InputDir == "" {
		return fmt.Errorf("unpack.input_dir must be set")
	}
	if c.Unpack.OutputDir == "" {
		return fmt.Errorf("unpack.output_dir must be set")
	}
	if len(c.Unpack.TextExts) == 0 {
		return fmt.Errorf("unpack.text_exts must include at least one extension")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}

// BaseURL returns the parsed source base URL.
// Validate guarantees it parses, so errors are ignored here.
func (c Config) BaseURL() *url.URL {
	u, _ := url.Parse(c.Source.BaseURL)
	return u
}
