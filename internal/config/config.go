// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Browser BrowserConfig `mapstructure:"browser"`
	Capture CaptureConfig `mapstructure:"capture"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// BrowserConfig configures each worker's Chrome process.
type BrowserConfig struct {
	ExecPath    string        `mapstructure:"exec_path"`
	Headless    bool          `mapstructure:"headless"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	DownloadDir string        `mapstructure:"download_dir"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// CaptureConfig governs element discovery and screenshot annotation.
type CaptureConfig struct {
	Bounded       bool          `mapstructure:"bounded"`
	DrawBoxes     bool          `mapstructure:"draw_boxes"`
	ScrapeHover   bool          `mapstructure:"scrape_hover"`
	HoverStrategy string        `mapstructure:"hover_strategy"`
	LeafCheck     string        `mapstructure:"leaf_check"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	BoxWidth      int           `mapstructure:"box_width"`
}

// CrawlConfig controls URL selection and the worker pool.
type CrawlConfig struct {
	CDXPath         string  `mapstructure:"cdx_path"`
	OutRoot         string  `mapstructure:"out_root"`
	Batch           int     `mapstructure:"batch"`
	NumWorkers      int     `mapstructure:"num_workers"`
	Seed            int64   `mapstructure:"seed"`
	NumURLs         int     `mapstructure:"num_urls"`
	RestartInterval int     `mapstructure:"restart_interval"`
	MaxQPS          float64 `mapstructure:"max_qps"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig sets the listen address of the metrics server. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig enables the GCS screenshot mirror when a bucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig enables the Postgres element mirror when a DSN is set.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for per-page notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	// DryRun logs notices locally instead of publishing them.
	DryRun    bool   `mapstructure:"dry_run"`
}

// Load builds a Config from defaults, the optional file at path, the
// environment and any changed flags. flags maps config keys to CLI flags.
func Load(path string, flags map[string]*pflag.Flag) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

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
	// Keys without a meaningful default are still registered so Unmarshal sees
	// their environment overrides.
	for _, key := range []string{
		"browser.exec_path", "browser.user_agent", "crawl.cdx_path", "metrics.addr",
		"storage.gcs_bucket", "db.dsn", "pubsub.project_id", "pubsub.topic_name",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1920)
	v.SetDefault("browser.height", 1080)
	v.SetDefault("browser.wait_timeout", 10*time.Second)
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.download_dir", "./downloads")
	v.SetDefault("capture.bounded", false)
	v.SetDefault("capture.draw_boxes", false)
	v.SetDefault("capture.scrape_hover", false)
	v.SetDefault("capture.hover_strategy", "attribute")
	v.SetDefault("capture.leaf_check", "markup")
	v.SetDefault("capture.settle_delay", 2*time.Second)
	v.SetDefault("capture.box_width", 2)
	v.SetDefault("crawl.out_root", "./data/tasks")
	v.SetDefault("crawl.batch", 0)
	v.SetDefault("crawl.num_workers", 20)
	v.SetDefault("crawl.seed", 42)
	v.SetDefault("crawl.num_urls", 10000)
	v.SetDefault("crawl.restart_interval", 100)
	v.SetDefault("crawl.max_qps", 0.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("db.table", "page_elements")
	v.SetDefault("db.max_conns", 0)
	v.SetDefault("pubsub.dry_run", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser.width and browser.height must be > 0")
	}
	if c.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout must be > 0")
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	switch c.Capture.HoverStrategy {
	case "attribute", "diff":
	default:
		return fmt.Errorf("capture.hover_strategy must be attribute or diff, got %q", c.Capture.HoverStrategy)
	}
	switch c.Capture.LeafCheck {
	case "markup", "structural":
	default:
		return fmt.Errorf("capture.leaf_check must be markup or structural, got %q", c.Capture.LeafCheck)
	}
	if c.Capture.SettleDelay < 0 {
		return fmt.Errorf("capture.settle_delay must be >= 0")
	}
	if c.Capture.BoxWidth <= 0 {
		return fmt.Errorf("capture.box_width must be > 0")
	}
	if c.Crawl.NumWorkers <= 0 {
		return fmt.Errorf("crawl.num_workers must be > 0")
	}
	if c.Crawl.NumURLs <= 0 {
		return fmt.Errorf("crawl.num_urls must be > 0")
	}
	if c.Crawl.Batch < 0 {
		return fmt.Errorf("crawl.batch must be >= 0")
	}
	if c.Crawl.RestartInterval < 0 {
		return fmt.Errorf("crawl.restart_interval must be >= 0")
	}
	if c.Crawl.MaxQPS < 0 {
		return fmt.Errorf("crawl.max_qps must be >= 0")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.PubSub.DryRun {
		if c.PubSub.ProjectID != "" {
			return fmt.Errorf("pubsub.dry_run cannot be combined with pubsub.project_id")
		}
	} else if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// SliceStart is the index of the first URL of the configured batch.
func (c CrawlConfig) SliceStart() int {
	return c.Batch * c.NumURLs
}

// OutputDir is the directory holding the configured batch's files.
func (c CrawlConfig) OutputDir() string {
	return filepath.Join(c.OutRoot, fmt.Sprintf("tasks%d", c.Batch))
}
