package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"superstore/internal/engine"
)

// Prefix of every environment variable, e.g. SUPERSTORE_DATA_PATH.
const Prefix = "SUPERSTORE"

// Config is the service configuration.
type Config struct {
	Addr     string `yaml:"addr" envconfig:"ADDR" default:":8080"`
	DataPath string `yaml:"data_path" envconfig:"DATA_PATH" default:"Sample - Superstore.csv"`
	// Encoding of the source file; the public Superstore sample is Latin-1.
	Encoding string `yaml:"encoding" envconfig:"ENCODING" default:"latin1"`
	Watch    bool   `yaml:"watch" envconfig:"WATCH" default:"true"`

	DiscountBins  []float64 `yaml:"discount_bins" envconfig:"DISCOUNT_BINS" default:"0,0.1,0.2,0.3,0.4,0.5,1.0"`
	HistogramBins int       `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS" default:"30"`
	LossDiscount  float64   `yaml:"loss_discount" envconfig:"LOSS_DISCOUNT" default:"0.3"`

	Log LogConfig `yaml:"log" envconfig:"LOG"`
}

// LogConfig configures the gommon logger.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"text"`
}

// Load resolves the configuration with precedence defaults < YAML file named
// by SUPERSTORE_CONFIG_FILE < environment, then validates.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := os.Getenv(Prefix + "_CONFIG_FILE"); path != "" {
		fromEnv := cfg
		if err := cfg.overlayFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg.restoreEnv(&fromEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// overlayFile replaces fields that are set in the YAML file.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// restoreEnv copies back from env every field whose variable is set.
func (c *Config) restoreEnv(env *Config) {
	set := func(name string) bool {
		_, ok := os.LookupEnv(Prefix + "_" + name)
		return ok
	}
	if set("ADDR") {
		c.Addr = env.Addr
	}
	if set("DATA_PATH") {
		c.DataPath = env.DataPath
	}
	if set("ENCODING") {
		c.Encoding = env.Encoding
	}
	if set("WATCH") {
		c.Watch = env.Watch
	}
	if set("DISCOUNT_BINS") {
		c.DiscountBins = env.DiscountBins
	}
	if set("HISTOGRAM_BINS") {
		c.HistogramBins = env.HistogramBins
	}
	if set("LOSS_DISCOUNT") {
		c.LossDiscount = env.LossDiscount
	}
	if set("LOG_LEVEL") {
		c.Log.Level = env.Log.Level
	}
	if set("LOG_FORMAT") {
		c.Log.Format = env.Log.Format
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data path is required")
	}
	if _, err := engine.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if _, err := engine.NewBins(c.DiscountBins); err != nil {
		return err
	}
	if c.HistogramBins < 1 {
		return fmt.Errorf("histogram bins must be positive, got %d", c.HistogramBins)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// DashboardOptions derives the engine options.
func (c *Config) DashboardOptions() engine.DashboardOptions {
	return engine.DashboardOptions{
		DiscountBins:  engine.Bins(c.DiscountBins),
		HistogramBins: c.HistogramBins,
		LossDiscount:  c.LossDiscount,
	}
}

// Loader builds the engine loader for the configured encoding.
func (c *Config) Loader() engine.Loader {
	enc, _ := engine.ParseEncoding(c.Encoding)
	return engine.Loader{Encoding: enc}
}
