package snippetdna

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/fingerprint"
)

// DefaultThreshold is the minimum similarity reported as a match.
const DefaultThreshold = 0.85

// DefaultParallelThreshold is the template count above which comparisons fan out.
const DefaultParallelThreshold = 16

type Config struct {
	DBPath            string
	SampleRate        int
	WindowSize        int
	HopSize           int
	FFTSize           int
	NumFilters        int
	Threshold         float64
	Workers           int
	ParallelThreshold int
	Logger            Logger
	Storage           Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithThreshold sets the detection threshold in [0, 1].
func WithThreshold(threshold float64) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

// WithWindow sets the analysis window and hop, both in samples.
func WithWindow(window, hop int) Option {
	return func(c *Config) {
		c.WindowSize = window
		c.HopSize = hop
		for c.FFTSize < window {
			c.FFTSize *= 2
		}
	}
}

func WithMelFilters(n int) Option {
	return func(c *Config) {
		c.NumFilters = n
	}
}

// WithWorkers bounds the goroutines used to compare templates.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithParallelThreshold(n int) Option {
	return func(c *Config) {
		c.ParallelThreshold = n
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:            "snippetdna.sqlite3",
		SampleRate:        fingerprint.SampleRate,
		WindowSize:        fingerprint.WindowSize,
		HopSize:           fingerprint.HopSize,
		FFTSize:           fingerprint.FFTSize,
		NumFilters:        fingerprint.NumFilters,
		Threshold:         DefaultThreshold,
		Workers:           runtime.GOMAXPROCS(0),
		ParallelThreshold: DefaultParallelThreshold,
		Logger:            nil,
	}
}

func newConfig(opts []Option) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.3f outside [0, 1]", ErrInvalidInput, c.Threshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidInput)
	}
	if c.ParallelThreshold < 1 {
		return fmt.Errorf("%w: parallel threshold must be at least 1", ErrInvalidInput)
	}
	if err := c.extractorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (c *Config) extractorConfig() fingerprint.Config {
	return fingerprint.Config{
		SampleRate: c.SampleRate,
		WindowSize: c.WindowSize,
		HopSize:    c.HopSize,
		FFTSize:    c.FFTSize,
		NumFilters: c.NumFilters,
	}
}

// FileConfig is the on-disk form of the settings shared by the commands.
// Zero values leave the defaults in place.
type FileConfig struct {
	DBPath            string  `yaml:"db_path,omitempty"`
	LogLevel          string  `yaml:"log_level,omitempty"`
	SampleRate        int     `yaml:"sample_rate,omitempty"`
	Threshold         float64 `yaml:"threshold,omitempty"`
	Window            int     `yaml:"window,omitempty"`
	Hop               int     `yaml:"hop,omitempty"`
	MelFilters        int     `yaml:"mel_filters,omitempty"`
	Workers           int     `yaml:"workers,omitempty"`
	ParallelThreshold int     `yaml:"parallel_threshold,omitempty"`
	Listen            string  `yaml:"listen,omitempty"`
}

// LoadConfigFile reads a YAML config. An empty path checks SNIPPET_CONFIG and
// yields an empty FileConfig when neither is set.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		path = os.Getenv("SNIPPET_CONFIG")
	}
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading config %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fc, nil
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if (fc.Window == 0) != (fc.Hop == 0) {
		return fc, errors.New("config: window and hop must be set together")
	}
	return fc, nil
}

// Options converts the non-zero fields of fc into engine options.
func (fc FileConfig) Options() []Option {
	var opts []Option
	if fc.DBPath != "" {
		opts = append(opts, WithDBPath(fc.DBPath))
	}
	if fc.SampleRate > 0 {
		opts = append(opts, WithSampleRate(fc.SampleRate))
	}
	if fc.Threshold > 0 {
		opts = append(opts, WithThreshold(fc.Threshold))
	}
	if fc.Window > 0 && fc.Hop > 0 {
		opts = append(opts, WithWindow(fc.Window, fc.Hop))
	}
	if fc.MelFilters > 0 {
		opts = append(opts, WithMelFilters(fc.MelFilters))
	}
	if fc.Workers > 0 {
		opts = append(opts, WithWorkers(fc.Workers))
	}
	if fc.ParallelThreshold > 0 {
		opts = append(opts, WithParallelThreshold(fc.ParallelThreshold))
	}
	return opts
}
