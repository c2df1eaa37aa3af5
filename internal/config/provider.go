package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"vlmcheck/internal/common/fsutil"
)

// Options controls where a Provider reads settings from.
type Options struct {
	// ConfigPath is an optional yaml/json/toml file. When empty,
	// VLMCHECK_CONFIG is consulted.
	ConfigPath string
	// EnvFile is a dotenv file whose values apply only to variables the
	// process environment does not already set. Defaults to ".env"; a
	// missing file is not an error.
	EnvFile string
	// Lookup resolves environment variables. Defaults to os.LookupEnv.
	Lookup LookupFunc
}

// Provider resolves Settings once and hands out the same snapshot afterwards.
type Provider struct {
	opts     Options
	once     sync.Once
	settings Settings
	err      error
}

// NewProvider returns a Provider for opts. Nothing is read until Get.
func NewProvider(opts Options) *Provider {
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	return &Provider{opts: opts}
}

// Get loads settings on first use and returns a copy of the memoized result.
func (p *Provider) Get() (Settings, error) {
	p.once.Do(func() {
		p.settings, p.err = Load(p.opts)
	})
	if p.err != nil {
		return Settings{}, p.err
	}
	return p.settings.clone(), nil
}

var defaultProvider = NewProvider(Options{})

// Get returns the process-wide settings resolved from the environment.
func Get() (Settings, error) { return defaultProvider.Get() }

// Load resolves settings without memoization: defaults, then the config
// file, then the environment (process first, dotenv second). The result is
// validated.
func Load(opts Options) (Settings, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.EnvFile != "" {
		dot, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
		lookup = withFallback(lookup, dot)
	}

	s := Defaults()

	path := opts.ConfigPath
	if path == "" {
		path, _ = lookup("VLMCHECK_CONFIG")
	}
	if path != "" {
		expanded, err := fsutil.ExpandHome(path)
		if err != nil {
			return Settings{}, err
		}
		fc, err := LoadFile(expanded)
		if err != nil {
			return Settings{}, fmt.Errorf("load config: %w", err)
		}
		fc.apply(&s)
	}

	if err := applyEnv(&s, lookup); err != nil {
		return Settings{}, fmt.Errorf("invalid environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// withFallback consults primary first and falls back to values.
func withFallback(primary LookupFunc, values map[string]string) LookupFunc {
	if len(values) == 0 {
		return primary
	}
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}
}
