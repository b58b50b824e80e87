package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/infra/mqtt"
	"github.com/kilianp07/chpdispatch/infra/solver"
)

// ErrUnknownSite is returned for a site that is neither built in nor configured.
var ErrUnknownSite = errors.New("unknown site")

type Config struct {
	LogLevel string                `json:"log_level"`
	Sites    map[string]SiteConfig `json:"sites"`
	Dispatch dispatch.Config       `json:"dispatch"`
	Solver   solver.Config         `json:"solver"`
	MQTT     mqtt.Config           `json:"mqtt"`
	Metrics  metrics.Config        `json:"metrics"`
	Logging  LoggingConfig         `json:"logging"`
	HTTP     HTTPConfig            `json:"http"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Sites = withBuiltinSites(c.Sites)
	c.Dispatch.SetDefaults()
	c.Solver.SetDefaults()
	c.Logging.SetDefaults()
	c.HTTP.SetDefaults()
	if c.MQTT.Enabled {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	for name, s := range c.Sites {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("site %s: %w", name, err)
		}
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.MQTT.Enabled {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Site returns the named site or an error listing the known ones.
func (c *Config) Site(name string) (SiteConfig, error) {
	s, ok := c.Sites[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownSite, name, strings.Join(c.SiteNames(), ", "))
	}
	return s, nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
