package cli

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/treepredict"
)

// EnvPrefix prefixes environment overrides, e.g. TREEPREDICT_LOG_LEVEL.
const EnvPrefix = "TREEPREDICT_"

// Config is the merged CLI configuration.
type Config struct {
	Separator         string `koanf:"separator"`
	LogLevel          string `koanf:"log_level"`
	Verify            bool   `koanf:"verify"`
	ParallelThreshold int    `koanf:"parallel_threshold"`
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// findConfigFile returns explicit, or treepredict.yaml / treepredict.yml in
// the working directory if present.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"treepredict.yaml", "treepredict.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadConfig merges, lowest first: defaults, config file, TREEPREDICT_*
// environment variables, explicitly set flags.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"separator":          string(stackmachine.DefaultSeparator),
		"log_level":          "info",
		"verify":             true,
		"parallel_threshold": treepredict.DefaultParallelThreshold,
	}, "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", configFileUsed)
		}
	}

	// TREEPREDICT_PARALLEL_THRESHOLD -> parallel_threshold
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Separator) != 1 {
		return errors.NewValidationError("separator", "must be a single byte", c.Separator)
	}
	if err := stackmachine.CheckSeparator(c.Separator[0]); err != nil {
		return err
	}
	if c.ParallelThreshold < 0 {
		return errors.NewValidationError("parallel_threshold", "must be non-negative", c.ParallelThreshold)
	}
	return nil
}

// SeparatorByte returns the configured separator.
func (c *Config) SeparatorByte() byte {
	return c.Separator[0]
}

// Options converts the configuration into evaluator options.
func (c *Config) Options() []treepredict.Option {
	return []treepredict.Option{
		treepredict.WithSeparator(c.SeparatorByte()),
		treepredict.WithVerify(c.Verify),
		treepredict.WithParallelThreshold(c.ParallelThreshold),
	}
}

// ConfigFileUsed returns the config file loaded by the last LoadConfig call.
func ConfigFileUsed() string {
	return configFileUsed
}

// ResetConfig clears loaded state. Used by tests.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}
