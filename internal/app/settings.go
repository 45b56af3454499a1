package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// SettingsFileName is the default settings file looked up in the working
// directory.
const SettingsFileName = "tfgraph.yaml"

// SettingsFileNameAlt is the alternate settings file name.
const SettingsFileNameAlt = "tfgraph.yml"

// EnvPrefix is the prefix of environment variables that feed settings, e.g.
// TFGRAPH_LOG_LEVEL.
const EnvPrefix = "TFGRAPH_"

// Settings are the process-level knobs, as opposed to the per-run Config.
// Precedence, highest first: flags, environment, settings file, defaults.
type Settings struct {
	LogLevel         string        `koanf:"log_level"`
	LogFormat        string        `koanf:"log_format"`
	FetchTimeout     time.Duration `koanf:"fetch_timeout"`
	MaxResolvePasses int           `koanf:"max_resolve_passes"`
}

// LoadSettings layers the settings sources. cfgFile overrides the default
// file lookup; flags may be nil.
func LoadSettings(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log_level":          "info",
		"log_format":         "text",
		"fetch_timeout":      "30s",
		"max_resolve_passes": 0,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findSettingsFile()
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading settings file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		// Flags spell settings with dashes; only explicitly set flags
		// participate so defaults do not mask the lower tiers.
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

func findSettingsFile() string {
	for _, name := range []string{SettingsFileName, SettingsFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
