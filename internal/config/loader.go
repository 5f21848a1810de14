package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of every environment override.
const envPrefix = "DEALSCOPE"

// Sentinel errors returned (wrapped) by the loaders.
var (
	ErrConfigFileNotFound = stderrors.New("config file not found")
	ErrConfigParseError   = stderrors.New("config parse error")
	ErrConfigValidation   = stderrors.New("config validation failed")
)

// newViper returns a viper with YAML files, the DEALSCOPE_ env prefix and
// "." → "_" key mapping, so "database.host" reads DEALSCOPE_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaultValues() {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads the YAML file at path, applies DEALSCOPE_* overrides and
// defaults, and validates the result.  An empty path behaves as LoadFromEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &pathErr) || stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigFileNotFound, path, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, path, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from DEALSCOPE_* variables and defaults alone.
//
//	DEALSCOPE_<SECTION>_<FIELD>   e.g.  DEALSCOPE_DATABASE_HOST
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// Watch calls onChange with the re-parsed Config each time the file at path
// changes.  Changes that fail to parse or validate are passed to onError
// (when non-nil) and onChange is skipped.  Only settings that are safe to
// change at runtime, such as log.level, should be applied by callers.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigFileNotFound, path, err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load that panics; for main() only.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
