// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads and validates the pipeline configuration.
//
// Values come, in increasing precedence, from defaults, a doitools.yaml
// file, and DOITOOLS_* environment variables (a .env file in the working
// directory is loaded into the environment first). Credentials come from
// the secrets directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/internal/resolve"
	"github.com/kmccurley/cryptobib/internal/secrets"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// EnvPrefix prefixes every environment variable read by viper.
const EnvPrefix = "DOITOOLS"

// Name is the configuration file base name.
const Name = "doitools"

// DefaultBibFiles are the cryptobib sources, relative to the tools
// directory: abbreviations, then conference list, then entries.
var DefaultBibFiles = []string{
	"../db/abbrev0.bib",
	"../db/crypto_conf_list.bib",
	"../db/crypto_db.bib",
}

// SetDefaults registers the default value of every configuration key.
// Keys without a meaningful default are still registered so that
// AutomaticEnv can supply them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("detect.bib_files", DefaultBibFiles)

	v.SetDefault("lookup.crossref.base_url", "https://api.crossref.org/works")
	v.SetDefault("lookup.crossref.mailto", "")
	v.SetDefault("lookup.crossref.user_agent", "")
	v.SetDefault("lookup.crossref.timeout", "30s")
	v.SetDefault("lookup.crossref.rate_limit", 2.0)
	v.SetDefault("lookup.crossref.max_retries", 3)
	v.SetDefault("lookup.crossref.max_pages", 1)
	v.SetDefault("lookup.num_results", 3)
	v.SetDefault("lookup.num_records", 10000)

	v.SetDefault("resolve.rules.max_title_distance", resolve.DefaultMaxTitleDistance)
	v.SetDefault("resolve.rules.venue_separator", resolve.DefaultVenueSeparator)
	v.SetDefault("resolve.rules.strategy", string(types.StrategyFirst))
	v.SetDefault("resolve.ledger_path", "")

	v.SetDefault("patch.bib_file", DefaultBibFiles[len(DefaultBibFiles)-1])

	logging := observability.DefaultLoggingConfig()
	v.SetDefault("logging.level", logging.Level)
	v.SetDefault("logging.format", logging.Format)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads the configuration file. An explicit path must exist;
// otherwise doitools.yaml is searched in each of paths and a missing file
// is not an error. It returns the file used, or "".
func ReadFile(v *viper.Viper, path string, paths ...string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// LoadDotEnv loads KEY=value lines from path into the environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load decodes v into a PipelineConfig, applies the secrets, and validates
// the result.
func Load(v *viper.Viper, secretValues map[string]string) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	secrets.ApplyCrossref(&cfg.Lookup.Crossref, secretValues)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the strip phrase patterns.
func Validate(cfg types.PipelineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := resolve.NewNormalizer(cfg.Resolve.Rules.StripPhrases); err != nil {
		return fmt.Errorf("invalid config: resolve.rules.strip_phrases: %w", err)
	}
	return nil
}
