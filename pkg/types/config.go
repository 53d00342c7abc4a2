// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// CrossrefConfig holds settings for the Crossref works API.
type CrossrefConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the works endpoint (default https://api.crossref.org/works).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Mailto identifies the caller for Crossref's polite pool.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto" validate:"omitempty,email"`

	// PlusToken is an optional Crossref Plus API token. Loaded from secrets only.
	PlusToken string `json:"-" yaml:"-" mapstructure:"-"`

	// RateLimit is the maximum number of requests per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`

	// MaxRetries bounds the retries on HTTP 429 responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// MaxPages bounds how many result pages are read per query when filtering
	// drops results.
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages" validate:"gte=1"`
}

// DetectConfig holds settings for the detect stage.
type DetectConfig struct {
	// BibFiles are parsed as one concatenated bibliography, in order, so that
	// string macros defined in earlier files resolve in later ones.
	BibFiles []string `json:"bib_files" yaml:"bib_files" mapstructure:"bib_files"`
}

// LookupConfig holds settings for the lookup stage.
type LookupConfig struct {
	Crossref CrossrefConfig `json:"crossref" yaml:"crossref" mapstructure:"crossref"`

	// NumResults is the number of retained candidates per record (K).
	NumResults int `json:"num_results" yaml:"num_results" mapstructure:"num_results" validate:"gte=1"`

	// NumRecords is the default window size when --num_records is not given.
	NumRecords int `json:"num_records" yaml:"num_records" mapstructure:"num_records" validate:"gte=1"`
}

// MatchStrategy selects how the resolver picks among acceptable candidates.
type MatchStrategy string

const (
	// StrategyFirst accepts the first candidate, in rank order, that passes
	// every gate.
	StrategyFirst MatchStrategy = "first"

	// StrategyClosest scores every candidate and accepts the one with the
	// smallest title distance among those passing every gate.
	StrategyClosest MatchStrategy = "closest"
)

// VenuePrefixes is one row of the venue table in configuration files.
type VenuePrefixes struct {
	Venue    string   `json:"venue" yaml:"venue" mapstructure:"venue" validate:"required"`
	Prefixes []string `json:"prefixes" yaml:"prefixes" mapstructure:"prefixes" validate:"min=1,dive,required"`
}

// MatchRules are the corpus-specific constants of the resolver. Zero values
// are replaced by the cryptobib defaults.
type MatchRules struct {
	// VenuePrefixes maps a citation-key venue token to acceptable DOI
	// registrant prefixes.
	VenuePrefixes map[string][]string `json:"venue_prefixes,omitempty" yaml:"venue_prefixes,omitempty" mapstructure:"-"`

	// StripPhrases are case-insensitive regular expressions removed from
	// titles before comparison (e.g. "(Extended Abstract)").
	StripPhrases []string `json:"strip_phrases,omitempty" yaml:"strip_phrases,omitempty" mapstructure:"strip_phrases"`

	// MaxTitleDistance is the exclusive upper bound on the relative edit
	// distance for a title match, in (0, 1]. Zero selects the default 0.08;
	// an identical title has distance 0, so a bound of 0 would match nothing.
	MaxTitleDistance float64 `json:"max_title_distance" yaml:"max_title_distance" mapstructure:"max_title_distance" validate:"gt=0,lte=1"`

	// VenueSeparator splits the venue token from the rest of a citation key.
	VenueSeparator string `json:"venue_separator" yaml:"venue_separator" mapstructure:"venue_separator"`

	// Strategy is first (default) or closest.
	Strategy MatchStrategy `json:"strategy" yaml:"strategy" mapstructure:"strategy" validate:"omitempty,oneof=first closest"`
}

// ResolveConfig holds settings for the resolve stage.
type ResolveConfig struct {
	Rules MatchRules `json:"rules" yaml:"rules" mapstructure:"rules"`

	// Venues is the configuration-file form of Rules.VenuePrefixes. Venue
	// tokens are case-sensitive, which a map key read through viper is not.
	Venues []VenuePrefixes `json:"venues,omitempty" yaml:"venues,omitempty" mapstructure:"venues" validate:"dive"`

	// LedgerPath is the SQLite review ledger. Empty disables the ledger.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path" mapstructure:"ledger_path"`
}

// PatchConfig holds settings for the patch stage.
type PatchConfig struct {
	// BibFile is the flat BibTeX file that receives the doi fields.
	BibFile string `json:"bib_file" yaml:"bib_file" mapstructure:"bib_file"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Detect  DetectConfig  `json:"detect" yaml:"detect" mapstructure:"detect"`
	Lookup  LookupConfig  `json:"lookup" yaml:"lookup" mapstructure:"lookup"`
	Resolve ResolveConfig `json:"resolve" yaml:"resolve" mapstructure:"resolve"`
	Patch   PatchConfig   `json:"patch" yaml:"patch" mapstructure:"patch"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}
