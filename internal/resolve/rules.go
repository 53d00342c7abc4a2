// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"maps"
	"slices"

	"github.com/kmccurley/cryptobib/pkg/types"
)

const (
	// DefaultMaxTitleDistance is the exclusive bound on the relative title
	// edit distance.
	DefaultMaxTitleDistance = 0.08

	// DefaultVenueSeparator ends the venue token of a citation key.
	DefaultVenueSeparator = ":"
)

// DefaultVenuePrefixes maps cryptobib venue tokens to the DOI registrant
// prefixes of their publishers.
var DefaultVenuePrefixes = map[string][]string{
	"ACISP":       {"10.1007"},
	"AFRICACRYPT": {"10.1007"},
	"ASIACCS":     {"10.1145"},
	"CANS":        {"10.1007"},
	"C":           {"10.1007"},
	"EC":          {"10.1007"},
	"ESORICS":     {"10.1007"},
	"FC":          {"10.1007"},
	"FCW":         {"10.1007"},
	"FOCS":        {"10.1109"},
	"ICALP":       {"10.4230"},
	"ICICS":       {"10.1007"},
	"ICISC":       {"10.1007"},
	"ICITS":       {"10.1007"},
	"IEICE":       {"10.1587"},
	"IMA":         {"10.1007"},
	"INDOCRYPT":   {"10.1007"},
	"ISC":         {"10.1007"},
	"IWSEC":       {"10.1007"},
	"JC":          {"10.1007"},
	"LATIN":       {"10.1007"},
	"LC":          {"10.1007"},
	"NDSS":        {"10.14722"},
	"PODC":        {"10.1145"},
	"PoPETS":      {"10.56553", "10.1515"},
	"PROVSEC":     {"10.1007"},
	"SODA":        {"10.1137"},
	"SP":          {"10.1109"},
	"STOC":        {"10.1145"},
	"TCHES":       {"10.46586"},
	"TRUSTBUS":    {"10.1007"},
	"VIETCRYPT":   {"10.1007"},
	"WISA":        {"10.1007"},
}

// DefaultStripPhrases are the annotation phrases that venues append to
// titles. They are matched case-insensitively, in order.
var DefaultStripPhrases = []string{
	`\(?Extended Abstract\)?`,
	`\(?Short Paper\)?`,
	`\(?Invited talk\)?`,
	`\{?Poster\}?:`,
	`\(?Poster\)?`,
	`Poster:`,
	`\(?Invited lecture\)?`,
	`\(?keynote lecture\)?`,
	`\(?keynote talk\)?`,
	`\(?keynote\)?`,
	`\(?Short paper\)?`,
	`\(?fast abstract\)?`,
	`\(?preliminary version\)?`,
}

// DefaultRules returns the cryptobib matching rules.
func DefaultRules() types.MatchRules {
	return WithDefaults(types.MatchRules{})
}

// WithDefaults fills every zero field of r with its default. The venue table
// and phrase list are copied so callers may modify the result.
func WithDefaults(r types.MatchRules) types.MatchRules {
	if r.VenuePrefixes == nil {
		r.VenuePrefixes = make(map[string][]string, len(DefaultVenuePrefixes))
		for venue, prefixes := range DefaultVenuePrefixes {
			r.VenuePrefixes[venue] = slices.Clone(prefixes)
		}
	}
	if r.StripPhrases == nil {
		r.StripPhrases = slices.Clone(DefaultStripPhrases)
	}
	if r.MaxTitleDistance == 0 {
		r.MaxTitleDistance = DefaultMaxTitleDistance
	}
	if r.VenueSeparator == "" {
		r.VenueSeparator = DefaultVenueSeparator
	}
	if r.Strategy == "" {
		r.Strategy = types.StrategyFirst
	}
	return r
}

// RulesFromConfig builds the matching rules of a resolve configuration.
// Rows of the venue list override or extend the default venue table.
func RulesFromConfig(cfg types.ResolveConfig) types.MatchRules {
	rules := WithDefaults(cfg.Rules)
	if len(cfg.Venues) > 0 {
		merged := maps.Clone(rules.VenuePrefixes)
		for _, v := range cfg.Venues {
			merged[v.Venue] = slices.Clone(v.Prefixes)
		}
		rules.VenuePrefixes = merged
	}
	return rules
}
