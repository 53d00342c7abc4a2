// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doi validates and normalizes Digital Object Identifiers.
package doi

import (
	"regexp"
	"strings"
)

// pattern matches bare DOIs: "10.1007/978-3-540-85174-5_1".
var pattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

// resolverPrefixes are stripped by Normalize, longest first.
var resolverPrefixes = []string{
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"https://doi.org/",
	"http://doi.org/",
	"dx.doi.org/",
	"doi.org/",
	"doi:",
}

// Normalize trims whitespace and strips resolver URL and "doi:" prefixes.
// Case is preserved so a patched bibliography carries the DOI as registered.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range resolverPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// Valid reports whether s, after normalization, is a well-formed DOI.
func Valid(s string) bool {
	return pattern.MatchString(Normalize(s))
}

// Prefix returns the registrant prefix ("10.1007") of a DOI, or "" when s is
// not a DOI.
func Prefix(s string) string {
	s = Normalize(s)
	if !pattern.MatchString(s) {
		return ""
	}
	prefix, _, _ := strings.Cut(s, "/")
	return prefix
}

// Equal compares two DOIs case-insensitively after normalization.
func Equal(a, b string) bool {
	return strings.EqualFold(Normalize(a), Normalize(b))
}
