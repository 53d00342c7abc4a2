// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads Crossref credentials from a directory of plain-text
// files. Each file holds one secret: the filename is the key name and the
// trimmed file contents are the value.
//
// Supported key files: crossref-mailto, crossref-plus-token.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kmccurley/cryptobib/pkg/types"
)

// Key file names.
const (
	CrossrefMailto    = "crossref-mailto"
	CrossrefPlusToken = "crossref-plus-token"
)

// DefaultDir is the secrets directory, relative to the working directory.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// ApplyCrossref fills the Crossref credentials from secrets. A mailto set in
// configuration wins over the secret; the Plus token only comes from
// secrets.
func ApplyCrossref(cfg *types.CrossrefConfig, secrets map[string]string) {
	if v, ok := secrets[CrossrefMailto]; ok && cfg.Mailto == "" {
		cfg.Mailto = v
	}
	if v, ok := secrets[CrossrefPlusToken]; ok {
		cfg.PlusToken = v
	}
}
