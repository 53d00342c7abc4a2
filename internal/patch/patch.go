// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package patch inserts accepted DOIs into a flat BibTeX file.
//
// The file is scanned line by line rather than parsed, so its formatting is
// preserved byte for byte. Entries must follow the cryptobib layout: the
// opening line is "@type{KEY," on its own and the closing line is exactly "}".
package patch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kmccurley/cryptobib/internal/doi"
	"github.com/kmccurley/cryptobib/internal/observability"
)

// ErrMalformedRow is returned when a DOI file line is not exactly key,doi.
var ErrMalformedRow = errors.New("malformed doi row")

// entryOpen matches the first line of an entry that may receive a DOI.
var entryOpen = regexp.MustCompile(`(?i)^@(article|inproceedings)\{([^,]+),$`)

// entryClose is the line that ends an entry.
const entryClose = "}"

// doiLine is the field inserted before the closing line, aligned with the
// other cryptobib fields.
const doiLine = `  doi =          "%s",`

// ReadDOIFile reads key,doi lines. Blank lines are skipped. A later row for
// the same key replaces an earlier one.
func ReadDOIFile(r io.Reader, logger zerolog.Logger) (map[string]string, error) {
	dois := make(map[string]string)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w at line %d: %q", ErrMalformedRow, line, text)
		}
		key, value := parts[0], parts[1]
		if !doi.Valid(value) {
			logger.Warn().Str("bibkey", key).Str("doi", value).Int("line", line).Msg("doi does not look like a DOI")
		}
		if prev, ok := dois[key]; ok && !doi.Equal(prev, value) {
			logger.Warn().Str("bibkey", key).Str("previous", prev).Str("doi", value).Msg("duplicate key in doi file")
		}
		dois[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading doi file: %w", err)
	}
	return dois, nil
}

// Result reports what Patch did.
type Result struct {
	// Inserted is the number of doi lines written.
	Inserted int

	// Missing lists, sorted, the keys of the table that matched no entry.
	Missing []string
}

// scanState is the state of the line scanner.
type scanState int

const (
	outsideEntry scanState = iota
	trackingKey
)

// Patch copies r to w, inserting a doi line before the closing line of every
// article or inproceedings entry whose key is in dois. Each key is patched at
// most once. dois is not modified.
func Patch(r io.Reader, w io.Writer, dois map[string]string, m *observability.Metrics) (Result, error) {
	pending := maps.Clone(dois)
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	var res Result
	state, key := outsideEntry, ""
	for {
		raw, err := br.ReadString('\n')
		if raw == "" && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return res, fmt.Errorf("reading bibliography: %w", err)
		}
		line, eol := splitEOL(raw)

		if match := entryOpen.FindStringSubmatch(line); match != nil {
			state, key = outsideEntry, ""
			if _, ok := pending[match[2]]; ok {
				state, key = trackingKey, match[2]
			}
		}

		if line == entryClose && state == trackingKey {
			if eol == "" {
				eol = "\n"
			}
			if _, err := fmt.Fprintf(bw, doiLine+"%s", pending[key], eol); err != nil {
				return res, err
			}
			delete(pending, key)
			res.Inserted++
			state, key = outsideEntry, ""
		}

		if _, werr := bw.WriteString(raw); werr != nil {
			return res, werr
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading bibliography: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return res, fmt.Errorf("writing bibliography: %w", err)
	}

	m.RecordInserted(res.Inserted)
	res.Missing = slices.Sorted(maps.Keys(pending))
	return res, nil
}

// splitEOL separates a line from its terminator ("\n", "\r\n" or none).
func splitEOL(raw string) (line, eol string) {
	switch {
	case strings.HasSuffix(raw, "\r\n"):
		return raw[:len(raw)-2], "\r\n"
	case strings.HasSuffix(raw, "\n"):
		return raw[:len(raw)-1], "\n"
	default:
		return raw, ""
	}
}
