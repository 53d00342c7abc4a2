// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kmccurley/cryptobib/pkg/types"
)

// ErrOutputExists is returned when an output file is already present.
var ErrOutputExists = errors.New("output file already exists")

// ErrTruncated is returned by ReadResults when the array was never closed,
// as happens when a lookup run is interrupted.
var ErrTruncated = errors.New("lookup output is truncated")

// OutputPath is the default lookup output for a window of the detect output.
func OutputPath(badsFile string, start, num int) string {
	return fmt.Sprintf("%s.%d.%d.json", badsFile, start, num)
}

// CreateExclusive creates path for writing and fails with ErrOutputExists
// when it already exists.
func CreateExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, nil
}

// Writer streams LookupResults as a JSON array. Each result is flushed as
// soon as it is written, so an interrupted run leaves every completed
// record on disk.
type Writer struct {
	bw    *bufio.Writer
	count int
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write appends one result and flushes it.
func (w *Writer) Write(r types.LookupResult) error {
	data, err := json.MarshalIndent(r, "  ", "  ")
	if err != nil {
		return fmt.Errorf("encoding result %d: %w", r.Index, err)
	}
	sep := ",\n  "
	if w.count == 0 {
		sep = "[\n  "
	}
	w.bw.WriteString(sep)
	w.bw.Write(data)
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("writing result %d: %w", r.Index, err)
	}
	w.count++
	return nil
}

// Count returns the number of results written.
func (w *Writer) Count() int { return w.count }

// Close terminates the array. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.count == 0 {
		w.bw.WriteString("[")
	}
	w.bw.WriteString("\n]\n")
	return w.bw.Flush()
}

// ReadResults decodes a lookup output. When the array is not terminated it
// returns every complete result together with ErrTruncated.
func ReadResults(r io.Reader) ([]types.LookupResult, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading lookup output: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("reading lookup output: expected array, got %v", tok)
	}

	var results []types.LookupResult
	for dec.More() {
		var lr types.LookupResult
		if err := dec.Decode(&lr); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return results, ErrTruncated
			}
			return nil, fmt.Errorf("decoding result %d: %w", len(results), err)
		}
		results = append(results, lr)
	}
	if _, err := dec.Token(); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return results, ErrTruncated
		}
		return nil, fmt.Errorf("reading lookup output: %w", err)
	}
	return results, nil
}

// ReadFiles reads and concatenates lookup outputs in order, so the files of
// resumed runs can be resolved together. Truncated files are accepted;
// their complete results are kept and the truncated paths are returned.
func ReadFiles(paths ...string) (results []types.LookupResult, truncated []string, err error) {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, nil, err
		}
		rs, err := ReadResults(f)
		f.Close()
		switch {
		case errors.Is(err, ErrTruncated):
			truncated = append(truncated, p)
		case err != nil:
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		results = append(results, rs...)
	}
	return results, truncated, nil
}
