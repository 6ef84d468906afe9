// Package catalog provides the entry catalog codec and persistence
// providers. Catalogs are ordered JSON arrays; decoding and encoding
// preserve entry order and every field the agent does not own.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

// Decode reads a catalog document.
func Decode(r io.Reader) ([]refresh.Entry, error) {
	var entries []refresh.Entry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}

// Encode writes a catalog document, indented for human diffing.
func Encode(w io.Writer, entries []refresh.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return nil
}
