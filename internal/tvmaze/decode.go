package tvmaze

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeEpisodes reads schedule records from r. The payload is either a JSON
// array (the API response and saved dumps) or newline-delimited objects.
// Empty input yields no records. Record order is preserved.
func DecodeEpisodes(r io.Reader) ([]Episode, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tvmaze: read: %w", err)
	}

	dec := json.NewDecoder(br)
	var out []Episode

	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("tvmaze: open array: %w", err)
		}
		for dec.More() {
			var ep Episode
			if err := dec.Decode(&ep); err != nil {
				return nil, fmt.Errorf("tvmaze: record %d: %w", len(out), err)
			}
			out = append(out, ep)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("tvmaze: close array: %w", err)
		}
		return out, nil
	}

	for {
		var ep Episode
		err := dec.Decode(&ep)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tvmaze: record %d: %w", len(out), err)
		}
		out = append(out, ep)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// GenresCell converts the raw genres attribute into a table cell:
//   - absent or null: nil
//   - an array of strings: []string (empty array gives an empty slice)
//   - a JSON string: its text, left for the genre step to decode
//   - anything else: the raw JSON text, also left for the genre step
//
// It never fails; deciding what is malformed belongs to the genre step.
func GenresCell(raw json.RawMessage) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var labels []string
	if raw[0] == '[' && json.Unmarshal(raw, &labels) == nil && !hasNullElement(raw) {
		if labels == nil {
			labels = []string{}
		}
		return labels
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// hasNullElement reports whether a JSON array contains a null; decoding into
// []string would silently turn it into "".
func hasNullElement(raw json.RawMessage) bool {
	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) != nil {
		return false
	}
	for _, e := range elems {
		if bytes.Equal(bytes.TrimSpace(e), []byte("null")) {
			return true
		}
	}
	return false
}
