package entry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotObject is returned when a decoded record is not a JSON object.
var ErrNotObject = errors.New("entry is not a JSON object")

// Read decodes entries from r. Both a single JSON array of objects and a
// stream of objects (JSON Lines) are accepted.
func Read(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var raw []any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode entry array: %w", err)
		}
		entries := make([]Entry, 0, len(raw))
		for i, v := range raw {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d: %w", i, ErrNotObject)
			}
			entries = append(entries, Entry(m))
		}
		return entries, nil
	}

	var entries []Entry
	for i := 0; ; i++ {
		var v any
		if err := dec.Decode(&v); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: %w", i, ErrNotObject)
		}
		entries = append(entries, Entry(m))
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// ReadFile reads entries from a file; "-" reads standard input.
func ReadFile(path string) ([]Entry, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
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
