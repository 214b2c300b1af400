package history

import (
	"encoding/json"
	"fmt"
	"io"
)

// Export writes every entry in store to w as an indented JSON array, oldest first.
func Export(store Store, w io.Writer) (int, error) {
	entries, err := store.List(0)
	if err != nil {
		return 0, err
	}
	if entries == nil {
		entries = []*Entry{}
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return 0, fmt.Errorf("failed to encode history: %w", err)
	}
	return len(entries), nil
}

// Import reads a JSON array written by Export and saves the entries that are
// not already present. An entry is present when its ID matches, or when its
// query and output both match an existing entry. It returns the number added.
func Import(store Store, r io.Reader) (int, error) {
	var incoming []*Entry
	if err := json.NewDecoder(r).Decode(&incoming); err != nil {
		return 0, fmt.Errorf("failed to decode history: %w", err)
	}

	existing, err := store.List(0)
	if err != nil {
		return 0, err
	}
	ids := make(map[string]bool, len(existing))
	contents := make(map[[2]string]bool, len(existing))
	for _, e := range existing {
		ids[e.ID] = true
		contents[[2]string{e.Query, e.Output}] = true
	}

	added := 0
	for _, e := range incoming {
		if e == nil {
			continue
		}
		key := [2]string{e.Query, e.Output}
		if (e.ID != "" && ids[e.ID]) || contents[key] {
			continue
		}
		if e.Mode == "" {
			e.Mode = ModeReport
		}
		if err := store.Save(e); err != nil {
			return added, err
		}
		ids[e.ID] = true
		contents[key] = true
		added++
	}
	return added, nil
}
