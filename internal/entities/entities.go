// Package entities resolves base entity IDs to display names.
//
// The metadata file is a JSON object keyed by decimal ID. Values are either a
// plain name or an object carrying at least a "name" field, e.g.
//
//	{"1": "Bulbasaur", "4": {"name": "Charmander", "generation": 1}}
package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Directory looks up entity names by ID.
type Directory interface {
	Name(id int) (string, bool)
}

// Map is an in-memory Directory.
type Map map[int]string

// Name implements Directory.
func (m Map) Name(id int) (string, bool) {
	name, ok := m[id]
	return name, ok
}

// IDs returns every known ID in ascending order.
func (m Map) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type entry struct {
	Name string `json:"name"`
}

// LoadFile reads a metadata file into a Map.
func LoadFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	return Parse(data)
}

// Parse decodes metadata JSON. Non-numeric keys and blank names are skipped.
func Parse(data []byte) (Map, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse entities: %w", err)
	}
	out := make(Map, len(raw))
	for key, body := range raw {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || id <= 0 {
			continue
		}
		var name string
		if err := json.Unmarshal(body, &name); err != nil {
			var e entry
			if err := json.Unmarshal(body, &e); err != nil {
				return nil, fmt.Errorf("parse entity %s: %w", key, err)
			}
			name = e.Name
		}
		if name = strings.TrimSpace(name); name != "" {
			out[id] = name
		}
	}
	return out, nil
}

// Known filters ids down to those present in dir, returning the known and the
// unknown IDs separately. Order and duplicates are preserved in both lists.
func Known(dir Directory, ids []int) (known, unknown []int) {
	for _, id := range ids {
		if _, ok := dir.Name(id); ok {
			known = append(known, id)
		} else {
			unknown = append(unknown, id)
		}
	}
	return known, unknown
}

// Label formats an ID with its name when known, e.g. "Bulbasaur (#1)".
func Label(dir Directory, id int) string {
	if dir != nil {
		if name, ok := dir.Name(id); ok {
			return name + " (#" + strconv.Itoa(id) + ")"
		}
	}
	return "#" + strconv.Itoa(id)
}
