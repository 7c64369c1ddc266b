package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// Map is an insertion-ordered string-keyed map shared between the engine and
// user scripts. All operations are safe for concurrent use; iteration order is
// the order keys were first inserted, regardless of later overwrites.
//
// Exported method names are deliberately script-friendly: the sandbox lowercases
// them, so a script calls channelMap.put("k", v) and channelMap.get("k").
type Map struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]any
}

// Entry is a single key/value pair of a Map.
type Entry struct {
	Key   string
	Value any
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Get returns the value stored under key, or nil when absent. Scripts rely on
// the nil-for-absent convention, so Get has no second return value; use Has to
// distinguish a stored nil.
func (m *Map) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok
}

// Put stores value under key. A new key is appended to the iteration order; an
// existing key keeps its original position.
func (m *Map) Put(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key and its position in the iteration order.
func (m *Map) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Entries returns the entries in insertion order.
func (m *Map) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		entries = append(entries, Entry{Key: k, Value: m.values[k]})
	}
	return entries
}

// Clone returns an independent copy. Values are copied by reference; the key
// order and the backing store are not shared with the original.
func (m *Map) Clone() *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clone := &Map{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]any, len(m.values)),
	}
	copy(clone.keys, m.keys)
	for k, v := range m.values {
		clone.values[k] = v
	}
	return clone
}

// Merge folds src into m. Keys already present keep their position in m and
// take src's value; keys new to m are appended in src's insertion order.
func (m *Map) Merge(src *Map) {
	if src == nil || src == m {
		return
	}
	for _, e := range src.Entries() {
		m.Put(e.Key, e.Value)
	}
}

// MarshalJSON emits a JSON object whose keys appear in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the map contents with the object in data, preserving
// the key order of the JSON document.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	keys := make([]string, 0)
	values := make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if _, exists := values[key]; !exists {
			keys = append(keys, key)
		}
		values[key] = value
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = keys
	m.values = values
	return nil
}
