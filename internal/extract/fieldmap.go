package extract

// FieldMap is an insertion-ordered map from canonical key to value.
// The zero value is ready to use.
type FieldMap struct {
	keys   []string
	values map[string]string
}

// NewFieldMap returns an empty map.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]string)}
}

// Get returns the value for key.
func (m *FieldMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key holds a value.
func (m *FieldMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// SetIfEmpty stores value under key unless key already holds a value.
// Empty values are ignored. It reports whether the value was stored.
func (m *FieldMap) SetIfEmpty(key, value string) bool {
	if key == "" || value == "" || m.Has(key) {
		return false
	}
	m.set(key, value)
	return true
}

// Override stores value under key even when key is already set, keeping the
// key's original position. Empty values are ignored.
func (m *FieldMap) Override(key, value string) {
	if key == "" || value == "" {
		return
	}
	m.set(key, value)
}

func (m *FieldMap) set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Keys returns the keys in insertion order.
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns an independent copy.
func (m *FieldMap) Clone() *FieldMap {
	c := NewFieldMap()
	if m == nil {
		return c
	}
	for _, k := range m.keys {
		c.set(k, m.values[k])
	}
	return c
}
