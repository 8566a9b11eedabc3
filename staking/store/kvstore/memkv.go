package kvstore

import (
	"sort"
	"strings"
	"sync"
)

// MemKV is a trivial in-memory KV, standing in for the real versioned
// snapshot store a host would hand this module. cmd/stakecored wires it in
// behind kvstore.New when run with --demo.backend=kv; it is not meant to
// demonstrate persistence.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemKV returns an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(key []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	return v, ok
}

func (m *MemKV) Put(key []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
}

func (m *MemKV) IteratePrefix(prefix []byte, fn func(key, value []byte)) {
	m.mu.Lock()
	type kv struct {
		k string
		v []byte
	}
	var matches []kv
	p := string(prefix)
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			matches = append(matches, kv{k, v})
		}
	}
	m.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].k < matches[j].k })
	for _, m := range matches {
		fn([]byte(m.k), m.v)
	}
}
