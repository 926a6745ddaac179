package index

import (
	"cmp"
	"slices"
	"sync"

	"stubtree/internal/stub"
)

// MemoryStore is a concurrent in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]map[Ref]struct{}
	byFile  map[string]map[Key][]Ref // what each file contributed, for RemoveFile
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]map[Ref]struct{}),
		byFile:  make(map[string]map[Key][]Ref),
	}
}

// Add records ref under key. Duplicate refs are kept once.
func (s *MemoryStore) Add(key Key, ref Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs, ok := s.entries[key]
	if !ok {
		refs = make(map[Ref]struct{}, 1)
		s.entries[key] = refs
	}
	if _, dup := refs[ref]; dup {
		return
	}
	refs[ref] = struct{}{}

	contributed, ok := s.byFile[ref.File]
	if !ok {
		contributed = make(map[Key][]Ref)
		s.byFile[ref.File] = contributed
	}
	contributed[key] = append(contributed[key], ref)
}

// Lookup returns the refs stored under key sorted by file and node.
func (s *MemoryStore) Lookup(key Key) []Ref {
	s.mu.RLock()
	set := s.entries[key]
	refs := make([]Ref, 0, len(set))
	for r := range set {
		refs = append(refs, r)
	}
	s.mu.RUnlock()
	slices.SortFunc(refs, compareRefs)
	return refs
}

// Keys returns the sorted distinct values present in one index.
func (s *MemoryStore) Keys(id ID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.entries {
		if k.Index == id {
			out = append(out, k.Value)
		}
	}
	slices.Sort(out)
	return out
}

// Len reports the number of (key, ref) pairs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, refs := range s.entries {
		total += len(refs)
	}
	return total
}

// Sizes reports the number of (key, ref) pairs per index.
func (s *MemoryStore) Sizes() map[ID]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ID]int)
	for k, refs := range s.entries {
		out[k.Index] += len(refs)
	}
	return out
}

// Files returns the sorted paths that contributed at least one entry.
func (s *MemoryStore) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// RemoveFile drops every entry contributed by path, so a superseded tree can
// be re-indexed. Cost is proportional to what path contributed.
func (s *MemoryStore) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, refs := range s.byFile[path] {
		set := s.entries[key]
		for _, r := range refs {
			delete(set, r)
		}
		if len(set) == 0 {
			delete(s.entries, key)
		}
	}
	delete(s.byFile, path)
}

func compareRefs(a, b Ref) int {
	if c := cmp.Compare(a.File, b.File); c != 0 {
		return c
	}
	return cmp.Compare(a.Node, b.Node)
}

// Entry is one recorded contribution.
type Entry struct {
	Key  Key
	Node stub.NodeID
}

// Collector is a Sink that records contributions in order.
type Collector struct {
	Entries []Entry
}

func (c *Collector) Contribute(key Key, node stub.NodeID) {
	c.Entries = append(c.Entries, Entry{Key: key, Node: node})
}

// Values returns the values contributed to one index, in order.
func (c *Collector) Values(id ID) []string {
	var out []string
	for _, e := range c.Entries {
		if e.Key.Index == id {
			out = append(out, e.Key.Value)
		}
	}
	return out
}

// Refers reports whether some entry with the given value points at node.
func (c *Collector) Refers(value string, node stub.NodeID) bool {
	for _, e := range c.Entries {
		if e.Key.Value == value && e.Node == node {
			return true
		}
	}
	return false
}
