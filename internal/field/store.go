package field

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ironbee-go/engine/internal/status"
)

// CaptureKey is the well-known data-store key for the last capture list.
const CaptureKey = "CAPTURE"

// Store is a case-insensitive, mutex-guarded mapping from field name to
// Field. Grounded on the teacher's infrastructure/state.MemoryBackend
// (mutex + map[string][]byte); here the values are typed Fields instead of
// raw bytes, and Store adds list-append and %{NAME} expansion on top.
type Store struct {
	mu     sync.RWMutex
	fields map[string]*Field // keyed by lower-cased name
}

// NewStore constructs an empty data store, one per transaction.
func NewStore() *Store {
	return &Store{fields: make(map[string]*Field)}
}

func key(name string) string { return strings.ToLower(name) }

// Get looks up a field by case-insensitive name. Returns nil if absent.
func (s *Store) Get(name string) *Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[key(name)]
}

// Set stores f under name, replacing whatever was there. Round-trips:
// Set(k, v); Get(k) == v.
func (s *Store) Set(name string, f *Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f != nil {
		f.Name = name
	}
	s.fields[key(name)] = f
}

// Delete removes name from the store, if present.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fields, key(name))
}

// ListAppend appends f to the list field stored under name, creating an
// empty list first if name is absent. Returns status.Invalid if name names
// a non-list field.
func (s *Store) ListAppend(name string, f *Field) status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(name)
	existing := s.fields[k]
	if existing == nil {
		existing = NewList(name, nil)
		s.fields[k] = existing
	}
	if existing.Type != TypeList {
		return status.Invalid(fmt.Sprintf("field %q is not a list", name))
	}
	existing.List = append(existing.List, f)
	return status.Ok()
}

// SetCapture replaces the <prefix>:N capture entries with capture, first
// clearing only the entries under that same prefix (a rule capturing under
// a distinct prefix is left untouched, per SPEC_FULL.md §C).
func (s *Store) SetCapture(prefix string, capture []*Field) {
	if prefix == "" {
		prefix = CaptureKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clear existing <prefix>:N entries.
	p := key(prefix) + ":"
	for k := range s.fields {
		if strings.HasPrefix(k, p) {
			delete(s.fields, k)
		}
	}
	for i, f := range capture {
		name := fmt.Sprintf("%s:%d", prefix, i)
		if f != nil {
			f.Name = name
		}
		s.fields[key(name)] = f
	}
}

// Expand replaces each %{NAME} token in template with the string form of
// the named field (empty bytes if absent); a literal `%{` is written as
// `%%{`. Expansion is side-effect free. If the expanded output would
// exceed maxLen bytes, Expand returns status.Truncated and the output
// produced so far truncated to maxLen.
func (s *Store) Expand(template string, maxLen int) ([]byte, status.Status) {
	out := make([]byte, 0, len(template))
	i := 0
	for i < len(template) {
		if strings.HasPrefix(template[i:], "%%{") {
			out = append(out, "%{"...)
			i += 3
			continue
		}
		if strings.HasPrefix(template[i:], "%{") {
			end := strings.IndexByte(template[i+2:], '}')
			if end < 0 {
				out = append(out, template[i:]...)
				break
			}
			name := template[i+2 : i+2+end]
			val := s.Get(name)
			out = append(out, val.String()...)
			i += 2 + end + 1
			continue
		}
		out = append(out, template[i])
		i++
	}
	if maxLen > 0 && len(out) > maxLen {
		return out[:maxLen], status.Truncated(fmt.Sprintf("expansion exceeded %d bytes", maxLen))
	}
	return out, status.Ok()
}
