package community

import "strings"

// Store exposes community experiences to HTTP handlers.
type Store interface {
	List() []Experience
	ByMedication(medication string) []Experience
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Experience
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied experiences.
func NewMemoryStore(items []Experience) *MemoryStore {
	return &MemoryStore{items: append([]Experience(nil), items...)}
}

// List returns every experience in seed order.
func (s *MemoryStore) List() []Experience {
	return append([]Experience(nil), s.items...)
}

// ByMedication filters experiences by medication name, ignoring case.
func (s *MemoryStore) ByMedication(medication string) []Experience {
	medication = strings.TrimSpace(medication)
	if medication == "" {
		return s.List()
	}

	out := make([]Experience, 0, len(s.items))
	for _, item := range s.items {
		if strings.EqualFold(item.Medication, medication) {
			out = append(out, item)
		}
	}
	return out
}
