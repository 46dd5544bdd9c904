package model

import "encoding/json"

// RefSet is an ordered collection of user ids with constant-time membership
// checks. It backs a user's friendsList and pendingRequest.
//
// On the wire and in storage it is a plain JSON array of ids. Records written
// before sends were deduplicated may contain the same id more than once, so
// the set keeps a count per id instead of dropping duplicates on load; Remove
// clears every occurrence.
type RefSet struct {
	ids   []string
	count map[string]int
}

// NewRefSet builds a set from ids, preserving order.
func NewRefSet(ids ...string) RefSet {
	var s RefSet
	for _, id := range ids {
		s.push(id)
	}
	return s
}

func (s *RefSet) push(id string) {
	if s.count == nil {
		s.count = make(map[string]int)
	}
	s.ids = append(s.ids, id)
	s.count[id]++
}

// Contains reports whether id is present.
func (s RefSet) Contains(id string) bool {
	return s.count[id] > 0
}

// Add appends id unless it is already present. It reports whether the set changed.
func (s *RefSet) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	s.push(id)
	return true
}

// Remove deletes every occurrence of id and returns how many were removed.
func (s *RefSet) Remove(id string) int {
	n := s.count[id]
	if n == 0 {
		return 0
	}
	kept := s.ids[:0]
	for _, v := range s.ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	s.ids = kept
	delete(s.count, id)
	return n
}

// Len returns the number of entries, duplicates included.
func (s RefSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the entries in insertion order.
func (s RefSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s RefSet) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

func (s *RefSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewRefSet(ids...)
	return nil
}
