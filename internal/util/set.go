package util

// Set is a generic set of comparable values. It is not safe for concurrent
// use; callers guard it with their own lock
type Set[K comparable] map[K]struct{}

// SetOf creates a new set containing the given elements
func SetOf[K comparable](elements ...K) Set[K] {
	s := make(Set[K], len(elements))
	for _, elem := range elements {
		s[elem] = struct{}{}
	}
	return s
}

// Add inserts key and reports whether it was not already present
func (s Set[K]) Add(key K) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

func (s Set[K]) Remove(key K) {
	delete(s, key)
}

func (s Set[K]) Contains(key K) bool {
	_, ok := s[key]
	return ok
}

// Values returns the members in no particular order
func (s Set[K]) Values() []K {
	res := make([]K, 0, len(s))
	for k := range s {
		res = append(res, k)
	}
	return res
}
