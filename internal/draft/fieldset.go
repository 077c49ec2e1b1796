package draft

import "slices"

// FieldSet is an unordered set of field names.
type FieldSet struct {
	names map[FieldName]struct{}
}

func NewFieldSet(names ...FieldName) *FieldSet {
	s := &FieldSet{names: make(map[FieldName]struct{}, len(names))}
	for _, name := range names {
		s.Add(name)
	}
	return s
}

func (s *FieldSet) Add(name FieldName) {
	if s.names == nil {
		s.names = make(map[FieldName]struct{})
	}
	s.names[name] = struct{}{}
}

func (s *FieldSet) Has(name FieldName) bool {
	_, ok := s.names[name]
	return ok
}

func (s *FieldSet) Clear() {
	s.names = make(map[FieldName]struct{})
}

func (s *FieldSet) Len() int {
	return len(s.names)
}

// Names returns the members in sorted order.
func (s *FieldSet) Names() []FieldName {
	names := make([]FieldName, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
