// Package draft tracks partial edits of visual element properties.
//
// A Session holds a working copy of a Record together with the set of fields
// the user explicitly edited. Committing merges only those fields back into
// the base record; discarding releases any temporary resource the session
// created and leaves the base untouched.
package draft

import (
	"maps"
	"reflect"
	"slices"
)

type FieldName string

// Common field names used by image elements.
const (
	FieldSrc            FieldName = "src"
	FieldAlt            FieldName = "alt"
	FieldBlur           FieldName = "blur"
	FieldObjectFit      FieldName = "objectFit"
	FieldObjectPosition FieldName = "objectPosition"
)

// Record is the committed attribute set of one editable element.
type Record map[FieldName]any

// Clone returns a shallow copy. Values are expected to be scalars.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

func (r Record) Names() []FieldName {
	names := make([]FieldName, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r Record) String(name FieldName) string {
	s, _ := r[name].(string)
	return s
}

func (r Record) Number(name FieldName) float64 {
	n, _ := toFloat(r[name])
	return n
}

// Equal reports whether both records hold the same fields with equal values.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for name, v := range r {
		ov, ok := other[name]
		if !ok || !sameValue(v, ov) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}
