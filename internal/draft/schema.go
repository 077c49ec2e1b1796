package draft

import (
	"fmt"
)

type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindBool
	// KindResource fields hold a URL. Uploads produce a temporary Handle for
	// them; plain strings are accepted as already persisted URLs.
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindResource:
		return "resource"
	default:
		return "any"
	}
}

// Schema maps field names to the kind of value they accept. Fields missing
// from the schema accept any value.
type Schema map[FieldName]Kind

// Coerce checks value against the kind declared for name and returns it in
// its normalised form. Numbers are always stored as float64. Range is never
// checked.
func (s Schema) Coerce(name FieldName, value any) (any, error) {
	kind := s[name]
	switch kind {
	case KindString, KindResource:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case KindNumber:
		if v, ok := toFloat(value); ok {
			return v, nil
		}
	case KindBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	default:
		if v, ok := toFloat(value); ok {
			return v, nil
		}
		return value, nil
	}
	return nil, fmt.Errorf("%w: field %q wants %s, got %T", ErrTypeMismatch, name, kind, value)
}

// ImageSchema describes the editable attributes of an image element.
var ImageSchema = Schema{
	FieldSrc:            KindResource,
	FieldAlt:            KindString,
	FieldBlur:           KindNumber,
	FieldObjectFit:      KindString,
	FieldObjectPosition: KindString,
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
