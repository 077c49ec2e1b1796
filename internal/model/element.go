// Package model defines the sites and editable elements the builder stores.
package model

import (
	"time"

	"github.com/debemdeboas/site-builder/internal/draft"
)

type SiteId string

type ElementId string

type ElementKind string

const (
	KindImage      ElementKind = "image"
	KindTheme      ElementKind = "theme"
	KindTypography ElementKind = "typography"
)

// Theme fields.
const (
	FieldPalette    draft.FieldName = "palette"
	FieldBackground draft.FieldName = "background"
	FieldForeground draft.FieldName = "foreground"
	FieldPrimary    draft.FieldName = "primary"
	FieldAccent     draft.FieldName = "accent"
	FieldRadius     draft.FieldName = "radius"
	FieldDarkMode   draft.FieldName = "darkMode"
)

// Typography fields.
const (
	FieldFontFamily    draft.FieldName = "fontFamily"
	FieldHeadingFamily draft.FieldName = "headingFontFamily"
	FieldBaseSize      draft.FieldName = "baseSize"
	FieldLineHeight    draft.FieldName = "lineHeight"
	FieldLetterSpacing draft.FieldName = "letterSpacing"
)

var ThemeSchema = draft.Schema{
	FieldPalette:    draft.KindString,
	FieldBackground: draft.KindString,
	FieldForeground: draft.KindString,
	FieldPrimary:    draft.KindString,
	FieldAccent:     draft.KindString,
	FieldRadius:     draft.KindNumber,
	FieldDarkMode:   draft.KindBool,
}

var TypographySchema = draft.Schema{
	FieldFontFamily:    draft.KindString,
	FieldHeadingFamily: draft.KindString,
	FieldBaseSize:      draft.KindNumber,
	FieldLineHeight:    draft.KindNumber,
	FieldLetterSpacing: draft.KindNumber,
}

// SchemaFor returns the field types of an element kind. Unknown kinds get an
// empty schema, which accepts any value.
func SchemaFor(kind ElementKind) draft.Schema {
	switch kind {
	case KindImage:
		return draft.ImageSchema
	case KindTheme:
		return ThemeSchema
	case KindTypography:
		return TypographySchema
	default:
		return draft.Schema{}
	}
}

type Site struct {
	Id       SiteId `json:"id"`
	Name     string `json:"name"`
	Template string `json:"template"`

	CreatedDate time.Time `json:"createdDate"`
}

// Element is one editable visual element of a site together with its
// committed record.
type Element struct {
	Id     ElementId   `json:"id"`
	SiteId SiteId      `json:"siteId"`
	Kind   ElementKind `json:"kind"`
	Name   string      `json:"name"`

	Record draft.Record `json:"record"`

	// Used for change detection and ETags.
	ContentHash string `json:"contentHash"`

	CreatedDate  time.Time `json:"createdDate"`
	ModifiedDate time.Time `json:"modifiedDate"`
}
