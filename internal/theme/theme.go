// Package theme turns committed theme and typography records into CSS custom
// properties. Colour palettes are derived from chroma styles.
package theme

import (
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/debemdeboas/site-builder/internal/cache"
	"github.com/debemdeboas/site-builder/internal/config"
	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/util"
)

const fallbackPalette = "gruvbox"

type Palette struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Primary    string `json:"primary"`
	Accent     string `json:"accent"`
	Dark       bool   `json:"dark"`
}

func luminance(c chroma.Colour) float64 {
	return (0.299*float64(c.Red()) +
		0.587*float64(c.Green()) +
		0.114*float64(c.Blue())) / 255
}

func firstSet(style *chroma.Style, fallback chroma.Colour, types ...chroma.TokenType) chroma.Colour {
	for _, t := range types {
		if c := style.Get(t).Colour; c.IsSet() {
			return c
		}
	}
	return fallback
}

// PaletteFor derives a palette from the chroma style called name. Unknown
// names get chroma's fallback style.
func PaletteFor(name string) Palette {
	style := styles.Get(name)
	bg := style.Get(chroma.Background)

	dark := bg.Background.IsSet() && luminance(bg.Background) < 0.5

	background := bg.Background
	if !background.IsSet() {
		background = chroma.MustParseColour("#ffffff")
	}

	foreground := bg.Colour
	if !foreground.IsSet() {
		// Same rule the syntax highlighter used for styles without a text colour.
		if luminance(background) > 0.5 {
			foreground = chroma.MustParseColour("#181818")
		} else {
			foreground = chroma.MustParseColour("#f0f0f0")
		}
	}

	primary := firstSet(style, foreground, chroma.Keyword, chroma.NameFunction, chroma.NameTag)
	accent := firstSet(style, primary, chroma.LiteralString, chroma.NameFunction, chroma.LiteralNumber)

	return Palette{
		Name:       style.Name,
		Background: background.String(),
		Foreground: foreground.String(),
		Primary:    primary.String(),
		Accent:     accent.String(),
		Dark:       dark,
	}
}

// Palettes lists a palette for every registered chroma style, sorted by name.
func Palettes() []Palette {
	names := styles.Names()
	slices.Sort(names)

	palettes := make([]Palette, 0, len(names))
	for _, name := range names {
		palettes = append(palettes, PaletteFor(name))
	}
	return palettes
}

func defaultPalette() string {
	if config.AppConfig != nil && config.AppConfig.Theme.DefaultPalette != "" {
		return config.AppConfig.Theme.DefaultPalette
	}
	return fallbackPalette
}

func defaultFontFamily() string {
	if config.AppConfig != nil && config.AppConfig.Theme.FontFamily != "" {
		return config.AppConfig.Theme.FontFamily
	}
	return "sans-serif"
}

// GenerateCSS renders the theme and typography records as a :root rule.
// Either record may be nil.
func GenerateCSS(themeRecord, typography draft.Record) template.CSS {
	paletteName := themeRecord.String(model.FieldPalette)
	if paletteName == "" {
		paletteName = defaultPalette()
	}
	p := PaletteFor(paletteName)

	override := func(field draft.FieldName, value *string) {
		if v := themeRecord.String(field); v != "" {
			*value = v
		}
	}
	override(model.FieldBackground, &p.Background)
	override(model.FieldForeground, &p.Foreground)
	override(model.FieldPrimary, &p.Primary)
	override(model.FieldAccent, &p.Accent)

	if v, ok := themeRecord[model.FieldDarkMode].(bool); ok {
		p.Dark = v
	}

	radius := numberOr(themeRecord, model.FieldRadius, config.DefaultRadius)

	font := typography.String(model.FieldFontFamily)
	if font == "" {
		font = defaultFontFamily()
	}
	heading := typography.String(model.FieldHeadingFamily)
	if heading == "" {
		heading = font
	}

	var buf strings.Builder
	buf.WriteString(":root {\n")
	writeVar(&buf, "color-background", p.Background)
	writeVar(&buf, "color-foreground", p.Foreground)
	writeVar(&buf, "color-primary", p.Primary)
	writeVar(&buf, "color-accent", p.Accent)
	writeVar(&buf, "radius", formatNumber(radius)+"px")
	writeVar(&buf, "font-family", font)
	writeVar(&buf, "heading-font-family", heading)
	writeVar(&buf, "font-size", formatNumber(numberOr(typography, model.FieldBaseSize, config.DefaultBaseSize))+"px")
	writeVar(&buf, "line-height", formatNumber(numberOr(typography, model.FieldLineHeight, config.DefaultLineHeight)))
	writeVar(&buf, "letter-spacing", formatNumber(numberOr(typography, model.FieldLetterSpacing, 0))+"em")
	if p.Dark {
		writeVar(&buf, "color-scheme", "dark")
	} else {
		writeVar(&buf, "color-scheme", "light")
	}
	buf.WriteString("}\n")

	return template.CSS(buf.String())
}

// SiteCSS renders the CSS for the first theme and typography element found.
// The result is cached per site until one of the records changes.
func SiteCSS(elements []model.Element) template.CSS {
	var site model.SiteId
	var themeRecord, typography draft.Record
	for _, e := range elements {
		if site == "" {
			site = e.SiteId
		}
		switch e.Kind {
		case model.KindTheme:
			if themeRecord == nil {
				themeRecord = e.Record
			}
		case model.KindTypography:
			if typography == nil {
				typography = e.Record
			}
		}
	}

	if site == "" {
		return GenerateCSS(themeRecord, typography)
	}

	hash, err := util.JSONHash([]any{themeRecord, typography, defaultPalette(), defaultFontFamily()})
	if err == nil {
		if css, ok := cache.GetThemeCSS(string(site), hash); ok {
			return css
		}
	}

	css := GenerateCSS(themeRecord, typography)
	if err == nil {
		cache.SetThemeCSS(string(site), hash, css)
	}
	return css
}

func numberOr(record draft.Record, field draft.FieldName, fallback float64) float64 {
	if _, ok := record[field]; !ok {
		return fallback
	}
	return record.Number(field)
}

func formatNumber(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", f), "0"), ".")
}

// writeVar drops characters that could end the declaration early.
func writeVar(buf *strings.Builder, name, value string) {
	value = strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '\n', '\r':
			return -1
		}
		return r
	}, value)
	fmt.Fprintf(buf, "  --%s: %s;\n", name, value)
}
