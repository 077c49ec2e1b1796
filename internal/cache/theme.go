package cache

import "html/template"

// Theme CSS is cached per site next to the content hash of the records it was
// built from. A commit changes the hash and the site's entry is replaced, so
// the cache holds at most one stylesheet per site.
type themeEntry struct {
	hash string
	css  template.CSS
}

var themeCSSCache = NewCache[string, themeEntry]()

func GetThemeCSS(site, hash string) (template.CSS, bool) {
	entry, ok := themeCSSCache.Get(site)
	if !ok || entry.hash != hash {
		return "", false
	}
	return entry.css, true
}

func SetThemeCSS(site, hash string, css template.CSS) {
	themeCSSCache.Set(site, themeEntry{hash: hash, css: css})
}

func ThemeCSSLen() int {
	return themeCSSCache.Len()
}

func ClearThemeCSSCache() {
	themeCSSCache.Clear()
}
