package cache

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/debemdeboas/site-builder/internal/util"
)

func TestCache_BasicOperations(t *testing.T) {
	cache := NewCache[string, string]()

	t.Run("Set and Get", func(t *testing.T) {
		cache.Set("test-key", "test-value")

		got, exists := cache.Get("test-key")
		if !exists {
			t.Error("Expected key to exist")
		}
		if got != "test-value" {
			t.Errorf("Expected %q, got %q", "test-value", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		if _, exists := cache.Get("non-existent"); exists {
			t.Error("Expected key to not exist")
		}
	})

	t.Run("Take removes the key", func(t *testing.T) {
		cache.Set("take-key", "v")

		got, ok := cache.Take("take-key")
		if !ok || got != "v" {
			t.Errorf("Expected to take 'v', got %q (%v)", got, ok)
		}
		if _, ok := cache.Take("take-key"); ok {
			t.Error("Expected second take to miss")
		}
	})

	t.Run("Delete and Len", func(t *testing.T) {
		c := NewCache[int, int]()
		c.Set(1, 1)
		c.Set(2, 2)
		c.Delete(1)
		c.Delete(42)

		if c.Len() != 1 {
			t.Errorf("Expected 1 item, got %d", c.Len())
		}
	})
}

func TestCache_SetToAndClear(t *testing.T) {
	cache := NewCache[string, string]()
	cache.Set("old", "value")

	cache.SetTo(map[string]string{"new1": "a", "new2": "b"})
	if _, ok := cache.Get("old"); ok {
		t.Error("Expected old items to be replaced")
	}

	values := cache.Values()
	sort.Strings(values)
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Errorf("Unexpected values %v", values)
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d items", cache.Len())
	}
}

func TestCache_Concurrency(t *testing.T) {
	cache := NewCache[int, string]()
	const numGoroutines = 50
	const numOperations = 200

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				cache.Set(id*numOperations+j, fmt.Sprintf("value-%d-%d", id, j))
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				cache.Take(id*numOperations + j)
				cache.Values()
			}
		}(i)
	}
	wg.Wait()
}

func TestThemeCSSCache(t *testing.T) {
	ClearThemeCSSCache()

	SetThemeCSS("site-1", "abc", ":root { --primary: #fff; }")

	css, ok := GetThemeCSS("site-1", "abc")
	if !ok || css != ":root { --primary: #fff; }" {
		t.Errorf("Expected cached css, got %q (%v)", css, ok)
	}
	if _, ok := GetThemeCSS("site-1", "def"); ok {
		t.Error("Expected a different hash to miss")
	}
	if _, ok := GetThemeCSS("site-2", "abc"); ok {
		t.Error("Expected a different site to miss")
	}

	SetThemeCSS("site-1", "def", ":root { --primary: #000; }")
	if ThemeCSSLen() != 1 {
		t.Errorf("Expected the new hash to replace the entry, got %d entries", ThemeCSSLen())
	}
	if _, ok := GetThemeCSS("site-1", "abc"); ok {
		t.Error("Expected the old hash to be gone")
	}

	ClearThemeCSSCache()
	if _, ok := GetThemeCSS("site-1", "def"); ok {
		t.Error("Expected cache to be cleared")
	}
}

func TestStaticHash(t *testing.T) {
	SetStaticHash("/static/editor.js", "hash")
	if h, ok := GetStaticHash("/static/editor.js"); !ok || h != "hash" {
		t.Errorf("Expected static hash, got %q (%v)", h, ok)
	}
}

func TestHashStatic(t *testing.T) {
	fsys := fstest.MapFS{
		"css/site.css":   {Data: []byte("body{}")},
		"js/editor.js":   {Data: []byte("export {}")},
		"empty/.gitkeep": {Data: nil},
	}

	if err := HashStatic(fsys, "/assets/"); err != nil {
		t.Fatalf("HashStatic failed: %v", err)
	}

	h, ok := GetStaticHash("/assets/css/site.css")
	if !ok || h != util.ContentHashString("body{}") {
		t.Errorf("Expected content hash for site.css, got %q (%v)", h, ok)
	}
	if _, ok := GetStaticHash("/assets/js/editor.js"); !ok {
		t.Error("Expected hash for editor.js")
	}
	if _, ok := GetStaticHash("/assets/css"); ok {
		t.Error("Expected directories to be skipped")
	}
}

func BenchmarkCache_Get(b *testing.B) {
	cache := NewCache[int, string]()
	for i := 0; i < 10000; i++ {
		cache.Set(i, fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(i % 10000)
	}
}
