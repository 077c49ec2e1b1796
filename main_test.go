package main

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/debemdeboas/site-builder/internal/config"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/repository"
	"github.com/debemdeboas/site-builder/internal/templates"
	"github.com/debemdeboas/site-builder/internal/theme"
)

func setupMux(t *testing.T) *http.ServeMux {
	t.Helper()

	elementRepo = repository.NewMemoryElementRepository()
	mux := http.NewServeMux()
	registerRoutes(mux)
	return mux
}

func createSite(t *testing.T, mux *http.ServeMux, name, template string) model.Site {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/sites", strings.NewReader(`{"name":"`+name+`","template":"`+template+`"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating site, got %d: %s", rec.Code, rec.Body.String())
	}

	var site model.Site
	if err := json.NewDecoder(rec.Body).Decode(&site); err != nil {
		t.Fatalf("Failed to decode site: %v", err)
	}
	return site
}

func TestCreateAndServeSite(t *testing.T) {
	mux := setupMux(t)
	site := createSite(t, mux, "Trattoria", "restaurant")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sites/"+string(site.Id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Id       model.SiteId    `json:"id"`
		Elements []model.Element `json:"elements"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode site: %v", err)
	}
	if body.Id != site.Id || len(body.Elements) == 0 {
		t.Errorf("Unexpected site body %+v", body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sites", nil))
	var sites []model.Site
	json.NewDecoder(rec.Body).Decode(&sites)
	if len(sites) != 1 {
		t.Errorf("Expected 1 site, got %d", len(sites))
	}
}

func TestCreateSiteErrors(t *testing.T) {
	mux := setupMux(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "Unknown template", body: `{"name":"Bakery","template":"bakery"}`},
		{name: "Missing name", body: `{"template":"restaurant"}`},
		{name: "Invalid JSON", body: `{`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sites", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestServeSiteNotFound(t *testing.T) {
	mux := setupMux(t)

	for _, path := range []string{"/api/sites/nonexistent", "/api/sites/nonexistent/theme.css"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, rec.Code)
		}
	}
}

func TestServeSiteTheme(t *testing.T) {
	mux := setupMux(t)
	site := createSite(t, mux, "Express Freight", "transport")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sites/"+string(site.Id)+"/theme.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/css" {
		t.Errorf("Expected text/css, got %q", ct)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("Expected ETag header")
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "--color-primary: #0b5fff;") {
		t.Errorf("Expected template primary colour, got:\n%s", body)
	}
}

func TestServePalettesAndTemplates(t *testing.T) {
	mux := setupMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/palettes", nil))
	var palettes []theme.Palette
	if err := json.NewDecoder(rec.Body).Decode(&palettes); err != nil || len(palettes) == 0 {
		t.Errorf("Expected palettes, got %d (%v)", len(palettes), err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	var list []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 2 {
		t.Fatalf("Expected 2 templates, got %d (%v)", len(list), err)
	}
	if list[0]["id"] != "restaurant" {
		t.Errorf("Expected camelCase id key, got %v", list[0])
	}
	elements, ok := list[0]["elements"].([]any)
	if !ok || len(elements) == 0 {
		t.Fatalf("Expected template elements, got %v", list[0]["elements"])
	}
	if first, _ := elements[0].(map[string]any); first["kind"] == nil || first["record"] == nil {
		t.Errorf("Expected kind and record keys on elements, got %v", elements[0])
	}
}

func TestTemplateImagesAreEmbedded(t *testing.T) {
	names, err := templates.Names()
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}

	for _, name := range names {
		tmpl, err := templates.Load(name)
		if err != nil {
			t.Fatalf("Load %s failed: %v", name, err)
		}
		for _, seed := range tmpl.Elements {
			src, _ := seed.Record["src"].(string)
			if !strings.HasPrefix(src, config.StaticUrlPath) {
				continue
			}
			if _, err := fs.Stat(content, strings.TrimPrefix(src, "/")); err != nil {
				t.Errorf("Template %s element %s references missing %s", name, seed.Name, src)
			}
		}
	}
}

func TestEventsHandlerRequiresElement(t *testing.T) {
	rec := httptest.NewRecorder()
	eventsHandler(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestEventsHandlerReceivesUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events?element=hero", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		eventsHandler(rec, req)
		close(done)
	}()

	// Wait for the client to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for clients.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	handleElementChange("hero")

	// Give the handler a moment to write the event, then disconnect.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event: connected") {
		t.Errorf("Expected connected event, got %q", body)
	}
	if !strings.Contains(body, "data: updated") {
		t.Errorf("Expected update event, got %q", body)
	}
	if clients.Len() != 0 {
		t.Errorf("Expected client to be removed, got %d", clients.Len())
	}
}

func TestMiddlewares(t *testing.T) {
	h := cacheIt(secureHeaders(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/sites", nil))

	if rec.Header().Get("X-Frame-Options") != "deny" {
		t.Error("Expected X-Frame-Options header")
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Expected no-cache, got %q", rec.Header().Get("Cache-Control"))
	}
}

func TestCORS(t *testing.T) {
	h := withCORS([]string{"https://editor.example.com"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("Allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
		req.Header.Set("Origin", "https://editor.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://editor.example.com" {
			t.Errorf("Expected origin to be allowed, got %q", got)
		}
	})

	t.Run("Other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Expected no CORS header, got %q", got)
		}
	})
}
