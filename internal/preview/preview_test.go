package preview

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/debemdeboas/site-builder/internal/draft"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("/previews")
	ctx := context.Background()

	t.Run("Create and serve", func(t *testing.T) {
		h, err := store.Create(ctx, "image/png", []byte("png-bytes"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		defer h.Release()

		if !strings.HasPrefix(h.Ref(), "/previews/") || !strings.HasSuffix(h.Ref(), ".png") {
			t.Errorf("Unexpected ref %q", h.Ref())
		}

		req := httptest.NewRequest(http.MethodGet, h.Ref(), nil)
		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected image/png, got %q", ct)
		}
		body, _ := io.ReadAll(rec.Body)
		if string(body) != "png-bytes" {
			t.Errorf("Unexpected body %q", body)
		}
	})

	t.Run("Release removes the blob", func(t *testing.T) {
		before := store.Len()
		h, _ := store.Create(ctx, "image/jpeg", []byte("jpeg"))
		if store.Len() != before+1 {
			t.Fatalf("Expected %d previews, got %d", before+1, store.Len())
		}

		if err := h.Release(); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if err := h.Release(); err != nil {
			t.Fatalf("Second release failed: %v", err)
		}
		if store.Len() != before {
			t.Errorf("Expected %d previews after release, got %d", before, store.Len())
		}

		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, h.Ref(), nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for released preview, got %d", rec.Code)
		}
	})

	t.Run("Transferred preview survives", func(t *testing.T) {
		h, _ := store.Create(ctx, "image/gif", []byte("gif"))
		h.Transfer()
		h.Release()

		promoted, err := store.Promote(ctx, h.Ref())
		if err != nil || promoted != h.Ref() {
			t.Errorf("Expected ref to be kept, got %q (%v)", promoted, err)
		}

		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, h.Ref(), nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 for transferred preview, got %d", rec.Code)
		}
	})

	t.Run("Remove deletes own blobs only", func(t *testing.T) {
		h, _ := store.Create(ctx, "image/png", []byte("png"))
		before := store.Len()

		if err := store.Remove(ctx, "/elsewhere/x.png"); err != nil {
			t.Fatalf("Remove of foreign ref failed: %v", err)
		}
		if store.Len() != before {
			t.Errorf("Expected foreign ref to be ignored, got %d previews", store.Len())
		}

		if err := store.Remove(ctx, h.Ref()); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if store.Len() != before-1 {
			t.Errorf("Expected %d previews after remove, got %d", before-1, store.Len())
		}
	})

	t.Run("Method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/previews/x.png", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})
}

type fakeStore struct {
	promoted []string
	removed  []string
	fail     string
}

func (f *fakeStore) Create(context.Context, string, []byte) (*draft.Handle, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Promote(_ context.Context, ref string) (string, error) {
	if ref == f.fail {
		return "", errors.New("copy failed")
	}
	if !strings.HasPrefix(ref, "/tmp/") {
		return ref, nil
	}
	f.promoted = append(f.promoted, ref)
	return "/assets/" + strings.TrimPrefix(ref, "/tmp/"), nil
}

func (f *fakeStore) Remove(_ context.Context, ref string) error {
	f.removed = append(f.removed, ref)
	return nil
}

func TestPromoteRecord(t *testing.T) {
	schema := draft.Schema{
		draft.FieldSrc: draft.KindResource,
		"poster":       draft.KindResource,
		draft.FieldAlt: draft.KindString,
	}
	ctx := context.Background()

	t.Run("Only resource fields are promoted", func(t *testing.T) {
		store := &fakeStore{}
		record := draft.Record{draft.FieldSrc: "/tmp/a.png", draft.FieldAlt: "/tmp/not-a-resource"}

		p, err := PromoteRecord(ctx, store, schema, record)
		if err != nil {
			t.Fatalf("PromoteRecord failed: %v", err)
		}
		if record.String(draft.FieldSrc) != "/assets/a.png" {
			t.Errorf("Expected promoted src, got %q", record.String(draft.FieldSrc))
		}
		if record.String(draft.FieldAlt) != "/tmp/not-a-resource" {
			t.Errorf("Expected alt untouched, got %q", record.String(draft.FieldAlt))
		}
		if p.Len() != 1 || len(store.promoted) != 1 {
			t.Errorf("Expected 1 promotion, got %d", len(store.promoted))
		}
		if len(store.removed) != 0 {
			t.Errorf("Expected nothing removed before the save, got %v", store.removed)
		}
	})

	t.Run("Finish removes the previews", func(t *testing.T) {
		store := &fakeStore{}
		record := draft.Record{draft.FieldSrc: "/tmp/a.png", "poster": "/static/kept.png"}

		p, err := PromoteRecord(ctx, store, schema, record)
		if err != nil {
			t.Fatalf("PromoteRecord failed: %v", err)
		}
		if err := p.Finish(ctx); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}
		if len(store.removed) != 1 || store.removed[0] != "/tmp/a.png" {
			t.Errorf("Expected only the preview to be removed, got %v", store.removed)
		}
	})

	t.Run("Rollback removes the assets", func(t *testing.T) {
		store := &fakeStore{}
		record := draft.Record{draft.FieldSrc: "/tmp/a.png"}

		p, err := PromoteRecord(ctx, store, schema, record)
		if err != nil {
			t.Fatalf("PromoteRecord failed: %v", err)
		}
		if err := p.Rollback(ctx); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if len(store.removed) != 1 || store.removed[0] != "/assets/a.png" {
			t.Errorf("Expected the asset to be removed, got %v", store.removed)
		}
		if p.Len() != 0 {
			t.Errorf("Expected rollback to forget the promotion, got %d", p.Len())
		}
	})

	t.Run("Empty resource is skipped", func(t *testing.T) {
		store := &fakeStore{}
		if _, err := PromoteRecord(ctx, store, schema, draft.Record{}); err != nil {
			t.Fatalf("PromoteRecord failed: %v", err)
		}
		if len(store.promoted) != 0 {
			t.Errorf("Expected no promotions, got %v", store.promoted)
		}
	})

	t.Run("Failure undoes the other promotions", func(t *testing.T) {
		store := &fakeStore{fail: "/tmp/b.png"}
		record := draft.Record{draft.FieldSrc: "/tmp/a.png", "poster": "/tmp/b.png"}

		if _, err := PromoteRecord(ctx, store, schema, record); err == nil {
			t.Fatal("Expected error")
		}
		if record.String(draft.FieldSrc) != "/tmp/a.png" || record.String("poster") != "/tmp/b.png" {
			t.Errorf("Expected record unchanged, got %v", record)
		}
		if len(store.promoted) != 1 || len(store.removed) != 1 || store.removed[0] != "/assets/a.png" {
			t.Errorf("Expected the copied asset to be removed, promoted %v removed %v", store.promoted, store.removed)
		}
	})

	t.Run("Nil promotion", func(t *testing.T) {
		var p *Promotion
		if p.Len() != 0 || p.Finish(ctx) != nil || p.Rollback(ctx) != nil {
			t.Error("Expected nil promotion to be a no-op")
		}
	})
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/webp", ".webp"},
		{"image/gif; charset=binary", ".gif"},
		{"not a type", ""},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := extensionFor(tt.contentType); got != tt.want {
				t.Errorf("extensionFor(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestS3StoreKeys(t *testing.T) {
	s := &S3Store{opts: S3Options{
		Bucket:      "site",
		PublicURL:   "https://cdn.example.com/",
		TempPrefix:  "tmp/",
		AssetPrefix: "assets/",
	}}

	if got := s.url("tmp/a.png"); got != "https://cdn.example.com/tmp/a.png" {
		t.Errorf("Unexpected url %q", got)
	}

	key, ok := s.key("https://cdn.example.com/tmp/a.png")
	if !ok || key != "tmp/a.png" {
		t.Errorf("Expected key tmp/a.png, got %q %v", key, ok)
	}

	if _, ok := s.key("/static/a.png"); ok {
		t.Error("Expected foreign ref to be rejected")
	}

	// Refs outside the temp prefix are not touched, so no client is needed.
	ref := "https://cdn.example.com/assets/a.png"
	got, err := s.Promote(context.Background(), ref)
	if err != nil || got != ref {
		t.Errorf("Expected asset ref unchanged, got %q (%v)", got, err)
	}
}
