package preview

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/debemdeboas/site-builder/internal/cache"
	"github.com/debemdeboas/site-builder/internal/config"
	"github.com/debemdeboas/site-builder/internal/draft"
)

type blob struct {
	contentType string
	data        []byte
}

type MemoryStore struct { // implements Store
	urlPrefix string
	blobs     *cache.Cache[string, blob]
}

// NewMemoryStore keeps previews in process memory and serves them under
// urlPrefix (see Handler).
func NewMemoryStore(urlPrefix string) *MemoryStore {
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &MemoryStore{
		urlPrefix: urlPrefix,
		blobs:     cache.NewCache[string, blob](),
	}
}

func (s *MemoryStore) Create(_ context.Context, contentType string, data []byte) (*draft.Handle, error) {
	key := uuid.New().String() + extensionFor(contentType)
	s.blobs.Set(key, blob{contentType: contentType, data: data})

	previewLogger.Debug().Str("key", key).Int("size", len(data)).Msg("Preview created")

	return draft.NewHandle(s.urlPrefix+key, func() error {
		if _, ok := s.blobs.Take(key); ok {
			previewLogger.Debug().Str("key", key).Msg("Preview released")
		}
		return nil
	}), nil
}

// Promote keeps the blob where it is; a transferred handle is never released.
func (s *MemoryStore) Promote(_ context.Context, ref string) (string, error) {
	return ref, nil
}

func (s *MemoryStore) Remove(_ context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, s.urlPrefix)
	if !ok {
		return nil
	}
	if _, ok := s.blobs.Take(key); ok {
		previewLogger.Debug().Str("key", key).Msg("Preview removed")
	}
	return nil
}

// Len is the number of previews currently held.
func (s *MemoryStore) Len() int {
	return s.blobs.Len()
}

func (s *MemoryStore) Handler() http.Handler {
	return http.StripPrefix(s.urlPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
			return
		}

		b, ok := s.blobs.Get(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set(config.HCType, b.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
		w.Header().Set(config.HCacheControl, "no-store")
		w.Write(b.data)
	}))
}
