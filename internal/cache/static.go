package cache

import (
	"io/fs"

	"github.com/debemdeboas/site-builder/internal/util"
)

var staticCache = NewCache[string, string]()

func GetStaticHash(path string) (string, bool) {
	return staticCache.Get(path)
}

func SetStaticHash(path, hash string) {
	staticCache.Set(path, hash)
}

// HashStatic records the content hash of every file in fsys under urlPrefix,
// to be served as ETags.
func HashStatic(fsys fs.FS, urlPrefix string) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		SetStaticHash(urlPrefix+path, util.ContentHash(data))
		return nil
	})
}
