// Package preview creates temporary resources for uploaded files. A preview
// lives until the owning draft session either discards it (the handle is
// released) or commits it (the preview is promoted to a persisted asset).
package preview

import (
	"context"
	"errors"
	"mime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/site-builder/internal/draft"
)

var previewLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	previewLogger = l
}

var ErrPreviewNotFound = errors.New("preview not found")

type Store interface {
	// Create stores data as a temporary preview. Releasing the returned
	// handle removes it.
	Create(ctx context.Context, contentType string, data []byte) (*draft.Handle, error)

	// Promote copies the preview behind ref to a permanent asset and returns
	// the URL the committed record should reference. The preview itself is
	// left in place. Refs that are not previews of this store are returned
	// unchanged.
	Promote(ctx context.Context, ref string) (string, error)

	// Remove deletes the object behind ref. Refs that do not belong to this
	// store are ignored.
	Remove(ctx context.Context, ref string) error
}

// Promotion is the set of previews copied to assets for one commit. The save
// that follows decides which side is removed: Finish drops the previews once
// the record referencing the assets is stored, Rollback drops the assets when
// the save failed so the session can retry or discard.
type Promotion struct {
	store Store
	moved map[string]string // preview ref -> asset ref
}

// PromoteRecord promotes every resource field of record in place. When a
// promotion fails, the assets copied so far are removed and record is left
// untouched.
func PromoteRecord(ctx context.Context, store Store, schema draft.Schema, record draft.Record) (*Promotion, error) {
	p := &Promotion{store: store, moved: make(map[string]string)}
	updates := make(map[draft.FieldName]string)

	var errs []error
	for name, kind := range schema {
		if kind != draft.KindResource {
			continue
		}
		ref := record.String(name)
		if ref == "" {
			continue
		}

		if asset, ok := p.moved[ref]; ok {
			updates[name] = asset
			continue
		}

		promoted, err := store.Promote(ctx, ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if promoted != ref {
			p.moved[ref] = promoted
		}
		updates[name] = promoted
	}

	if err := errors.Join(errs...); err != nil {
		return nil, errors.Join(err, p.Rollback(ctx))
	}

	for name, ref := range updates {
		record[name] = ref
	}
	return p, nil
}

// Len is the number of previews that were copied.
func (p *Promotion) Len() int {
	if p == nil {
		return 0
	}
	return len(p.moved)
}

// Finish removes the promoted previews. Their assets are now owned by the
// stored record.
func (p *Promotion) Finish(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	for ref := range p.moved {
		errs = append(errs, p.store.Remove(ctx, ref))
	}
	return errors.Join(errs...)
}

// Rollback removes the assets created by the promotion. The previews are
// kept and still belong to the session that uploaded them.
func (p *Promotion) Rollback(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	for ref, asset := range p.moved {
		errs = append(errs, p.store.Remove(ctx, asset))
		delete(p.moved, ref)
	}
	return errors.Join(errs...)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}

	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}
