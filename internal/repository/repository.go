// Package repository persists sites and the committed records of their elements.
package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/util"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

var (
	ErrSiteNotFound    = errors.New("site not found")
	ErrElementNotFound = errors.New("element not found")
)

type ElementRepository interface {
	CreateSite(site *model.Site) error
	GetSite(id model.SiteId) (*model.Site, error)
	ListSites() ([]model.Site, error)

	CreateElement(element *model.Element) error
	GetElement(id model.ElementId) (*model.Element, error)
	ListElements(siteId model.SiteId) ([]model.Element, error)

	// UpdateRecord replaces the committed record of an element and returns
	// the stored element.
	UpdateRecord(id model.ElementId, record draft.Record) (*model.Element, error)

	// SetChangeNotifier sets a function that will be called when an element record changes.
	SetChangeNotifier(notifier func(model.ElementId))
}

func NewSite(name, template string) *model.Site {
	return &model.Site{
		Id:          model.SiteId(uuid.New().String()),
		Name:        name,
		Template:    template,
		CreatedDate: time.Now().UTC(),
	}
}

func NewElement(siteId model.SiteId, kind model.ElementKind, name string, record draft.Record) *model.Element {
	now := time.Now().UTC()
	return &model.Element{
		Id:     model.ElementId(uuid.New().String()),
		SiteId: siteId,
		Kind:   kind,
		Name:   name,
		Record: record.Clone(),

		CreatedDate:  now,
		ModifiedDate: now,
	}
}

func recordHash(record draft.Record) string {
	hash, err := util.JSONHash(record)
	if err != nil {
		repoLogger.Warn().Err(err).Msg("Failed to hash record")
		return ""
	}
	return hash
}
