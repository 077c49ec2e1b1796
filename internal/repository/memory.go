package repository

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/site-builder/internal/cache"
	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/model"
)

type MemoryElementRepository struct { // implements ElementRepository
	sites    *cache.Cache[model.SiteId, *model.Site]
	elements *cache.Cache[model.ElementId, *model.Element]

	// serialises read-modify-write of records
	mu sync.Mutex

	changeNotifier func(model.ElementId)
}

func NewMemoryElementRepository() *MemoryElementRepository {
	return &MemoryElementRepository{
		sites:    cache.NewCache[model.SiteId, *model.Site](),
		elements: cache.NewCache[model.ElementId, *model.Element](),
	}
}

func (r *MemoryElementRepository) SetChangeNotifier(notifier func(model.ElementId)) {
	r.changeNotifier = notifier
}

func (r *MemoryElementRepository) CreateSite(site *model.Site) error {
	if _, ok := r.sites.Get(site.Id); ok {
		return fmt.Errorf("site %s already exists", site.Id)
	}
	s := *site
	r.sites.Set(site.Id, &s)
	return nil
}

func (r *MemoryElementRepository) GetSite(id model.SiteId) (*model.Site, error) {
	site, ok := r.sites.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, id)
	}
	s := *site
	return &s, nil
}

func (r *MemoryElementRepository) ListSites() ([]model.Site, error) {
	sites := make([]model.Site, 0)
	for _, s := range r.sites.Values() {
		sites = append(sites, *s)
	}
	slices.SortStableFunc(sites, func(a, b model.Site) int {
		return a.CreatedDate.Compare(b.CreatedDate)
	})
	return sites, nil
}

func (r *MemoryElementRepository) CreateElement(element *model.Element) error {
	if _, ok := r.sites.Get(element.SiteId); !ok {
		return fmt.Errorf("%w: %s", ErrSiteNotFound, element.SiteId)
	}
	if _, ok := r.elements.Get(element.Id); ok {
		return fmt.Errorf("element %s already exists", element.Id)
	}

	element.ContentHash = recordHash(element.Record)
	r.elements.Set(element.Id, copyElement(element))
	return nil
}

func (r *MemoryElementRepository) GetElement(id model.ElementId) (*model.Element, error) {
	element, ok := r.elements.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	return copyElement(element), nil
}

func (r *MemoryElementRepository) ListElements(siteId model.SiteId) ([]model.Element, error) {
	elements := make([]model.Element, 0)
	for _, e := range r.elements.Values() {
		if e.SiteId == siteId {
			elements = append(elements, *copyElement(e))
		}
	}
	sortElements(elements)
	return elements, nil
}

func (r *MemoryElementRepository) UpdateRecord(id model.ElementId, record draft.Record) (*model.Element, error) {
	r.mu.Lock()
	element, ok := r.elements.Get(id)
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}

	updated := copyElement(element)
	updated.Record = record.Clone()
	updated.ContentHash = recordHash(updated.Record)
	updated.ModifiedDate = time.Now().UTC()
	r.elements.Set(id, updated)
	r.mu.Unlock()

	if updated.ContentHash != element.ContentHash && r.changeNotifier != nil {
		go r.changeNotifier(id)
	}
	return copyElement(updated), nil
}

func copyElement(e *model.Element) *model.Element {
	c := *e
	c.Record = e.Record.Clone()
	return &c
}

func sortElements(elements []model.Element) {
	slices.SortStableFunc(elements, func(a, b model.Element) int {
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
