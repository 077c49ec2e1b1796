package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debemdeboas/site-builder/internal/db"
	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/util/compression"
)

type DBElementRepository struct { // implements ElementRepository
	db         db.Db
	compressor compression.Compressor

	changeNotifier func(model.ElementId)

	mu               sync.Mutex
	lastModifiedTime *time.Time
	knownHashes      map[model.ElementId]string
}

func NewDBElementRepository(db db.Db, compressor compression.Compressor) *DBElementRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBElementRepository{
		db:          db,
		compressor:  compressor,
		knownHashes: make(map[model.ElementId]string),
	}
}

func (r *DBElementRepository) SetChangeNotifier(notifier func(model.ElementId)) {
	r.changeNotifier = notifier
}

func (r *DBElementRepository) CreateSite(site *model.Site) error {
	_, err := r.db.Exec(
		`INSERT INTO sites (id, name, template, created_at) VALUES (?, ?, ?, ?)`,
		site.Id, site.Name, site.Template, site.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("error saving site: %w", err)
	}
	return nil
}

func (r *DBElementRepository) GetSite(id model.SiteId) (*model.Site, error) {
	var site model.Site
	err := r.db.QueryRow(`SELECT id, name, template, created_at FROM sites WHERE id = ?`, id).
		Scan(&site.Id, &site.Name, &site.Template, &site.CreatedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("error reading site: %w", err)
	}
	return &site, nil
}

func (r *DBElementRepository) ListSites() ([]model.Site, error) {
	rows, err := r.db.Query(`SELECT id, name, template, created_at FROM sites ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("error querying sites: %w", err)
	}
	defer rows.Close()

	sites := make([]model.Site, 0)
	for rows.Next() {
		var site model.Site
		if err := rows.Scan(&site.Id, &site.Name, &site.Template, &site.CreatedDate); err != nil {
			return nil, fmt.Errorf("error scanning site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (r *DBElementRepository) CreateElement(element *model.Element) error {
	compressed, hash, err := r.encodeRecord(element.Record)
	if err != nil {
		return err
	}
	element.ContentHash = hash

	_, err = r.db.Exec(
		`INSERT INTO elements (id, site_id, kind, name, record, content_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		element.Id, element.SiteId, element.Kind, element.Name, compressed, hash, element.CreatedDate, element.ModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("error saving element: %w", err)
	}

	repoLogger.Debug().Str("element_id", string(element.Id)).Str("kind", string(element.Kind)).Msg("Element created")
	return nil
}

const selectElement = `SELECT id, site_id, kind, name, record, content_hash, created_at, modified_at FROM elements`

func (r *DBElementRepository) GetElement(id model.ElementId) (*model.Element, error) {
	element, err := r.scanElement(r.db.QueryRow(selectElement+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	return element, err
}

func (r *DBElementRepository) ListElements(siteId model.SiteId) ([]model.Element, error) {
	rows, err := r.db.Query(selectElement+` WHERE site_id = ?`, siteId)
	if err != nil {
		return nil, fmt.Errorf("error querying elements: %w", err)
	}
	defer rows.Close()

	elements := make([]model.Element, 0)
	for rows.Next() {
		element, err := r.scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, *element)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	sortElements(elements)
	return elements, nil
}

func (r *DBElementRepository) UpdateRecord(id model.ElementId, record draft.Record) (*model.Element, error) {
	compressed, hash, err := r.encodeRecord(record)
	if err != nil {
		return nil, err
	}

	res, err := r.db.Exec(
		`UPDATE elements SET record = ?, content_hash = ?, modified_at = ? WHERE id = ?`,
		compressed, hash, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating element: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}

	repoLogger.Debug().Str("element_id", string(id)).Str("content_hash", hash).Msg("Element record updated")

	r.mu.Lock()
	previous, known := r.knownHashes[id]
	r.knownHashes[id] = hash
	r.mu.Unlock()

	if (!known || previous != hash) && r.changeNotifier != nil {
		go r.changeNotifier(id)
	}

	return r.GetElement(id)
}

// GetLatestModifiedTime returns the most recent element modification, or nil
// when there are no elements.
func (r *DBElementRepository) GetLatestModifiedTime() (*time.Time, error) {
	var latestTimeStr sql.NullString
	err := r.db.QueryRow(`SELECT MAX(modified_at) FROM elements`).Scan(&latestTimeStr)
	if err != nil {
		return nil, fmt.Errorf("error scanning latest modified time: %w", err)
	}

	if !latestTimeStr.Valid {
		return nil, nil
	}

	// The go-sqlite3 driver returns a string for MAX(), so we must parse it.
	timeFormats := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		time.RFC3339,
	}

	var latestTime time.Time
	var parseErr error
	for _, format := range timeFormats {
		latestTime, parseErr = time.Parse(format, latestTimeStr.String)
		if parseErr == nil {
			return &latestTime, nil
		}
	}

	return nil, fmt.Errorf("error parsing latest modified time '%s' with any known format: %w", latestTimeStr.String, parseErr)
}

// CheckChanges notifies about every element whose record hash differs from
// the previous check. Elements seen for the first time are only recorded.
func (r *DBElementRepository) CheckChanges() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	latestTime, err := r.GetLatestModifiedTime()
	if err != nil {
		return err
	}

	if r.lastModifiedTime != nil && latestTime != nil && !latestTime.After(*r.lastModifiedTime) {
		repoLogger.Debug().Msg("No elements modified, skipping reload")
		return nil
	}

	rows, err := r.db.Query(`SELECT id, content_hash FROM elements`)
	if err != nil {
		return fmt.Errorf("error querying element hashes: %w", err)
	}
	defer rows.Close()

	var changed []model.ElementId
	for rows.Next() {
		var id model.ElementId
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return fmt.Errorf("error scanning element hash: %w", err)
		}

		if known, ok := r.knownHashes[id]; ok && known != hash {
			repoLogger.Info().Str("element_id", string(id)).Msg("Element record changed")
			changed = append(changed, id)
		}
		r.knownHashes[id] = hash
	}
	if err := rows.Err(); err != nil {
		return err
	}

	r.lastModifiedTime = latestTime

	if r.changeNotifier != nil {
		for _, id := range changed {
			go r.changeNotifier(id)
		}
	}
	return nil
}

// Watch polls the database for records changed by other processes until ctx
// is done.
func (r *DBElementRepository) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.CheckChanges(); err != nil {
			repoLogger.Error().Err(err).Msg("Error checking element changes")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DBElementRepository) scanElement(row rowScanner) (*model.Element, error) {
	var element model.Element
	var compressed []byte
	var name sql.NullString
	var modified sql.NullTime

	err := row.Scan(&element.Id, &element.SiteId, &element.Kind, &name, &compressed,
		&element.ContentHash, &element.CreatedDate, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning element: %w", err)
	}
	element.Name = name.String
	element.ModifiedDate = modified.Time

	element.Record, err = r.decodeRecord(compressed)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", element.Id, err)
	}
	return &element, nil
}

func (r *DBElementRepository) encodeRecord(record draft.Record) ([]byte, string, error) {
	if record == nil {
		record = draft.Record{}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, "", fmt.Errorf("error encoding record: %w", err)
	}

	compressed, err := r.compressor.Compress(data)
	if err != nil {
		return nil, "", fmt.Errorf("error compressing record: %w", err)
	}

	return compressed, recordHash(record), nil
}

func (r *DBElementRepository) decodeRecord(compressed []byte) (draft.Record, error) {
	record := draft.Record{}
	if len(compressed) == 0 {
		return record, nil
	}

	data, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing record: %w", err)
	}

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("error decoding record: %w", err)
	}
	return record, nil
}
