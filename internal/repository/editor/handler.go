// Package editor serves the editing surface of an element over HTTP. Every
// open surface is backed by a draft session; committing writes the merged
// record to the element repository.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/site-builder/internal/config"
	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/preview"
	"github.com/debemdeboas/site-builder/internal/repository"
	"github.com/debemdeboas/site-builder/internal/routes"
)

var editorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

// Room for the multipart envelope around the uploaded file.
const multipartOverhead = 64 << 10

const promoteTimeout = 30 * time.Second

type Handler struct {
	sessions *draft.Store
	repo     repository.ElementRepository
	previews preview.Store

	maxUploadBytes int64
}

func NewHandler(sessions *draft.Store, repo repository.ElementRepository, previews preview.Store, maxUploadBytes int64) *Handler {
	return &Handler{
		sessions:       sessions,
		repo:           repo,
		previews:       previews,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+routes.APIElementSession, h.ServeOpen)
	mux.HandleFunc("GET "+routes.APISession, h.ServeSession)
	mux.HandleFunc("PUT "+routes.APISessionField, h.ServeSetField)
	mux.HandleFunc("POST "+routes.APISessionUpload, h.ServeUpload)
	mux.HandleFunc("GET "+routes.APISessionChanges, h.ServeChanges)
	mux.HandleFunc("POST "+routes.APISessionCommit, h.ServeCommit)
	mux.HandleFunc("POST "+routes.APISessionDiscard, h.ServeDiscard)
}

type sessionView struct {
	Id        draft.SessionId `json:"id"`
	ElementId model.ElementId `json:"elementId"`
	State     string          `json:"state"`
	Base      draft.Record    `json:"base"`
	Fields    draft.Record    `json:"fields"`
	Dirty     []string        `json:"dirty"`
}

func viewOf(s *draft.Session) sessionView {
	dirty := make([]string, 0)
	for _, name := range s.Dirty() {
		dirty = append(dirty, string(name))
	}
	return sessionView{
		Id:        s.Id,
		ElementId: model.ElementId(s.Surface),
		State:     s.State().String(),
		Base:      s.Base(),
		Fields:    s.Fields(),
		Dirty:     dirty,
	}
}

// ServeOpen starts editing an element. Opening an element that already has
// a session discards the old one.
func (h *Handler) ServeOpen(w http.ResponseWriter, r *http.Request) {
	elementId := model.ElementId(r.PathValue("id"))

	element, err := h.repo.GetElement(elementId)
	if err != nil {
		writeError(w, err)
		return
	}

	schema := model.SchemaFor(element.Kind)
	s := h.sessions.Open(string(element.Id), element.Record, schema, h.commitFunc(element.Id, schema))

	editorLogger.Info().Str("session_id", string(s.Id)).Str("element_id", string(element.Id)).Msg("Editing session opened")
	writeJSON(w, http.StatusCreated, viewOf(s))
}

// commitFunc promotes uploaded previews and saves the merged record. If the
// save fails the promoted assets are removed again and the previews stay with
// the session. The repository notifies watchers of the element.
func (h *Handler) commitFunc(elementId model.ElementId, schema draft.Schema) draft.CommitFunc {
	return func(merged draft.Record) (draft.Record, error) {
		ctx, cancel := context.WithTimeout(context.Background(), promoteTimeout)
		defer cancel()

		promotion, err := preview.PromoteRecord(ctx, h.previews, schema, merged)
		if err != nil {
			return nil, err
		}

		element, err := h.repo.UpdateRecord(elementId, merged)
		if err != nil {
			if rbErr := promotion.Rollback(ctx); rbErr != nil {
				editorLogger.Error().Err(rbErr).Str("element_id", string(elementId)).Msg("Failed to remove promoted assets")
			}
			return nil, err
		}

		if err := promotion.Finish(ctx); err != nil {
			editorLogger.Warn().Err(err).Str("element_id", string(elementId)).Msg("Promoted previews left behind")
		}
		return element.Record, nil
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*draft.Session, bool) {
	s, err := h.sessions.Get(draft.SessionId(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

type fieldUpdate struct {
	Value any `json:"value"`
}

func (h *Handler) ServeSetField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body fieldUpdate
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		http.Error(w, config.ErrInvalidFieldBody, http.StatusBadRequest)
		return
	}

	field := draft.FieldName(r.PathValue("field"))
	if err := s.Set(field, body.Value); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(s))
}

// ServeUpload stores the uploaded image as a temporary preview and shows it
// in the field. The preview is removed again if the session is discarded.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	file, _, err := r.FormFile(config.FormFile)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, config.ErrUploadTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		http.Error(w, config.ErrUploadTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		http.Error(w, config.ErrUploadNotImage, http.StatusUnsupportedMediaType)
		return
	}

	handle, err := h.previews.Create(r.Context(), contentType, data)
	if err != nil {
		editorLogger.Error().Err(err).Str("session_id", string(s.Id)).Msg("Failed to create preview")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	field := draft.FieldName(r.PathValue("field"))
	if err := s.SetResource(field, handle); err != nil {
		writeError(w, err)
		return
	}

	editorLogger.Debug().Str("session_id", string(s.Id)).Str("field", string(field)).Str("ref", handle.Ref()).Msg("Preview attached")
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) ServeChanges(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, draft.Changes(s))
}

func (h *Handler) ServeCommit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := h.sessions.Commit(s.Id); err != nil {
		editorLogger.Error().Err(err).Str("session_id", string(s.Id)).Msg("Commit failed")
		writeError(w, err)
		return
	}

	element, err := h.repo.GetElement(model.ElementId(s.Surface))
	if err != nil {
		writeError(w, err)
		return
	}

	editorLogger.Info().Str("session_id", string(s.Id)).Str("element_id", string(element.Id)).Str("content_hash", element.ContentHash).Msg("Session committed")
	writeJSON(w, http.StatusOK, element)
}

func (h *Handler) ServeDiscard(w http.ResponseWriter, r *http.Request) {
	id := draft.SessionId(r.PathValue("id"))
	if err := h.sessions.Discard(id); err != nil {
		if errors.Is(err, draft.ErrSessionNotFound) {
			writeError(w, err)
			return
		}
		// The session is closed either way; only preview cleanup failed.
		editorLogger.Warn().Err(err).Str("session_id", string(id)).Msg("Failed to release previews")
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		editorLogger.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, draft.ErrSessionNotFound):
		http.Error(w, config.ErrSessionNotFound, http.StatusNotFound)
	case errors.Is(err, repository.ErrElementNotFound):
		http.Error(w, config.ErrElementNotFound, http.StatusNotFound)
	case errors.Is(err, draft.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, draft.ErrTypeMismatch):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		editorLogger.Error().Err(err).Msg("Editor request failed")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
	}
}
