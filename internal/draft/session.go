package draft

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionId string

type State int

const (
	StateEditing State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateEditing {
		return "editing"
	}
	return "closed"
}

// CommitFunc receives the merged record when a session is saved and returns
// the record that was actually persisted, which may differ from merged when
// the host rewrites values (e.g. promoted resource URLs). A nil record means
// merged was stored as-is. Returning an error keeps the session open so the
// user can retry or cancel.
type CommitFunc func(merged Record) (Record, error)

// Session is the working copy of one element's record for a single
// open/close cycle of an editing surface.
type Session struct {
	Id       SessionId
	Surface  string
	OpenedAt time.Time

	mu       sync.Mutex
	state    State
	schema   Schema
	base     Record
	fields   Record
	dirty    *FieldSet
	temps    map[FieldName]*Handle
	onCommit CommitFunc
}

// Open starts a session on a copy of base. The caller's record is never
// modified by the session.
func Open(surface string, base Record, schema Schema, onCommit CommitFunc) *Session {
	return &Session{
		Id:       SessionId(uuid.New().String()),
		Surface:  surface,
		OpenedAt: time.Now().UTC(),

		state:    StateEditing,
		schema:   schema,
		base:     base.Clone(),
		fields:   base.Clone(),
		dirty:    NewFieldSet(),
		temps:    make(map[FieldName]*Handle),
		onCommit: onCommit,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Schema() Schema {
	return s.schema
}

// Base returns a copy of the record captured at open.
func (s *Session) Base() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.Clone()
}

// Fields returns a copy of the current draft values.
func (s *Session) Fields() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields.Clone()
}

func (s *Session) Get(name FieldName) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.fields[name]
	return v, ok
}

func (s *Session) Dirty() []FieldName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty.Names()
}

func (s *Session) IsDirty(name FieldName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty.Has(name)
}

// Resource returns the temporary handle currently held for name, if any.
func (s *Session) Resource(name FieldName) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temps[name]
}

// Set records an explicit edit of name. Only the value type is validated.
func (s *Session) Set(name FieldName, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return ErrSessionClosed
	}

	v, err := s.schema.Coerce(name, value)
	if err != nil {
		return err
	}

	// A plain value replaces whatever preview the field was showing.
	if err := s.dropTemp(name); err != nil {
		draftLogger.Warn().Err(err).Str("session_id", string(s.Id)).Str("field", string(name)).Msg("Failed to release replaced preview")
	}

	s.fields[name] = v
	s.dirty.Add(name)
	return nil
}

// SetResource installs a freshly created temporary resource as the value of
// name. Any handle previously held for the same field is released first. If
// the session is closed or the field cannot hold a resource, h is released
// before returning so it never leaks.
func (s *Session) SetResource(name FieldName, h *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return errors.Join(ErrSessionClosed, h.Release())
	}

	if kind, ok := s.schema[name]; ok && kind != KindResource && kind != KindAny {
		err := fmt.Errorf("%w: field %q wants %s, got resource", ErrTypeMismatch, name, kind)
		return errors.Join(err, h.Release())
	}

	var releaseErr error
	if prev := s.temps[name]; prev != h {
		releaseErr = s.dropTemp(name)
	}

	s.temps[name] = h
	s.fields[name] = h.Ref()
	s.dirty.Add(name)

	if releaseErr != nil {
		draftLogger.Warn().Err(releaseErr).Str("session_id", string(s.Id)).Str("field", string(name)).Msg("Failed to release replaced preview")
	}
	return nil
}

// Merged returns what Commit would produce without closing the session.
func (s *Session) Merged() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merged()
}

func (s *Session) merged() Record {
	merged := s.base.Clone()
	for _, name := range s.dirty.Names() {
		merged[name] = s.fields[name]
	}
	return merged
}

// Commit merges the dirty fields into the base record, hands it to the
// commit callback and closes the session. The result is the record the
// callback persisted. Temporary resources of the session are transferred to
// it.
func (s *Session) Commit() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return nil, ErrSessionClosed
	}

	merged := s.merged()
	if s.onCommit != nil {
		saved, err := s.onCommit(merged.Clone())
		if err != nil {
			return nil, fmt.Errorf("commit session %s: %w", s.Id, err)
		}
		if saved != nil {
			merged = saved.Clone()
		}
	}

	for name, h := range s.temps {
		h.Transfer()
		delete(s.temps, name)
	}
	s.state = StateClosed

	return merged, nil
}

// Discard reverts the draft to the values captured at open and releases the
// temporary resources the session created. Discarding a closed session is a
// no-op.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return nil
	}

	var errs []error
	for name := range s.temps {
		errs = append(errs, s.dropTemp(name))
	}

	s.fields = s.base.Clone()
	s.dirty.Clear()
	s.state = StateClosed

	return errors.Join(errs...)
}

// dropTemp forgets the handle held for name and releases it unless the base
// record already references it.
func (s *Session) dropTemp(name FieldName) error {
	h, ok := s.temps[name]
	if !ok {
		return nil
	}
	delete(s.temps, name)

	if s.referencedByBase(h.Ref()) {
		return nil
	}
	return h.Release()
}

func (s *Session) referencedByBase(ref string) bool {
	if ref == "" {
		return false
	}
	for _, v := range s.base {
		if v == ref {
			return true
		}
	}
	return false
}
