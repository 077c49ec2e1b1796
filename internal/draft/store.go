package draft

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var draftLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	draftLogger = l
}

// Store keeps the open session of every editing surface. A surface owns at
// most one session at a time.
type Store struct {
	mu        sync.Mutex
	sessions  map[SessionId]*Session
	bySurface map[string]SessionId
}

func NewStore() *Store {
	return &Store{
		sessions:  make(map[SessionId]*Session),
		bySurface: make(map[string]SessionId),
	}
}

// Open starts a new session for surface. A session already open on the same
// surface is discarded first.
func (st *Store) Open(surface string, base Record, schema Schema, onCommit CommitFunc) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if prevId, ok := st.bySurface[surface]; ok {
		if prev := st.sessions[prevId]; prev != nil {
			if err := prev.Discard(); err != nil {
				draftLogger.Warn().Err(err).Str("session_id", string(prevId)).Msg("Failed to release previews of replaced session")
			}
			draftLogger.Debug().Str("session_id", string(prevId)).Str("surface", surface).Msg("Replaced open session")
		}
		delete(st.sessions, prevId)
	}

	s := Open(surface, base, schema, onCommit)
	st.sessions[s.Id] = s
	st.bySurface[surface] = s.Id

	draftLogger.Debug().Str("session_id", string(s.Id)).Str("surface", surface).Msg("Session opened")
	return s
}

func (st *Store) Get(id SessionId) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ForSurface returns the session currently open on surface.
func (st *Store) ForSurface(surface string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id, ok := st.bySurface[surface]
	if !ok {
		return nil, false
	}
	return st.sessions[id], true
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Commit saves the session and forgets it. When the commit callback fails
// the session stays open.
func (st *Store) Commit(id SessionId) (Record, error) {
	s, err := st.Get(id)
	if err != nil {
		return nil, err
	}

	merged, err := s.Commit()
	if err != nil {
		return nil, err
	}

	st.forget(s)
	draftLogger.Debug().Str("session_id", string(id)).Strs("dirty", namesToStrings(s.Dirty())).Msg("Session committed")
	return merged, nil
}

func (st *Store) Discard(id SessionId) error {
	s, err := st.Get(id)
	if err != nil {
		return err
	}

	err = s.Discard()
	st.forget(s)
	draftLogger.Debug().Str("session_id", string(id)).Msg("Session discarded")
	return err
}

// Close discards every open session.
func (st *Store) Close() error {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.sessions = make(map[SessionId]*Session)
	st.bySurface = make(map[string]SessionId)
	st.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Discard())
	}
	return errors.Join(errs...)
}

func (st *Store) forget(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, s.Id)
	if st.bySurface[s.Surface] == s.Id {
		delete(st.bySurface, s.Surface)
	}
}

func namesToStrings(names []FieldName) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = string(name)
	}
	return out
}
