// Package session holds per-conversation UI state: the last search results,
// the last episode list and the cooperative cancel flag. Process-lifetime
// only; nothing here is ever persisted.
package session

import (
	"errors"
	"sync"

	"github.com/animecourier/anime-courier/internal/catalogue"
)

// ErrStaleSelection: an index-based selection (a button tap) arrived for a
// list that has been superseded or never existed. Rejected rather than
// silently mapped to the wrong item.
var ErrStaleSelection = errors.New("selection does not match the current list")

// Store is a keyed map of conversation sessions. Safe for concurrent use;
// conversations never share state.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*state
}

type state struct {
	titles        []catalogue.TitleResult
	episodes      []catalogue.EpisodeRef
	selectedTitle string
	cancel        bool
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*state)}
}

func (s *Store) session(convID int64) *state {
	st, ok := s.sessions[convID]
	if !ok {
		st = &state{}
		s.sessions[convID] = st
	}
	return st
}

// PutTitles replaces the cached search results for a conversation. The
// previous episode list is dropped too: its indices are meaningless against a
// new search.
func (s *Store) PutTitles(convID int64, titles []catalogue.TitleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.session(convID)
	st.titles = append([]catalogue.TitleResult(nil), titles...)
	st.episodes = nil
	st.selectedTitle = ""
}

// PutEpisodes replaces the cached episode list after a title selection.
func (s *Store) PutEpisodes(convID int64, title string, eps []catalogue.EpisodeRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.session(convID)
	st.episodes = append([]catalogue.EpisodeRef(nil), eps...)
	st.selectedTitle = title
}

// TitleAt resolves an index against the most recently cached title list.
func (s *Store) TitleAt(convID int64, index int) (catalogue.TitleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[convID]
	if !ok || index < 0 || index >= len(st.titles) {
		return catalogue.TitleResult{}, ErrStaleSelection
	}
	return st.titles[index], nil
}

// EpisodeAt resolves an index against the most recently cached episode list.
func (s *Store) EpisodeAt(convID int64, index int) (catalogue.EpisodeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[convID]
	if !ok || index < 0 || index >= len(st.episodes) {
		return catalogue.EpisodeRef{}, ErrStaleSelection
	}
	return st.episodes[index], nil
}

// Episodes returns a copy of the cached episode list (for "download all").
func (s *Store) Episodes(convID int64) []catalogue.EpisodeRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[convID]
	if !ok {
		return nil
	}
	return append([]catalogue.EpisodeRef(nil), st.episodes...)
}

// SelectedTitle returns the display name backing the cached episode list.
func (s *Store) SelectedTitle(convID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[convID]; ok {
		return st.selectedTitle
	}
	return ""
}

// Cancel raises the conversation's cancel flag. Cooperative: the orchestrator
// polls it at its checkpoints.
func (s *Store) Cancel(convID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(convID).cancel = true
}

// Cancelled reports the flag without clearing it.
func (s *Store) Cancelled(convID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[convID]
	return ok && st.cancel
}

// ResetCancel lowers the flag at the start of a new request.
func (s *Store) ResetCancel(convID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(convID).cancel = false
}

// Clear drops all cached state for a conversation.
func (s *Store) Clear(convID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, convID)
}
