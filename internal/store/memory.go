package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rcliao/memeboard/internal/model"
)

// MemoryStore implements Store with process-local maps. Nothing survives a
// restart; it is meant for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	memes  map[string]*model.Meme
	admins map[string]model.Admin
	ids    *idSource
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memes:  make(map[string]*model.Meme),
		admins: make(map[string]model.Admin),
		ids:    newIDSource(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memes[id]
	if !ok {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	out := m.Clone()
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, p ListParams) ([]model.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*model.Meme, 0, len(s.memes))
	for _, m := range s.memes {
		all = append(all, m)
	}
	return applyListParams(all, p), nil
}

func (s *MemoryStore) Create(ctx context.Context, p CreateParams) (*model.Meme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.insertLocked(p)
	return &m, nil
}

func (s *MemoryStore) insertLocked(p CreateParams) model.Meme {
	now := model.Now()
	tags := append([]string{}, p.Tags...)
	m := &model.Meme{
		ID:          s.ids.newID(now),
		Title:       p.Title,
		Tags:        tags,
		ImageURL:    p.ImageURL,
		CreatedAt:   now,
		EditHistory: []model.EditHistoryEntry{},
	}
	s.memes[m.ID] = m
	return m.Clone()
}

func (s *MemoryStore) CreateBulk(ctx context.Context, items []CreateParams) ([]model.Meme, error) {
	out := make([]model.Meme, 0, len(items))
	for _, p := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s.mu.Lock()
		m := s.insertLocked(p)
		s.mu.Unlock()
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Meme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memes[id]
	if !ok {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Tags != nil {
		m.Tags = append([]string{}, p.Tags...)
	}
	if p.ImageURL != nil {
		m.ImageURL = *p.ImageURL
	}
	if p.IsLocked != nil {
		m.IsLocked = *p.IsLocked
	}
	if p.IsFeatured != nil {
		m.IsFeatured = *p.IsFeatured
	}
	out := m.Clone()
	return &out, nil
}

func (s *MemoryStore) ApplyEdit(ctx context.Context, id, title string, tags []string) (*model.Meme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memes[id]
	if !ok {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	if m.IsLocked {
		return nil, fmt.Errorf("meme %s: %w", id, ErrLocked)
	}
	now := model.Now()
	entry := model.EditHistoryEntry{
		PreviousName: m.Title,
		PreviousTags: append([]string{}, m.Tags...),
		EditedAt:     now,
	}
	m.Title = title
	m.Tags = append([]string{}, tags...)
	m.EditedByUsers++
	m.LastEditedAt = &now
	m.EditHistory = append(m.EditHistory, entry)
	out := m.Clone()
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memes[id]; !ok {
		return false, nil
	}
	delete(s.memes, id)
	return true, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &Stats{Total: len(s.memes)}
	for _, m := range s.memes {
		if m.IsLocked {
			st.Locked++
		}
		if m.IsFeatured {
			st.Featured++
		}
		st.Edits += m.EditedByUsers
	}
	return st, nil
}

func (s *MemoryStore) CreateAdmin(ctx context.Context, a model.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[a.Username]; ok {
		return fmt.Errorf("admin %s: %w", a.Username, ErrAdminExists)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = model.Now()
	}
	s.admins[a.Username] = a
	return nil
}

func (s *MemoryStore) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[username]
	if !ok {
		return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
	}
	return &a, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
