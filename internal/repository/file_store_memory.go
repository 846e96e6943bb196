package repository

import (
	"context"
	"sort"
	"sync"

	"FinChat/internal/domain/models"
	"FinChat/internal/domain/repository"
)

// MemoryFileStore keeps file records in process. Used when no Postgres DSN is set.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string]map[string]*models.FileRecord // user -> filename -> record
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{files: make(map[string]map[string]*models.FileRecord)}
}

func (s *MemoryFileStore) Insert(_ context.Context, rec *models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.files[rec.UserID]
	if !ok {
		byName = make(map[string]*models.FileRecord)
		s.files[rec.UserID] = byName
	}
	if _, exists := byName[rec.Filename]; exists {
		return repository.ErrFileExists
	}
	cp := *rec
	byName[rec.Filename] = &cp
	return nil
}

func (s *MemoryFileStore) UpdateParseResult(_ context.Context, userID, filename string, res models.ParseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[userID][filename]
	if !ok {
		return repository.ErrFileNotFound
	}
	rec.Parsed = true
	rec.ParseResult = &models.ParseResult{Text: res.Text}
	return nil
}

func (s *MemoryFileStore) ListByUser(_ context.Context, userID string) ([]*models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.FileRecord, 0, len(s.files[userID]))
	for _, rec := range s.files[userID] {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Filename < out[j].Filename
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryFileStore) Get(_ context.Context, userID, filename string) (*models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[userID][filename]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryFileStore) Delete(_ context.Context, userID, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[userID][filename]; !ok {
		return repository.ErrFileNotFound
	}
	delete(s.files[userID], filename)
	return nil
}

func (s *MemoryFileStore) Close() error { return nil }

var _ repository.FileStore = (*MemoryFileStore)(nil)
