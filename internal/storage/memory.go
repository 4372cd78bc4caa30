package storage

import (
	"context"
	"sync"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

// MemoryStore keeps candidates in process. Writers are serialised by a
// single mutex.
type MemoryStore struct {
	mu         sync.Mutex
	order      []string
	candidates map[string]domain.Candidate
	emails     map[string]string
	audit      map[string][]domain.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]domain.Candidate),
		emails:     make(map[string]string),
		audit:      make(map[string][]domain.AuditEntry),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) ListCandidates(_ context.Context) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Candidate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.candidates[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetCandidate(_ context.Context, id string) (domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) UpdateCandidate(_ context.Context, id string, fn func(*domain.Candidate) error) (domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	next := c.Clone()
	if err := fn(&next); err != nil {
		return c.Clone(), err
	}
	s.candidates[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) ExistingEmails(_ context.Context, emails []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	for _, e := range emails {
		key := domain.NormalizeEmail(e)
		if _, ok := s.emails[key]; ok {
			out[key] = true
		}
	}
	return out, nil
}

// InsertCandidates adds candidates whose email is not taken and returns the
// ones actually stored.
func (s *MemoryStore) InsertCandidates(_ context.Context, cands []domain.Candidate) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := make([]domain.Candidate, 0, len(cands))
	for _, c := range cands {
		key := domain.NormalizeEmail(c.Email)
		if _, taken := s.emails[key]; taken {
			continue
		}
		if _, exists := s.candidates[c.ID]; exists {
			continue
		}
		s.emails[key] = c.ID
		s.candidates[c.ID] = c.Clone()
		s.order = append(s.order, c.ID)
		inserted = append(inserted, c.Clone())
	}
	return inserted, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit[entry.CandidateID] = append(s.audit[entry.CandidateID], entry)
	return nil
}

func (s *MemoryStore) ListAudit(_ context.Context, candidateID string) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, len(s.audit[candidateID]))
	copy(out, s.audit[candidateID])
	return out, nil
}
