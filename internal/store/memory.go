package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory [Store]. It backs deployments without a
// configured database and most tests. All data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	customers  map[string]CustomerRecord  // keyed by lowercased beneficiary number
	complaints map[string]ComplaintRecord // keyed by complaint ID
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:  make(map[string]CustomerRecord),
		complaints: make(map[string]ComplaintRecord),
	}
}

// GetCustomer retrieves a customer by beneficiary number, matched
// case-insensitively. It returns (nil, nil) if not found.
func (s *MemoryStore) GetCustomer(_ context.Context, beneficiaryNo string) (*CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[strings.ToLower(beneficiaryNo)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// UpsertCustomer creates or replaces a customer record.
func (s *MemoryStore) UpsertCustomer(_ context.Context, c *CustomerRecord) error {
	if c.BeneficiaryNo == "" {
		return fmt.Errorf("store: upsert customer: beneficiary_no is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[strings.ToLower(c.BeneficiaryNo)] = *c
	return nil
}

// CreateComplaint inserts a new complaint, stamping CreatedAt and defaulting
// the status to open.
func (s *MemoryStore) CreateComplaint(_ context.Context, rec *ComplaintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.complaints[rec.ComplaintID]; dup {
		return fmt.Errorf("store: complaint %q already exists", rec.ComplaintID)
	}
	if rec.Status == "" {
		rec.Status = StatusOpen
	}
	if rec.ComplaintType == "" {
		rec.ComplaintType = "text"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.complaints[rec.ComplaintID] = *rec
	return nil
}

// GetComplaint retrieves a complaint by ID, or (nil, nil) if unknown.
func (s *MemoryStore) GetComplaint(_ context.Context, complaintID string) (*ComplaintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.complaints[complaintID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListPending returns the customer's unresolved complaints, oldest first.
func (s *MemoryStore) ListPending(_ context.Context, beneficiaryNo string) ([]ComplaintRecord, error) {
	key := strings.ToLower(beneficiaryNo)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []ComplaintRecord
	for _, rec := range s.complaints {
		if strings.ToLower(rec.BeneficiaryNo) == key && rec.Status != StatusResolved {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return recs, nil
}

// CloseComplaint marks a complaint resolved, records the resolution note,
// and returns the updated record, or (nil, nil) if the ID is unknown.
func (s *MemoryStore) CloseComplaint(_ context.Context, complaintID, resolutionNote string) (*ComplaintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.complaints[complaintID]
	if !ok {
		return nil, nil
	}
	rec.Status = StatusResolved
	rec.ResolutionNote = resolutionNote
	s.complaints[complaintID] = rec
	return &rec, nil
}
