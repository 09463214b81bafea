package store_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/bontonsw/grievbot/internal/store"
)

func seedCustomer(t *testing.T, s store.Store) *store.CustomerRecord {
	t.Helper()
	c := &store.CustomerRecord{
		BeneficiaryNo: "BEN123",
		Name:          "Asha Rao",
		Phone:         "+919600000001",
		MeterID:       "MTR-0042",
		AccountNumber: "ACC-77",
		CustomerType:  "domestic",
	}
	if err := s.UpsertCustomer(context.Background(), c); err != nil {
		t.Fatalf("UpsertCustomer: %v", err)
	}
	return c
}

func TestMemoryStore_CustomerLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seedCustomer(t, s)

	got, err := s.GetCustomer(context.Background(), "ben123")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got == nil || got.Name != "Asha Rao" {
		t.Errorf("GetCustomer(ben123) = %+v", got)
	}

	missing, err := s.GetCustomer(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown customer = %+v, want nil", missing)
	}
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	c := seedCustomer(t, s)

	c.Phone = "+919600000099"
	if err := s.UpsertCustomer(context.Background(), c); err != nil {
		t.Fatalf("UpsertCustomer: %v", err)
	}
	got, err := s.GetCustomer(context.Background(), "BEN123")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.Phone != "+919600000099" {
		t.Errorf("Phone = %q after upsert", got.Phone)
	}
}

func TestMemoryStore_PendingLifecycle(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seedCustomer(t, s)
	ctx := context.Background()

	older := &store.ComplaintRecord{
		ComplaintID:   "CMP-AAAAAA",
		BeneficiaryNo: "BEN123",
		IssueType:     "Power failure",
		CreatedAt:     time.Now().Add(-time.Hour).UTC(),
	}
	newer := &store.ComplaintRecord{
		ComplaintID:   "CMP-BBBBBB",
		BeneficiaryNo: "BEN123",
		IssueType:     "Meter stopped",
		ComplaintType: "voice",
	}
	for _, rec := range []*store.ComplaintRecord{newer, older} {
		if err := s.CreateComplaint(ctx, rec); err != nil {
			t.Fatalf("CreateComplaint(%s): %v", rec.ComplaintID, err)
		}
	}
	if newer.Status != store.StatusOpen || newer.CreatedAt.IsZero() {
		t.Errorf("defaults not applied: %+v", newer)
	}

	pending, err := s.ListPending(ctx, "ben123")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ComplaintID != "CMP-AAAAAA" {
		t.Errorf("pending not oldest-first: %v", pending)
	}

	closed, err := s.CloseComplaint(ctx, "CMP-AAAAAA", "supply restored")
	if err != nil {
		t.Fatalf("CloseComplaint: %v", err)
	}
	if closed == nil || closed.Status != store.StatusResolved {
		t.Errorf("closed = %+v", closed)
	}
	if closed != nil && closed.ResolutionNote != "supply restored" {
		t.Errorf("resolution note = %q, want %q", closed.ResolutionNote, "supply restored")
	}

	stored, err := s.GetComplaint(ctx, "CMP-AAAAAA")
	if err != nil {
		t.Fatalf("GetComplaint: %v", err)
	}
	if stored == nil || stored.ResolutionNote != "supply restored" {
		t.Errorf("stored = %+v, want persisted resolution note", stored)
	}

	pending, err = s.ListPending(ctx, "BEN123")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ComplaintID != "CMP-BBBBBB" {
		t.Errorf("pending after close = %v", pending)
	}
}

func TestMemoryStore_DuplicateComplaintID(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	seedCustomer(t, s)
	ctx := context.Background()

	rec := &store.ComplaintRecord{ComplaintID: "CMP-DUP111", BeneficiaryNo: "BEN123", IssueType: "Others"}
	if err := s.CreateComplaint(ctx, rec); err != nil {
		t.Fatalf("CreateComplaint: %v", err)
	}
	dup := &store.ComplaintRecord{ComplaintID: "CMP-DUP111", BeneficiaryNo: "BEN123", IssueType: "Others"}
	if err := s.CreateComplaint(ctx, dup); err == nil {
		t.Fatal("expected error for duplicate complaint id, got nil")
	}
}

func TestMemoryStore_CloseUnknownComplaint(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	rec, err := s.CloseComplaint(context.Background(), "CMP-MISSING", "")
	if err != nil {
		t.Fatalf("CloseComplaint: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil for unknown id", rec)
	}
}

func TestNewComplaintID(t *testing.T) {
	t.Parallel()
	pattern := regexp.MustCompile(`^CMP-[A-Z0-9]{6}$`)

	seen := make(map[string]struct{})
	for range 64 {
		id := store.NewComplaintID()
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match %v", id, pattern)
		}
		seen[id] = struct{}{}
	}
	// 64 draws from a 36^6 space colliding would point at a broken source.
	if len(seen) < 60 {
		t.Errorf("only %d distinct ids out of 64", len(seen))
	}
}
