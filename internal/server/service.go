// Package server hosts the built-in complaint-management service: the
// business operations over a [store.Store] plus their REST API.
//
// The [Service] doubles as an in-process [complaints.Client], so a single
// deployment serves both the dialogue engine and external API consumers
// without a second process.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/nlu"
	"github.com/bontonsw/grievbot/internal/observe"
	"github.com/bontonsw/grievbot/internal/sms"
	"github.com/bontonsw/grievbot/internal/store"
)

// createIDAttempts bounds retries when a generated complaint ID collides.
const createIDAttempts = 3

// DefaultCategories is the issue category list offered when none is
// configured.
var DefaultCategories = []string{
	"Power failure",
	"Meter stopped",
	"Voltage fluctuation",
	"Billing issue",
	"Streetlight not working",
}

// ServiceOption configures a [Service] during construction.
type ServiceOption func(*Service)

// WithNotifier sets the SMS notifier. Default: [sms.Noop].
func WithNotifier(n sms.Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithCategories overrides the offered issue categories.
// Default: [DefaultCategories].
func WithCategories(cats []string) ServiceOption {
	return func(s *Service) {
		if len(cats) > 0 {
			s.categories = slices.Clone(cats)
		}
	}
}

// WithMetrics attaches observability instruments. Default: none.
func WithMetrics(m *observe.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// Service implements the complaint operations over a [store.Store].
type Service struct {
	store      store.Store
	notifier   sms.Notifier
	categories []string
	metrics    *observe.Metrics
}

// Compile-time interface check: the service is usable as the engine's client.
var _ complaints.Client = (*Service)(nil)

// NewService builds a Service over st.
func NewService(st store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:      st,
		notifier:   sms.Noop{},
		categories: DefaultCategories,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchCustomer implements [complaints.Client].
func (s *Service) FetchCustomer(ctx context.Context, beneficiaryNo string) (complaints.Customer, error) {
	rec, err := s.store.GetCustomer(ctx, beneficiaryNo)
	if err != nil {
		return complaints.Customer{}, fmt.Errorf("server: fetch customer: %w", err)
	}
	if rec == nil {
		return complaints.Customer{}, fmt.Errorf("server: customer %q: %w", beneficiaryNo, complaints.ErrNotFound)
	}
	return toCustomer(rec), nil
}

// ListPendingComplaints implements [complaints.Client]. Alongside the
// listing it texts the summary to the customer's registered number;
// delivery failures are logged, never surfaced.
func (s *Service) ListPendingComplaints(ctx context.Context, beneficiaryNo string) (complaints.PendingList, error) {
	cust, err := s.store.GetCustomer(ctx, beneficiaryNo)
	if err != nil {
		return complaints.PendingList{}, fmt.Errorf("server: pending complaints: %w", err)
	}
	if cust == nil {
		return complaints.PendingList{}, fmt.Errorf("server: customer %q: %w", beneficiaryNo, complaints.ErrNotFound)
	}

	recs, err := s.store.ListPending(ctx, cust.BeneficiaryNo)
	if err != nil {
		return complaints.PendingList{}, fmt.Errorf("server: pending complaints: %w", err)
	}

	list := complaints.PendingList{Items: make([]complaints.PendingComplaint, 0, len(recs))}
	for _, rec := range recs {
		list.Items = append(list.Items, complaints.PendingComplaint{
			ComplaintID:              rec.ComplaintID,
			IssueType:                rec.IssueType,
			Status:                   rec.Status,
			CreatedAt:                rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			EstimatedRestorationTime: rec.EstimatedRestoration,
		})
	}
	if len(recs) > 0 {
		list.SummaryText = summaryText(cust.Name, recs)
		s.sendSMS(ctx, cust.Phone, list.SummaryText, "pending_summary")
	}
	return list, nil
}

// ListIssueCategories implements [complaints.Client]. The fallback category
// is always appended last.
func (s *Service) ListIssueCategories(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(s.categories)+1)
	for _, c := range s.categories {
		if !strings.EqualFold(c, nlu.FallbackCategory) {
			out = append(out, c)
		}
	}
	return append(out, nlu.FallbackCategory), nil
}

// CreateComplaint implements [complaints.Client]. Unknown customers are
// registered from the payload's snapshot fields, mirroring what the web
// frontend sends on first contact.
func (s *Service) CreateComplaint(ctx context.Context, nc complaints.NewComplaint) (complaints.Receipt, error) {
	if nc.BeneficiaryNo == "" || nc.IssueType == "" {
		return complaints.Receipt{}, fmt.Errorf("server: beneficiary_no and issue_type are required: %w", complaints.ErrValidation)
	}

	cust, err := s.store.GetCustomer(ctx, nc.BeneficiaryNo)
	if err != nil {
		return complaints.Receipt{}, fmt.Errorf("server: create complaint: %w", err)
	}
	if cust == nil {
		if nc.Name == "" {
			return complaints.Receipt{}, fmt.Errorf("server: unknown customer %q and no registration details: %w", nc.BeneficiaryNo, complaints.ErrValidation)
		}
		cust = &store.CustomerRecord{
			BeneficiaryNo: nc.BeneficiaryNo,
			Name:          nc.Name,
			Phone:         nc.Phone,
			MeterID:       nc.MeterID,
			AccountNumber: nc.AccountNumber,
			CustomerType:  nc.CustomerType,
		}
		if err := s.store.UpsertCustomer(ctx, cust); err != nil {
			return complaints.Receipt{}, fmt.Errorf("server: register customer: %w", err)
		}
	}

	rec := &store.ComplaintRecord{
		BeneficiaryNo:     cust.BeneficiaryNo,
		IssueType:         nc.IssueType,
		ComplaintType:     string(nc.Channel),
		CustomDescription: nc.CustomDescription,
	}
	for attempt := 0; ; attempt++ {
		rec.ComplaintID = store.NewComplaintID()
		err = s.store.CreateComplaint(ctx, rec)
		if err == nil {
			break
		}
		if attempt+1 >= createIDAttempts {
			return complaints.Receipt{}, fmt.Errorf("server: create complaint: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ComplaintsFiled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", rec.ComplaintType),
			attribute.String("issue_type", rec.IssueType),
		))
	}
	slog.Info("server: complaint filed",
		"complaint_id", rec.ComplaintID,
		"beneficiary_no", rec.BeneficiaryNo,
		"issue_type", rec.IssueType,
	)
	return complaints.Receipt{ComplaintID: rec.ComplaintID}, nil
}

// CloseComplaint resolves a complaint, records the resolution note, and
// texts the customer a resolution notice. It returns the resolved record,
// or [complaints.ErrNotFound].
func (s *Service) CloseComplaint(ctx context.Context, complaintID, resolutionNote string) (*store.ComplaintRecord, error) {
	rec, err := s.store.CloseComplaint(ctx, complaintID, resolutionNote)
	if err != nil {
		return nil, fmt.Errorf("server: close complaint: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("server: complaint %q: %w", complaintID, complaints.ErrNotFound)
	}

	if cust, err := s.store.GetCustomer(ctx, rec.BeneficiaryNo); err == nil && cust != nil {
		s.sendSMS(ctx, cust.Phone, fmt.Sprintf("Your complaint %s has been resolved.", rec.ComplaintID), "resolution")
	}
	return rec, nil
}

// sendSMS delivers a notification best-effort.
func (s *Service) sendSMS(ctx context.Context, to, body, kind string) {
	if to == "" {
		return
	}
	status := "ok"
	if err := s.notifier.Send(ctx, to, body); err != nil {
		status = "error"
		slog.Warn("server: sms delivery failed", "kind", kind, "err", err)
	}
	if s.metrics != nil {
		s.metrics.SMSSent.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		))
	}
}

// summaryText renders the pending-complaint summary sent to customers.
func summaryText(name string, recs []store.ComplaintRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Complaint Summary for %s:", name)
	for _, rec := range recs {
		eta := rec.EstimatedRestoration
		if eta == "" {
			eta = "Not Available"
		}
		fmt.Fprintf(&b, "\n- ID: %s, Issue: %s, Created: %s, ETA: %s",
			rec.ComplaintID, rec.IssueType, rec.CreatedAt.Format("02-Jan-2006"), eta)
	}
	return b.String()
}

func toCustomer(rec *store.CustomerRecord) complaints.Customer {
	return complaints.Customer{
		BeneficiaryNo: rec.BeneficiaryNo,
		Name:          rec.Name,
		Phone:         rec.Phone,
		MeterID:       rec.MeterID,
		AccountNumber: rec.AccountNumber,
		CustomerType:  rec.CustomerType,
	}
}
