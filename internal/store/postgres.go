package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the customers and complaints tables. Execute it
// via [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS customers (
    beneficiary_no TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    phone          TEXT NOT NULL DEFAULT '',
    meter_id       TEXT NOT NULL DEFAULT '',
    account_number TEXT NOT NULL DEFAULT '',
    customer_type  TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_customers_beneficiary_lower
    ON customers (lower(beneficiary_no));

CREATE TABLE IF NOT EXISTS complaints (
    complaint_id          TEXT PRIMARY KEY,
    beneficiary_no        TEXT NOT NULL REFERENCES customers(beneficiary_no),
    issue_type            TEXT NOT NULL,
    complaint_type        TEXT NOT NULL DEFAULT 'text',
    custom_description    TEXT NOT NULL DEFAULT '',
    status                TEXT NOT NULL DEFAULT 'open',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    estimated_restoration TEXT NOT NULL DEFAULT '',
    resolution_note       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_complaints_beneficiary ON complaints(beneficiary_no);
CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// customers and complaints tables if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by beneficiary number. The lookup is
// case-insensitive so spoken identifiers resolve too. It returns (nil, nil)
// if no customer matches.
func (s *PostgresStore) GetCustomer(ctx context.Context, beneficiaryNo string) (*CustomerRecord, error) {
	const query = `
		SELECT beneficiary_no, name, phone, meter_id, account_number, customer_type
		FROM customers
		WHERE lower(beneficiary_no) = lower($1)`

	var c CustomerRecord
	err := s.db.QueryRow(ctx, query, beneficiaryNo).Scan(
		&c.BeneficiaryNo, &c.Name, &c.Phone, &c.MeterID, &c.AccountNumber, &c.CustomerType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get customer %q: %w", beneficiaryNo, err)
	}
	return &c, nil
}

// UpsertCustomer creates or replaces a customer record keyed by beneficiary
// number.
func (s *PostgresStore) UpsertCustomer(ctx context.Context, c *CustomerRecord) error {
	const query = `
		INSERT INTO customers (beneficiary_no, name, phone, meter_id, account_number, customer_type)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (beneficiary_no) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			meter_id = EXCLUDED.meter_id,
			account_number = EXCLUDED.account_number,
			customer_type = EXCLUDED.customer_type`

	_, err := s.db.Exec(ctx, query,
		c.BeneficiaryNo, c.Name, c.Phone, c.MeterID, c.AccountNumber, c.CustomerType,
	)
	if err != nil {
		return fmt.Errorf("store: upsert customer %q: %w", c.BeneficiaryNo, err)
	}
	return nil
}

// CreateComplaint inserts a new complaint and fills in the store-assigned
// CreatedAt. It returns an error if the complaint ID already exists.
func (s *PostgresStore) CreateComplaint(ctx context.Context, rec *ComplaintRecord) error {
	const query = `
		INSERT INTO complaints (
			complaint_id, beneficiary_no, issue_type, complaint_type,
			custom_description, status, estimated_restoration
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		rec.ComplaintID, rec.BeneficiaryNo, rec.IssueType, defaultType(rec.ComplaintType),
		rec.CustomDescription, defaultStatus(rec.Status), rec.EstimatedRestoration,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: complaint %q already exists", rec.ComplaintID)
		}
		return fmt.Errorf("store: create complaint: %w", err)
	}
	return nil
}

// GetComplaint retrieves a complaint by ID. It returns (nil, nil) if no
// complaint with the ID exists.
func (s *PostgresStore) GetComplaint(ctx context.Context, complaintID string) (*ComplaintRecord, error) {
	const query = `
		SELECT complaint_id, beneficiary_no, issue_type, complaint_type,
		       custom_description, status, created_at, estimated_restoration,
		       resolution_note
		FROM complaints
		WHERE complaint_id = $1`

	var rec ComplaintRecord
	err := s.db.QueryRow(ctx, query, complaintID).Scan(
		&rec.ComplaintID, &rec.BeneficiaryNo, &rec.IssueType, &rec.ComplaintType,
		&rec.CustomDescription, &rec.Status, &rec.CreatedAt, &rec.EstimatedRestoration,
		&rec.ResolutionNote,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get complaint %q: %w", complaintID, err)
	}
	return &rec, nil
}

// ListPending returns the customer's unresolved complaints, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, beneficiaryNo string) ([]ComplaintRecord, error) {
	const query = `
		SELECT complaint_id, beneficiary_no, issue_type, complaint_type,
		       custom_description, status, created_at, estimated_restoration
		FROM complaints
		WHERE lower(beneficiary_no) = lower($1) AND status <> 'resolved'
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, beneficiaryNo)
	if err != nil {
		return nil, fmt.Errorf("store: list pending: %w", err)
	}
	defer rows.Close()

	var recs []ComplaintRecord
	for rows.Next() {
		var rec ComplaintRecord
		if err := rows.Scan(
			&rec.ComplaintID, &rec.BeneficiaryNo, &rec.IssueType, &rec.ComplaintType,
			&rec.CustomDescription, &rec.Status, &rec.CreatedAt, &rec.EstimatedRestoration,
		); err != nil {
			return nil, fmt.Errorf("store: list pending scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list pending: %w", err)
	}
	return recs, nil
}

// CloseComplaint marks a complaint resolved, records the resolution note,
// and returns the updated record. It returns (nil, nil) if no complaint with
// the ID exists.
func (s *PostgresStore) CloseComplaint(ctx context.Context, complaintID, resolutionNote string) (*ComplaintRecord, error) {
	const query = `
		UPDATE complaints SET status = 'resolved', resolution_note = $2
		WHERE complaint_id = $1
		RETURNING complaint_id, beneficiary_no, issue_type, complaint_type,
		          custom_description, status, created_at, estimated_restoration,
		          resolution_note`

	var rec ComplaintRecord
	err := s.db.QueryRow(ctx, query, complaintID, resolutionNote).Scan(
		&rec.ComplaintID, &rec.BeneficiaryNo, &rec.IssueType, &rec.ComplaintType,
		&rec.CustomDescription, &rec.Status, &rec.CreatedAt, &rec.EstimatedRestoration,
		&rec.ResolutionNote,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: close complaint %q: %w", complaintID, err)
	}
	return &rec, nil
}

// defaultType returns the complaint type, defaulting to "text" if empty.
func defaultType(t string) string {
	if t == "" {
		return "text"
	}
	return t
}

// defaultStatus returns the status, defaulting to "open" if empty.
func defaultStatus(st string) string {
	if st == "" {
		return StatusOpen
	}
	return st
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
