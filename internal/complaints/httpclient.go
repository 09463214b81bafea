package complaints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
)

// Option is a functional option for configuring an [HTTPClient].
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how many times a failed GET is retried before the error
// is surfaced. POSTs are never retried — a complaint must not be filed
// twice because of a flaky network. Default: 2.
func WithRetries(n int) Option {
	return func(c *HTTPClient) {
		c.retries = n
	}
}

// WithHTTPClient replaces the underlying [http.Client]. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// HTTPClient is a [Client] backed by the complaint service's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	retries    int
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient for the service at baseURL
// (e.g., "http://localhost:5003"). baseURL must be non-empty.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("complaints: baseURL must not be empty")
	}
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retries:    defaultRetries,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// FetchCustomer implements [Client].
func (c *HTTPClient) FetchCustomer(ctx context.Context, beneficiaryNo string) (Customer, error) {
	var cust Customer
	path := "/fetch-customer/" + url.PathEscape(beneficiaryNo)
	if err := c.getJSON(ctx, path, &cust); err != nil {
		return Customer{}, fmt.Errorf("complaints: fetch customer %q: %w", beneficiaryNo, err)
	}
	if cust.BeneficiaryNo == "" {
		cust.BeneficiaryNo = beneficiaryNo
	}
	return cust, nil
}

// ListPendingComplaints implements [Client].
func (c *HTTPClient) ListPendingComplaints(ctx context.Context, beneficiaryNo string) (PendingList, error) {
	var list PendingList
	path := "/pending-complaints/" + url.PathEscape(beneficiaryNo)
	if err := c.getJSON(ctx, path, &list); err != nil {
		return PendingList{}, fmt.Errorf("complaints: pending complaints for %q: %w", beneficiaryNo, err)
	}
	return list, nil
}

// ListIssueCategories implements [Client].
func (c *HTTPClient) ListIssueCategories(ctx context.Context) ([]string, error) {
	var labels []string
	if err := c.getJSON(ctx, "/issue-types", &labels); err != nil {
		return nil, fmt.Errorf("complaints: issue categories: %w", err)
	}
	return labels, nil
}

// CreateComplaint implements [Client]. The request is issued exactly once.
func (c *HTTPClient) CreateComplaint(ctx context.Context, nc NewComplaint) (Receipt, error) {
	body, err := json.Marshal(nc)
	if err != nil {
		return Receipt{}, fmt.Errorf("complaints: marshal new complaint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/new-complaint", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("complaints: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("complaints: create complaint: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return Receipt{}, fmt.Errorf("complaints: create complaint: %w", err)
	}

	var rec Receipt
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Receipt{}, fmt.Errorf("complaints: decode receipt: %w", err)
	}
	return rec, nil
}

// getJSON issues a GET for path and decodes the JSON response into out,
// retrying transient failures up to the configured retry count.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = c.getJSONOnce(ctx, path, out)
		if lastErr == nil {
			return nil
		}
		// NotFound and validation responses are definitive; do not retry.
		if errorsIsTerminal(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *HTTPClient) getJSONOnce(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// checkStatus maps HTTP status codes to the package error kinds. The body
// is drained on error so the connection can be reused.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		io.Copy(io.Discard, resp.Body)
		return ErrValidation
	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
}

func errorsIsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation)
}
