package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bontonsw/grievbot/internal/config"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

func init() {
	Register("twilio", func(cfg config.SMSConfig) (Notifier, error) {
		return NewTwilio(cfg)
	})
}

// Twilio sends messages through the Twilio REST API.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ Notifier = (*Twilio)(nil)

// TwilioOption configures a [Twilio] notifier during construction.
type TwilioOption func(*Twilio)

// WithBaseURL overrides the Twilio API endpoint. Used in tests.
func WithBaseURL(u string) TwilioOption {
	return func(t *Twilio) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) TwilioOption {
	return func(t *Twilio) { t.httpClient = c }
}

// NewTwilio builds a Twilio notifier from the SMS configuration block.
func NewTwilio(cfg config.SMSConfig, opts ...TwilioOption) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("sms: twilio requires account_sid and auth_token")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("sms: twilio requires from_number")
	}
	t := &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    twilioDefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Send posts one message to the Twilio Messages endpoint.
func (t *Twilio) Send(ctx context.Context, to, body string) error {
	form := url.Values{
		"To":   {to},
		"From": {t.from},
		"Body": {body},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	// Twilio error responses carry a JSON body with a message and code.
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("sms: twilio rejected message (status %d, code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("sms: twilio rejected message: status %d", resp.StatusCode)
}
