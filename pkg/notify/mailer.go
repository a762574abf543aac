package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/version"
)

// Mailer is the outbound notification channel. Delivery is best-effort;
// callers log failures and continue. A Send with an empty recipient is
// silently skipped.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

const resendEndpoint = "https://api.resend.com/emails"

// ResendMailer sends email through the Resend HTTP API.
type ResendMailer struct {
	logger     *logrus.Logger
	apiKey     string
	from       string
	endpoint   string
	httpClient *http.Client
}

// NewResendMailer creates a mailer using the Resend HTTP API. With an empty
// API key every Send becomes a logged no-op, so an unconfigured deployment
// still answers calls.
func NewResendMailer(logger *logrus.Logger, apiKey, from string) *ResendMailer {
	return &ResendMailer{
		logger:   logger,
		apiKey:   apiKey,
		from:     from,
		endpoint: resendEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetEndpoint overrides the API endpoint, used by tests.
func (m *ResendMailer) SetEndpoint(endpoint string) {
	m.endpoint = endpoint
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Name       string `json:"name"`
}

// Send delivers one email. An empty recipient is skipped without error.
func (m *ResendMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		m.logger.WithField("subject", subject).Debug("No recipient configured, skipping email")
		return nil
	}
	if m.apiKey == "" {
		m.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Warn("Mail API key not configured, skipping email")
		return nil
	}

	payload, err := json.Marshal(resendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr resendError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("mail API error: %s", apiErr.Message)
		}
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	m.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Email sent")
	return nil
}
