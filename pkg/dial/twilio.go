package dial

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/version"
)

// Dialer places outbound calls to connect a human to the caller. Placement
// is best-effort; an unconfigured dialer reports itself as such and callers
// skip dialing without treating it as an error.
type Dialer interface {
	// Configured reports whether credentials, source number, destination
	// number, and the call-instruction reference are all present.
	Configured() bool

	// Dial places one outbound call to the configured escalation number.
	Dial(ctx context.Context) error
}

const twilioAPIBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioDialer places calls through the Twilio REST API.
type TwilioDialer struct {
	logger     *logrus.Logger
	accountSID string
	authToken  string
	from       string
	to         string
	twimlURL   string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioDialer creates a dialer for the escalation dial-out path. The
// twimlURL is the call-instruction document Twilio fetches for the outbound
// leg; without it the dialer is unconfigured.
func NewTwilioDialer(logger *logrus.Logger, accountSID, authToken, from, to, twimlURL string) *TwilioDialer {
	return &TwilioDialer{
		logger:     logger,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		twimlURL:   twimlURL,
		baseURL:    twilioAPIBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL overrides the Twilio API base URL, used by tests.
func (d *TwilioDialer) SetBaseURL(baseURL string) {
	d.baseURL = baseURL
}

// Configured implements Dialer.
func (d *TwilioDialer) Configured() bool {
	return d.accountSID != "" && d.authToken != "" && d.from != "" && d.to != "" && d.twimlURL != ""
}

// Dial implements Dialer.
func (d *TwilioDialer) Dial(ctx context.Context) error {
	if !d.Configured() {
		return fmt.Errorf("dialer is not configured")
	}

	callURL := fmt.Sprintf("%s/Accounts/%s/Calls.json", d.baseURL, d.accountSID)

	form := url.Values{}
	form.Set("To", d.to)
	form.Set("From", d.from)
	form.Set("Url", d.twimlURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create call request: %w", err)
	}
	req.SetBasicAuth(d.accountSID, d.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to place call: %w", err)
	}
	defer resp.Body.Close()

	// Status is a string on success ("queued") but the numeric HTTP status
	// on error bodies, so it is kept raw.
	var result struct {
		SID     string          `json:"sid"`
		Status  json.RawMessage `json:"status"`
		Message string          `json:"message"`
		Code    int             `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode call response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("carrier error %d: %s", result.Code, result.Message)
	}

	d.logger.WithFields(logrus.Fields{
		"call_sid": result.SID,
		"to":       d.to,
		"status":   strings.Trim(string(result.Status), `"`),
	}).Info("Escalation call placed")
	return nil
}
