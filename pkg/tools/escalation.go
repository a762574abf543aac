package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/agent"
	"lexvoice-server/pkg/dial"
	"lexvoice-server/pkg/metrics"
	"lexvoice-server/pkg/notify"
)

// EscalateToHuman alerts the firm that a caller needs a person, and when
// dialing is configured places an outbound call to connect one.
type EscalateToHuman struct {
	logger          *logrus.Logger
	mailer          notify.Mailer
	dialer          dial.Dialer
	escalationEmail string
}

// NewEscalateToHuman creates the escalate_to_human tool. The escalation
// address should already carry the firm-address fallback; dialer may be nil.
func NewEscalateToHuman(logger *logrus.Logger, mailer notify.Mailer, dialer dial.Dialer, escalationEmail string) *EscalateToHuman {
	return &EscalateToHuman{
		logger:          logger,
		mailer:          mailer,
		dialer:          dialer,
		escalationEmail: escalationEmail,
	}
}

// Definition implements Tool.
func (t *EscalateToHuman) Definition() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "escalate_to_human",
		Description: "Escalate the call to a human team member. Use when the caller asks for a person or the request is beyond the assistant's scope.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reason":         map[string]interface{}{"type": "string", "description": "Why the caller needs a human"},
				"client_name":    map[string]interface{}{"type": "string", "description": "Caller's full name"},
				"client_phone":   map[string]interface{}{"type": "string", "description": "Caller's phone number"},
				"client_email":   map[string]interface{}{"type": "string", "description": "Caller's email address"},
				"preferred_day":  map[string]interface{}{"type": "string", "description": "Preferred day for follow-up"},
				"preferred_time": map[string]interface{}{"type": "string", "description": "Preferred time for follow-up"},
				"contact_method": map[string]interface{}{
					"type": "string",
					"enum": []string{"phone", "email"},
				},
			},
			"required": []string{"reason", "client_name", "contact_method"},
		},
	}
}

type escalateArgs struct {
	Reason        string `json:"reason"`
	ClientName    string `json:"client_name"`
	ClientPhone   string `json:"client_phone"`
	ClientEmail   string `json:"client_email"`
	PreferredDay  string `json:"preferred_day"`
	PreferredTime string `json:"preferred_time"`
	ContactMethod string `json:"contact_method"`
}

// Invoke implements Tool.
func (t *EscalateToHuman) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args escalateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := requireString("reason", args.Reason); err != nil {
		return "", err
	}
	if err := requireString("client_name", args.ClientName); err != nil {
		return "", err
	}
	if args.ContactMethod != "phone" && args.ContactMethod != "email" {
		return "", fmt.Errorf("contact_method must be phone or email")
	}

	subject := fmt.Sprintf("Escalation: %s", args.ClientName)
	body := fmt.Sprintf(
		"A caller asked for a human.\n\nReason: %s\nName: %s\nPhone: %s\nEmail: %s\nPreferred contact: %s on %s at %s\n",
		args.Reason, args.ClientName, args.ClientPhone, args.ClientEmail,
		args.ContactMethod, args.PreferredDay, args.PreferredTime,
	)
	if err := t.mailer.Send(ctx, t.escalationEmail, subject, body); err != nil {
		t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to send escalation notification")
		metrics.IncNotificationFailure("escalation_email")
	}

	if t.dialer != nil && t.dialer.Configured() {
		if err := t.dialer.Dial(ctx); err != nil {
			t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to place escalation call")
			metrics.IncNotificationFailure("escalation_dial")
		}
	}

	return "I've flagged this for our team. A team member will follow up with you as soon as possible.", nil
}
