package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/agent"
	"lexvoice-server/pkg/metrics"
	"lexvoice-server/pkg/notify"
)

// ProcessPayment records a payment reported over the phone and notifies
// billing.
type ProcessPayment struct {
	logger    *logrus.Logger
	mailer    notify.Mailer
	firmEmail string
}

// NewProcessPayment creates the process_payment tool.
func NewProcessPayment(logger *logrus.Logger, mailer notify.Mailer, firmEmail string) *ProcessPayment {
	return &ProcessPayment{
		logger:    logger,
		mailer:    mailer,
		firmEmail: firmEmail,
	}
}

// Definition implements Tool.
func (t *ProcessPayment) Definition() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "process_payment",
		Description: "Record a payment the caller wants to make, in US dollars.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"amount":         map[string]interface{}{"type": "number", "description": "Payment amount in USD"},
				"client_name":    map[string]interface{}{"type": "string", "description": "Caller's full name"},
				"payment_method": map[string]interface{}{"type": "string", "description": "How the caller wants to pay"},
			},
			"required": []string{"amount", "client_name", "payment_method"},
		},
	}
}

type processPaymentArgs struct {
	Amount        float64 `json:"amount"`
	ClientName    string  `json:"client_name"`
	PaymentMethod string  `json:"payment_method"`
}

// Invoke implements Tool.
func (t *ProcessPayment) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args processPaymentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.Amount <= 0 {
		return "", fmt.Errorf("amount must be a positive number")
	}
	if err := requireString("client_name", args.ClientName); err != nil {
		return "", err
	}
	if err := requireString("payment_method", args.PaymentMethod); err != nil {
		return "", err
	}

	subject := fmt.Sprintf("Payment recorded: %s", args.ClientName)
	body := fmt.Sprintf(
		"A payment was recorded during a call.\n\nName: %s\nAmount: $%.2f\nMethod: %s\n",
		args.ClientName, args.Amount, args.PaymentMethod,
	)
	if err := t.mailer.Send(ctx, t.firmEmail, subject, body); err != nil {
		t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to send billing notification")
		metrics.IncNotificationFailure("billing_email")
	}

	return fmt.Sprintf(
		"Thank you, %s. I've recorded your payment of $%.2f via %s. A receipt will follow by email.",
		args.ClientName, args.Amount, args.PaymentMethod,
	), nil
}
