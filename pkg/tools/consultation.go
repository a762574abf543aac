package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/agent"
	"lexvoice-server/pkg/metrics"
	"lexvoice-server/pkg/notify"
	"lexvoice-server/pkg/payment"
)

// Consultation type values accepted by book_consultation.
const (
	ConsultationFreePhone    = "free_phone"
	ConsultationFreeZoom     = "free_zoom"
	ConsultationPaidZoom     = "paid_zoom"
	ConsultationPaidInPerson = "paid_in_person"
)

// SchedulingLinks maps consultation types to their scheduling pages.
type SchedulingLinks struct {
	FreePhone    string
	FreeZoom     string
	PaidZoom     string
	PaidInPerson string
}

// Resolve returns the scheduling link for a consultation type. Unrecognized
// types resolve to the free phone link rather than failing the booking.
func (l SchedulingLinks) Resolve(consultationType string) string {
	switch consultationType {
	case ConsultationFreeZoom:
		return l.FreeZoom
	case ConsultationPaidZoom:
		return l.PaidZoom
	case ConsultationPaidInPerson:
		return l.PaidInPerson
	default:
		return l.FreePhone
	}
}

func isPaidConsultation(consultationType string) bool {
	return consultationType == ConsultationPaidZoom || consultationType == ConsultationPaidInPerson
}

// BookConsultation books a consultation, issuing a payment link for paid
// variants and confirming to both the client and the firm.
type BookConsultation struct {
	logger    *logrus.Logger
	mailer    notify.Mailer
	linker    payment.Linker
	links     SchedulingLinks
	firmEmail string
}

// NewBookConsultation creates the book_consultation tool. A nil linker
// means the payment-link service is unconfigured and paid bookings proceed
// without a link.
func NewBookConsultation(logger *logrus.Logger, mailer notify.Mailer, linker payment.Linker, links SchedulingLinks, firmEmail string) *BookConsultation {
	return &BookConsultation{
		logger:    logger,
		mailer:    mailer,
		linker:    linker,
		links:     links,
		firmEmail: firmEmail,
	}
}

// Definition implements Tool.
func (t *BookConsultation) Definition() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "book_consultation",
		Description: "Book a consultation for the caller. Paid consultation types include a payment link in the confirmation email.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"consultation_type": map[string]interface{}{
					"type": "string",
					"enum": []string{ConsultationFreePhone, ConsultationFreeZoom, ConsultationPaidZoom, ConsultationPaidInPerson},
				},
				"date":         map[string]interface{}{"type": "string", "description": "Requested date"},
				"time":         map[string]interface{}{"type": "string", "description": "Requested time"},
				"client_name":  map[string]interface{}{"type": "string", "description": "Caller's full name"},
				"client_phone": map[string]interface{}{"type": "string", "description": "Caller's phone number"},
				"client_email": map[string]interface{}{"type": "string", "description": "Caller's email address"},
			},
			"required": []string{"consultation_type", "date", "time", "client_name", "client_phone", "client_email"},
		},
	}
}

type bookConsultationArgs struct {
	ConsultationType string `json:"consultation_type"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	ClientName       string `json:"client_name"`
	ClientPhone      string `json:"client_phone"`
	ClientEmail      string `json:"client_email"`
}

// Invoke implements Tool.
func (t *BookConsultation) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args bookConsultationArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	for field, value := range map[string]string{
		"consultation_type": args.ConsultationType,
		"date":              args.Date,
		"time":              args.Time,
		"client_name":       args.ClientName,
		"client_phone":      args.ClientPhone,
		"client_email":      args.ClientEmail,
	} {
		if err := requireString(field, value); err != nil {
			return "", err
		}
	}

	schedulingLink := t.links.Resolve(args.ConsultationType)

	paymentLink := ""
	if isPaidConsultation(args.ConsultationType) && t.linker != nil {
		link, err := t.linker.CreateLink(ctx, map[string]string{
			"client_name":       args.ClientName,
			"consultation_type": args.ConsultationType,
			"date":              args.Date,
		})
		if err != nil {
			t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to create payment link")
			metrics.IncNotificationFailure("payment_link")
		} else {
			paymentLink = link
		}
	}

	label := strings.ReplaceAll(args.ConsultationType, "_", " ")

	var clientBody strings.Builder
	fmt.Fprintf(&clientBody, "Hi %s,\n\nYour %s consultation is booked for %s at %s.\n", args.ClientName, label, args.Date, args.Time)
	if schedulingLink != "" {
		fmt.Fprintf(&clientBody, "\nScheduling link: %s\n", schedulingLink)
	}
	if paymentLink != "" {
		fmt.Fprintf(&clientBody, "\nPayment link: %s\n", paymentLink)
	}
	clientBody.WriteString("\nWe look forward to speaking with you.\n")

	if err := t.mailer.Send(ctx, args.ClientEmail, "Your consultation is booked", clientBody.String()); err != nil {
		t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to send client confirmation email")
		metrics.IncNotificationFailure("client_email")
	}

	internalBody := fmt.Sprintf(
		"New consultation booking.\n\nType: %s\nDate: %s\nTime: %s\nName: %s\nPhone: %s\nEmail: %s\nScheduling link: %s\nPayment link: %s\n",
		args.ConsultationType, args.Date, args.Time, args.ClientName, args.ClientPhone, args.ClientEmail, schedulingLink, paymentLink,
	)
	if err := t.mailer.Send(ctx, t.firmEmail, fmt.Sprintf("Consultation booked: %s", args.ClientName), internalBody); err != nil {
		t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to send internal booking notification")
		metrics.IncNotificationFailure("firm_email")
	}

	ack := fmt.Sprintf("You're booked for a %s consultation on %s at %s. A confirmation email is on its way.", label, args.Date, args.Time)
	if paymentLink != "" {
		ack += " It includes a payment link to complete your booking."
	}
	return ack, nil
}
