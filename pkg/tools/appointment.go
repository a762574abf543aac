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

// ScheduleAppointment records a caller's appointment request and notifies
// the firm.
type ScheduleAppointment struct {
	logger    *logrus.Logger
	mailer    notify.Mailer
	firmEmail string
}

// NewScheduleAppointment creates the schedule_appointment tool.
func NewScheduleAppointment(logger *logrus.Logger, mailer notify.Mailer, firmEmail string) *ScheduleAppointment {
	return &ScheduleAppointment{
		logger:    logger,
		mailer:    mailer,
		firmEmail: firmEmail,
	}
}

// Definition implements Tool.
func (t *ScheduleAppointment) Definition() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "schedule_appointment",
		Description: "Record an appointment request for a caller. Use when the caller wants to meet with the firm on a specific date and time.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"date":        map[string]interface{}{"type": "string", "description": "Requested date, e.g. 2026-09-14"},
				"time":        map[string]interface{}{"type": "string", "description": "Requested time, e.g. 10:30 AM"},
				"client_name": map[string]interface{}{"type": "string", "description": "Caller's full name"},
			},
			"required": []string{"date", "time", "client_name"},
		},
	}
}

type scheduleAppointmentArgs struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	ClientName string `json:"client_name"`
}

// Invoke implements Tool.
func (t *ScheduleAppointment) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args scheduleAppointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := requireString("date", args.Date); err != nil {
		return "", err
	}
	if err := requireString("time", args.Time); err != nil {
		return "", err
	}
	if err := requireString("client_name", args.ClientName); err != nil {
		return "", err
	}

	subject := fmt.Sprintf("Appointment request: %s", args.ClientName)
	body := fmt.Sprintf(
		"A caller requested an appointment.\n\nName: %s\nDate: %s\nTime: %s\n",
		args.ClientName, args.Date, args.Time,
	)
	if err := t.mailer.Send(ctx, t.firmEmail, subject, body); err != nil {
		t.logger.WithError(err).WithField("client", args.ClientName).Error("Failed to send appointment notification")
		metrics.IncNotificationFailure("appointment_email")
	}

	return fmt.Sprintf(
		"I've recorded your appointment request for %s at %s, %s. Our team will be in touch to confirm.",
		args.Date, args.Time, args.ClientName,
	), nil
}
