package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(mailer *fakeMailer) *Registry {
	registry := NewRegistry(testLogger())
	registry.Register(NewScheduleAppointment(testLogger(), mailer, "firm@example.com"))
	registry.Register(NewBookConsultation(testLogger(), mailer, nil, testLinks, "firm@example.com"))
	registry.Register(NewProcessPayment(testLogger(), mailer, "firm@example.com"))
	registry.Register(NewEscalateToHuman(testLogger(), mailer, nil, "firm@example.com"))
	return registry
}

func TestRegistryDefinitionsInRegistrationOrder(t *testing.T) {
	registry := newTestRegistry(&fakeMailer{})

	defs := registry.Definitions()
	require.Len(t, defs, 4)
	assert.Equal(t, "schedule_appointment", defs[0].Name)
	assert.Equal(t, "book_consultation", defs[1].Name)
	assert.Equal(t, "process_payment", defs[2].Name)
	assert.Equal(t, "escalate_to_human", defs[3].Name)
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	registry := newTestRegistry(&fakeMailer{})

	_, err := registry.Dispatch(context.Background(), "order_pizza", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_pizza")
}

func TestRegistryDispatchRunsTool(t *testing.T) {
	mailer := &fakeMailer{}
	registry := newTestRegistry(mailer)

	raw, _ := json.Marshal(map[string]string{
		"date":        "2026-10-02",
		"time":        "2:00 PM",
		"client_name": "Alex Chen",
	})
	ack, err := registry.Dispatch(context.Background(), "schedule_appointment", raw)
	require.NoError(t, err)
	assert.NotEmpty(t, ack)
	assert.Len(t, mailer.sent, 1)
}
