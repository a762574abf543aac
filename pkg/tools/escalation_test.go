package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func escalationArgs() json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"reason":         "complex estate question",
		"client_name":    "Miguel Ortega",
		"client_phone":   "+15550188",
		"client_email":   "miguel@example.com",
		"preferred_day":  "Tuesday",
		"preferred_time": "afternoon",
		"contact_method": "phone",
	})
	return raw
}

func TestEscalateWithoutDialConfigurationStillNotifies(t *testing.T) {
	mailer := &fakeMailer{}
	dialer := &fakeDialer{configured: false}
	tool := NewEscalateToHuman(testLogger(), mailer, dialer, "escalations@example.com")

	ack, err := tool.Invoke(context.Background(), escalationArgs())
	require.NoError(t, err)

	assert.Contains(t, ack, "follow up")
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "escalations@example.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "complex estate question")
	dialer.AssertNotCalled(t, "Dial", mock.Anything)
}

func TestEscalatePlacesCallWhenConfigured(t *testing.T) {
	mailer := &fakeMailer{}
	dialer := &fakeDialer{configured: true}
	dialer.On("Dial", context.Background()).Return(nil)
	tool := NewEscalateToHuman(testLogger(), mailer, dialer, "escalations@example.com")

	_, err := tool.Invoke(context.Background(), escalationArgs())
	require.NoError(t, err)

	dialer.AssertExpectations(t)
}

func TestEscalateDialFailureIsLoggedOnly(t *testing.T) {
	mailer := &fakeMailer{}
	dialer := &fakeDialer{configured: true}
	dialer.On("Dial", context.Background()).Return(assert.AnError)
	tool := NewEscalateToHuman(testLogger(), mailer, dialer, "escalations@example.com")

	ack, err := tool.Invoke(context.Background(), escalationArgs())
	require.NoError(t, err)
	assert.Contains(t, ack, "follow up")
	assert.Len(t, mailer.sent, 1)
}

func TestEscalateNilDialerIsAllowed(t *testing.T) {
	tool := NewEscalateToHuman(testLogger(), &fakeMailer{}, nil, "escalations@example.com")

	ack, err := tool.Invoke(context.Background(), escalationArgs())
	require.NoError(t, err)
	assert.Contains(t, ack, "follow up")
}

func TestEscalateValidatesContactMethod(t *testing.T) {
	mailer := &fakeMailer{}
	tool := NewEscalateToHuman(testLogger(), mailer, nil, "escalations@example.com")

	raw, _ := json.Marshal(map[string]string{
		"reason":         "anything",
		"client_name":    "Miguel Ortega",
		"contact_method": "carrier pigeon",
	})
	_, err := tool.Invoke(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact_method")
	assert.Empty(t, mailer.sent)
}
