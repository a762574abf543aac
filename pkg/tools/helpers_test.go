package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// sentEmail records one Send call on the fake mailer.
type sentEmail struct {
	To      string
	Subject string
	Body    string
}

// fakeMailer records sent email and can be told to fail.
type fakeMailer struct {
	sent    []sentEmail
	failAll bool
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.failAll {
		return fmt.Errorf("smtp relay unavailable")
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

// fakeLinker returns a fixed payment link and counts invocations.
type fakeLinker struct {
	url   string
	fail  bool
	calls int
}

func (l *fakeLinker) CreateLink(ctx context.Context, metadata map[string]string) (string, error) {
	l.calls++
	if l.fail {
		return "", fmt.Errorf("payment service rejected the request")
	}
	return l.url, nil
}

// fakeDialer satisfies dial.Dialer for escalation tests.
type fakeDialer struct {
	mock.Mock
	configured bool
}

func (d *fakeDialer) Configured() bool {
	return d.configured
}

func (d *fakeDialer) Dial(ctx context.Context) error {
	args := d.Called(ctx)
	return args.Error(0)
}
