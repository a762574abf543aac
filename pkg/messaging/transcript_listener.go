package messaging

import (
	"github.com/sirupsen/logrus"
)

// AMQPTranscriptListener forwards recorded transcript lines to the AMQP
// queue. It satisfies the session package's TranscriptListener interface.
type AMQPTranscriptListener struct {
	logger *logrus.Logger
	client *AMQPClient
}

// NewAMQPTranscriptListener creates a listener publishing through client.
func NewAMQPTranscriptListener(logger *logrus.Logger, client *AMQPClient) *AMQPTranscriptListener {
	return &AMQPTranscriptListener{
		logger: logger,
		client: client,
	}
}

// OnTranscriptLine publishes one line, best-effort.
func (l *AMQPTranscriptListener) OnTranscriptLine(callSID, roleLabel, text string) {
	if !l.client.IsConnected() {
		l.logger.WithField("call_sid", callSID).Debug("Cannot publish transcript line: AMQP client not connected")
		return
	}

	if err := l.client.PublishTranscriptLine(callSID, roleLabel, text); err != nil {
		l.logger.WithFields(logrus.Fields{
			"call_sid": callSID,
			"error":    err.Error(),
		}).Error("Failed to publish transcript line to AMQP")
	}
}
