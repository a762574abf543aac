package http

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// MediaStreamPath is the WebSocket path the carrier is told to connect to.
const MediaStreamPath = "/media"

// IntakeHandler answers the carrier's incoming-call webhook with TwiML: a
// spoken greeting followed by an instruction to open a media stream back
// to this host. Stateless.
type IntakeHandler struct {
	logger   *logrus.Logger
	greeting string
}

// NewIntakeHandler creates the call intake endpoint.
func NewIntakeHandler(logger *logrus.Logger, greeting string) *IntakeHandler {
	return &IntakeHandler{
		logger:   logger,
		greeting: greeting,
	}
}

// ServeHTTP handles the carrier's call notification.
func (h *IntakeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"from":     r.FormValue("From"),
		"call_sid": r.FormValue("CallSid"),
	}).Info("Incoming call")

	var greeting bytes.Buffer
	xml.EscapeText(&greeting, []byte(h.greeting))

	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say>%s</Say>
    <Connect>
        <Stream url="wss://%s%s" />
    </Connect>
</Response>`, greeting.String(), r.Host, MediaStreamPath)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(twiml))
}
