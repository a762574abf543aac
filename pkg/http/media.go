package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/session"
)

// MediaUpgrader configures the carrier media WebSocket connection
var MediaUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The carrier connects from its own infrastructure.
		return true
	},
}

// MediaStreamHandler accepts the carrier's media WebSocket and hands each
// connection to the orchestrator as one call session.
type MediaStreamHandler struct {
	logger       *logrus.Logger
	orchestrator *session.Orchestrator
}

// NewMediaStreamHandler creates the media stream endpoint.
func NewMediaStreamHandler(logger *logrus.Logger, orchestrator *session.Orchestrator) *MediaStreamHandler {
	return &MediaStreamHandler{
		logger:       logger,
		orchestrator: orchestrator,
	}
}

// ServeHTTP upgrades the connection and runs the call session to
// completion. Each connection is one independent call.
func (h *MediaStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := MediaUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Media WebSocket upgrade failed")
		return
	}

	transport := newTwilioTransport(conn)

	// The carrier's call SID only arrives in the stream's start frame; the
	// orchestrator starts under a generated identifier and adopts the
	// carrier's once the frame is read.
	if err := h.orchestrator.HandleCall(context.Background(), "", transport); err != nil {
		h.logger.WithError(err).Warn("Call session ended with error")
	}
}

// twilioMediaMessage is the wire shape of carrier media stream frames.
type twilioMediaMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid,omitempty"`
	Start     *struct {
		StreamSID string `json:"streamSid"`
		CallSID   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
}

// twilioTransport adapts a carrier media WebSocket to the orchestrator's
// MediaTransport. The connection is exclusively owned by one call session.
type twilioTransport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newTwilioTransport(conn *websocket.Conn) *twilioTransport {
	return &twilioTransport{conn: conn}
}

// ReadFrame implements session.MediaTransport.
func (t *twilioTransport) ReadFrame() (*session.MediaFrame, error) {
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		var msg twilioMediaMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "start":
			frame := &session.MediaFrame{Kind: session.FrameStart, StreamSID: msg.StreamSID}
			if msg.Start != nil {
				frame.StreamSID = msg.Start.StreamSID
				frame.CallSID = msg.Start.CallSID
			}
			return frame, nil

		case "media":
			if msg.Media == nil {
				continue
			}
			return &session.MediaFrame{
				Kind:      session.FrameAudio,
				StreamSID: msg.StreamSID,
				Payload:   msg.Media.Payload,
			}, nil

		case "stop":
			return &session.MediaFrame{Kind: session.FrameStop}, nil

		default:
			// connected, mark, dtmf: not part of the audio path.
		}
	}
}

// WriteAudio implements session.MediaTransport.
func (t *twilioTransport) WriteAudio(streamSID, payload string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(map[string]interface{}{
		"event":     "media",
		"streamSid": streamSID,
		"media": map[string]string{
			"payload": payload,
		},
	})
}

// Close implements session.MediaTransport.
func (t *twilioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
	})
	return err
}
