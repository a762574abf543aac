package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Session is one bidirectional event stream to the reasoning engine. The
// event channel exists from construction, so a consumer registered before
// Connect never misses an early event. The sequence ends when the engine
// closes the connection or Close is called; Events is then closed.
type Session interface {
	// Connect performs the engine handshake. Must be called after the
	// Events consumer is running.
	Connect(ctx context.Context) error

	// Events returns the engine's ordered event sequence. At most one
	// consumer may read from it.
	Events() <-chan Event

	// SendAudio forwards one chunk of caller audio (base64 payload).
	SendAudio(payload string) error

	// SendToolOutput returns a tool acknowledgment to the engine and asks
	// it to continue the response.
	SendToolOutput(callID, output string) error

	// Close tears the session down and ends the event sequence.
	Close() error
}

// SessionFactory creates one engine session per call.
type SessionFactory func(callSID string) Session

const realtimeURL = "wss://api.openai.com/v1/realtime"

// ToolDefinition describes one tool exposed to the engine.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// SessionConfig holds the per-process engine settings shared by all calls.
type SessionConfig struct {
	APIKey       string
	Model        string
	Voice        string
	Instructions string
	Tools        []ToolDefinition
	URL          string // defaults to the OpenAI realtime endpoint
}

// RealtimeSession is a Session backed by the OpenAI Realtime API over
// WebSocket. Audio passes through as base64 μ-law in both directions.
type RealtimeSession struct {
	logger  *logrus.Logger
	cfg     SessionConfig
	callSID string

	conn        *websocket.Conn
	writeMu     sync.Mutex
	events      chan Event
	done        chan struct{}
	readStarted bool
	closeOnce   sync.Once
}

// NewRealtimeSession creates a session for one call. The event channel is
// buffered so events arriving between handshake and the consumer's first
// read are retained.
func NewRealtimeSession(logger *logrus.Logger, cfg SessionConfig, callSID string) *RealtimeSession {
	return &RealtimeSession{
		logger:  logger,
		cfg:     cfg,
		callSID: callSID,
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
	}
}

// Events implements Session.
func (s *RealtimeSession) Events() <-chan Event {
	return s.events
}

// Connect implements Session.
func (s *RealtimeSession) Connect(ctx context.Context) error {
	endpoint := s.cfg.URL
	if endpoint == "" {
		endpoint = realtimeURL
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint+"?model="+s.cfg.Model, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("engine handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("engine handshake failed: %w", err)
	}
	s.conn = conn

	if err := s.sendSessionUpdate(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to configure engine session: %w", err)
	}

	s.readStarted = true
	go s.readLoop()

	s.logger.WithFields(logrus.Fields{
		"call_sid": s.callSID,
		"model":    s.cfg.Model,
	}).Info("Reasoning engine session connected")
	return nil
}

func (s *RealtimeSession) sendSessionUpdate() error {
	tools := make([]map[string]interface{}, 0, len(s.cfg.Tools))
	for _, t := range s.cfg.Tools {
		tools = append(tools, map[string]interface{}{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		})
	}

	return s.writeJSON(map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"modalities":          []string{"text", "audio"},
			"voice":               s.cfg.Voice,
			"instructions":        s.cfg.Instructions,
			"input_audio_format":  "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"input_audio_transcription": map[string]interface{}{
				"model": "whisper-1",
			},
			"turn_detection": map[string]interface{}{
				"type": "server_vad",
			},
			"tools": tools,
		},
	})
}

// serverEvent is the wire shape of events read from the engine. Only the
// fields the orchestrator classifies are decoded; everything else stays
// inside the engine.
type serverEvent struct {
	Type       string            `json:"type"`
	Item       *ConversationItem `json:"item,omitempty"`
	Delta      string            `json:"delta,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	CallID     string            `json:"call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Arguments  json.RawMessage   `json:"arguments,omitempty"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *RealtimeSession) readLoop() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).WithField("call_sid", s.callSID).Warn("Engine stream closed unexpectedly")
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.WithError(err).WithField("call_sid", s.callSID).Warn("Dropping unparseable engine event")
			continue
		}

		switch ev.Type {
		case "conversation.item.created":
			if ev.Item != nil {
				s.emit(Event{Type: EventHistoryItemAdded, Item: ev.Item})
			}

		case "conversation.item.input_audio_transcription.completed":
			// The caller's item is created before its audio is transcribed;
			// surface the finished transcript as its own history item.
			s.emit(Event{Type: EventHistoryItemAdded, Item: &ConversationItem{
				Role:       "user",
				Type:       "message",
				Transcript: ev.Transcript,
			}})

		case "response.audio_transcript.done", "response.output_audio_transcript.done":
			s.emit(Event{Type: EventHistoryItemAdded, Item: &ConversationItem{
				Role:       "assistant",
				Type:       "message",
				Transcript: ev.Transcript,
			}})

		case "response.audio.delta", "response.output_audio.delta":
			s.emit(Event{Type: EventAudioDelta, Audio: ev.Delta})

		case "response.function_call_arguments.done":
			// Arguments arrive as a JSON-encoded string; unwrap to the
			// object the tool handlers decode.
			args := ev.Arguments
			var encoded string
			if json.Unmarshal(args, &encoded) == nil {
				args = json.RawMessage(encoded)
			}
			s.emit(Event{Type: EventToolCall, ToolCall: &ToolCall{
				CallID:    ev.CallID,
				Name:      ev.Name,
				Arguments: args,
			}})

		case "agent_handoff":
			s.emit(Event{Type: EventHandoff})

		case "error":
			if ev.Error != nil {
				s.logger.WithFields(logrus.Fields{
					"call_sid":   s.callSID,
					"error_type": ev.Error.Type,
				}).Error(ev.Error.Message)
			}

		default:
			// Remaining event types are the engine's internal lifecycle.
		}
	}
}

// emit delivers one event in sequence order, blocking the read loop when
// the consumer lags. No event is ever dropped; Close releases a send still
// pending at teardown.
func (s *RealtimeSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// SendAudio implements Session.
func (s *RealtimeSession) SendAudio(payload string) error {
	return s.writeJSON(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// SendToolOutput implements Session.
func (s *RealtimeSession) SendToolOutput(callID, output string) error {
	err := s.writeJSON(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
	if err != nil {
		return err
	}
	return s.writeJSON(map[string]interface{}{"type": "response.create"})
}

// Close implements Session.
func (s *RealtimeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			err = s.conn.Close()
		}
		// The read loop owns closing the event channel once it is running.
		// Before then, a dialed-but-unconfigured connection included, the
		// sequence must be ended here or a consumer waits forever.
		if !s.readStarted {
			close(s.events)
		}
	})
	return err
}

func (s *RealtimeSession) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("engine session is not connected")
	}
	return s.conn.WriteJSON(v)
}
