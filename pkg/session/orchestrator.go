package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/agent"
	"lexvoice-server/pkg/metrics"
	"lexvoice-server/pkg/notify"
	"lexvoice-server/pkg/tools"
	"lexvoice-server/pkg/transcript"
)

// State is the lifecycle state of one call session.
type State int32

const (
	StateInit State = iota
	StateStreamOpened
	StateEngineConnected
	StateStreaming
	StateClosed
	StateConnectFailed
)

// String returns the state name for logs and metrics labels.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateStreamOpened:
		return "stream_opened"
	case StateEngineConnected:
		return "engine_connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateConnectFailed:
		return "connect_failed"
	default:
		return "unknown"
	}
}

// HandoffMarker is the fixed transcript line recorded when the engine
// signals a transfer to a human, independent of any escalation tool.
const HandoffMarker = "system: conversation transferred to a human agent"

// MediaFrameKind classifies carrier media frames.
type MediaFrameKind int

const (
	// FrameStart announces the media stream and carries its identifiers.
	FrameStart MediaFrameKind = iota
	// FrameAudio carries one chunk of caller audio.
	FrameAudio
	// FrameStop is the carrier's close signal.
	FrameStop
)

// MediaFrame is one message from the carrier media transport.
type MediaFrame struct {
	Kind      MediaFrameKind
	StreamSID string
	CallSID   string
	Payload   string // base64 audio for FrameAudio
}

// MediaTransport is the exclusively owned bidirectional audio channel to
// the carrier. ReadFrame blocks until the next frame; a read error is
// treated the same as FrameStop.
type MediaTransport interface {
	ReadFrame() (*MediaFrame, error)
	WriteAudio(streamSID, payload string) error
	Close() error
}

// TranscriptListener observes transcript lines as they are recorded.
// Notification is best-effort and must not block for long.
type TranscriptListener interface {
	OnTranscriptLine(callSID, roleLabel, text string)
}

// Orchestrator owns the process-wide collaborators shared by all call
// sessions. Per-call mutable state lives in callSession, owned by one
// HandleCall invocation.
type Orchestrator struct {
	logger     *logrus.Logger
	mailer     notify.Mailer
	registry   *tools.Registry
	newSession agent.SessionFactory
	firmEmail  string
	manager    *Manager
	listener   TranscriptListener
}

// NewOrchestrator creates the call session orchestrator.
func NewOrchestrator(logger *logrus.Logger, mailer notify.Mailer, registry *tools.Registry, factory agent.SessionFactory, firmEmail string, manager *Manager) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		mailer:     mailer,
		registry:   registry,
		newSession: factory,
		firmEmail:  firmEmail,
		manager:    manager,
	}
}

// SetTranscriptListener attaches an optional live transcript listener.
func (o *Orchestrator) SetTranscriptListener(listener TranscriptListener) {
	o.listener = listener
}

// HandleCall drives one call from an accepted media transport to its
// terminal state. It returns when the carrier closes the stream or session
// establishment fails; the transport is closed in either case.
func (o *Orchestrator) HandleCall(ctx context.Context, callSID string, transport MediaTransport) error {
	if callSID == "" {
		callSID = uuid.NewString()
	}

	// The carrier's own CallSid travels in the stream's start frame, so the
	// session may begin under a generated identifier and adopt the
	// carrier's when the frame arrives.
	s := &callSession{
		orch:      o,
		logger:    o.logger.WithField("session_id", callSID),
		callSID:   callSID,
		transport: transport,
		acc:       transcript.NewAccumulator(),
		startedAt: time.Now(),
	}
	return s.run(ctx)
}

// callSession is the per-call mutable state, owned by a single HandleCall
// goroutine. The event-processing goroutine is the only writer of the
// accumulator; the accumulator is read only after that goroutine exits.
type callSession struct {
	orch      *Orchestrator
	logger    *logrus.Entry
	callSID   string
	transport MediaTransport
	engine    agent.Session
	acc       *transcript.Accumulator
	startedAt time.Time

	state State

	// streamMu guards the stream identifiers set by the start frame, read
	// concurrently by the event consumer. callSID starts as the generated
	// session identifier and becomes the carrier's CallSid on FrameStart.
	streamMu  sync.RWMutex
	streamSID string
}

// id returns the call identifier: the carrier's CallSid once the start
// frame has arrived, the generated session identifier before that.
func (s *callSession) id() string {
	s.streamMu.RLock()
	defer s.streamMu.RUnlock()
	return s.callSID
}

func (s *callSession) setState(state State) {
	s.state = state
	s.logger.WithField("state", state.String()).Debug("Session state changed")
}

func (s *callSession) run(ctx context.Context) error {
	s.setState(StateStreamOpened)

	if s.orch.manager != nil {
		s.orch.manager.Add(s.callSID)
		defer s.orch.manager.Remove(s.callSID)
	}

	s.engine = s.orch.newSession(s.callSID)

	// The event consumer must be draining before the engine handshake so
	// no history event emitted during connection is lost.
	eventsDone := make(chan struct{})
	go s.consumeEvents(ctx, eventsDone)

	s.setState(StateEngineConnected)
	if err := s.engine.Connect(ctx); err != nil {
		s.setState(StateConnectFailed)
		s.engine.Close()
		<-eventsDone
		s.transport.Close()
		metrics.IncEngineConnectFailure()
		metrics.RecordSessionOutcome(StateConnectFailed.String(), time.Since(s.startedAt).Seconds())
		s.logger.WithError(err).Error("Failed to establish reasoning engine session, dropping call")
		return fmt.Errorf("engine session establishment failed: %w", err)
	}

	s.setState(StateStreaming)
	metrics.SessionStarted()
	defer metrics.SessionStopped()

	s.pumpMedia()

	// Carrier stream is done; end the engine sequence and wait for the
	// consumer so the accumulator is quiescent before the flush.
	s.engine.Close()
	<-eventsDone

	s.flushTranscript()
	s.setState(StateClosed)
	s.transport.Close()
	metrics.RecordSessionOutcome(StateClosed.String(), time.Since(s.startedAt).Seconds())

	s.logger.WithFields(logrus.Fields{
		"duration": time.Since(s.startedAt).Round(time.Second).String(),
		"lines":    s.acc.Len(),
	}).Info("Call session closed")
	return nil
}

// pumpMedia relays carrier frames to the engine until the carrier's close
// signal or a transport error.
func (s *callSession) pumpMedia() {
	for {
		frame, err := s.transport.ReadFrame()
		if err != nil {
			s.logger.WithError(err).Debug("Media transport closed")
			return
		}

		switch frame.Kind {
		case FrameStart:
			s.streamMu.Lock()
			s.streamSID = frame.StreamSID
			if frame.CallSID != "" {
				s.callSID = frame.CallSID
			}
			callSID := s.callSID
			s.streamMu.Unlock()
			s.logger.WithFields(logrus.Fields{
				"stream_sid": frame.StreamSID,
				"call_sid":   callSID,
			}).Info("Media stream started")

		case FrameAudio:
			if err := s.engine.SendAudio(frame.Payload); err != nil {
				s.logger.WithError(err).Warn("Failed to forward caller audio to engine")
			}

		case FrameStop:
			s.logger.Info("Media stream stopped by carrier")
			return
		}
	}
}

// consumeEvents processes the engine's event sequence strictly in emission
// order. An unexpected failure here abandons only this call's session.
func (s *callSession) consumeEvents(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Event consumption failed, abandoning session")
			s.transport.Close()
		}
	}()

	for ev := range s.engine.Events() {
		metrics.IncEngineEvent(string(ev.Type))

		switch ev.Type {
		case agent.EventHistoryItemAdded:
			s.recordItem(ev.Item)

		case agent.EventHandoff:
			s.acc.Add(HandoffMarker)

		case agent.EventToolCall:
			s.dispatchToolCall(ctx, ev.ToolCall)

		case agent.EventAudioDelta:
			s.streamMu.RLock()
			streamSID := s.streamSID
			s.streamMu.RUnlock()
			if streamSID == "" {
				continue
			}
			if err := s.transport.WriteAudio(streamSID, ev.Audio); err != nil {
				s.logger.WithError(err).Debug("Failed to forward engine audio to carrier")
			}
		}
	}
}

// recordItem applies the history classification rule: label from role else
// type, text from fragments else the flat transcript, drop when empty.
func (s *callSession) recordItem(item *agent.ConversationItem) {
	if item == nil {
		return
	}
	text := item.Text()
	if text == "" {
		return
	}
	roleLabel := item.RoleLabel()

	s.acc.Add(fmt.Sprintf("%s: %s", roleLabel, text))
	metrics.IncTranscriptLine()

	if s.orch.listener != nil {
		s.orch.listener.OnTranscriptLine(s.id(), roleLabel, text)
	}
}

func (s *callSession) dispatchToolCall(ctx context.Context, call *agent.ToolCall) {
	if call == nil {
		return
	}

	output, err := s.orch.registry.Dispatch(ctx, call.Name, call.Arguments)
	if err != nil {
		// Validation failure: reported to the engine, never executed.
		s.logger.WithError(err).WithField("tool", call.Name).Warn("Tool call rejected")
		metrics.IncToolInvocation(call.Name, "rejected")
		output = fmt.Sprintf("I wasn't able to complete that request: %s.", err.Error())
	} else {
		metrics.IncToolInvocation(call.Name, "ok")
	}

	if err := s.engine.SendToolOutput(call.CallID, output); err != nil {
		s.logger.WithError(err).WithField("tool", call.Name).Error("Failed to return tool output to engine")
	}
}

// flushTranscript makes exactly one delivery attempt for a non-empty
// transcript. Failure is logged, not retried, and does not keep the
// session from closing. The flush runs on its own context so it still
// fires when the server is shutting down.
func (s *callSession) flushTranscript() {
	if s.acc.IsEmpty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subject := fmt.Sprintf("Call transcript %s", s.id())
	if err := s.orch.mailer.Send(ctx, s.orch.firmEmail, subject, s.acc.Get()); err != nil {
		s.logger.WithError(err).Error("Failed to deliver call transcript")
		metrics.IncTranscriptFlush("failed")
		metrics.IncNotificationFailure("transcript_email")
		return
	}
	metrics.IncTranscriptFlush("sent")
}
