package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// engineStub accepts the session WebSocket and records every client
// message, replaying scripted server events after the handshake.
type engineStub struct {
	t        *testing.T
	upgrader websocket.Upgrader
	script   []string

	mu       sync.Mutex
	received []map[string]interface{}
	authz    string
}

func (s *engineStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.authz = r.Header.Get("Authorization")
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	require.NoError(s.t, err)

	// First client message is always the session configuration.
	_, raw, err := conn.ReadMessage()
	require.NoError(s.t, err)
	var msg map[string]interface{}
	require.NoError(s.t, json.Unmarshal(raw, &msg))
	s.mu.Lock()
	s.received = append(s.received, msg)
	s.mu.Unlock()

	for _, ev := range s.script {
		require.NoError(s.t, conn.WriteMessage(websocket.TextMessage, []byte(ev)))
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]interface{}
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()
	}
}

func (s *engineStub) messages() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.received...)
}

func startSession(t *testing.T, script []string) (*RealtimeSession, *engineStub) {
	t.Helper()

	stub := &engineStub{t: t, script: script}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	cfg := SessionConfig{
		APIKey:       "sk-test",
		Model:        "gpt-realtime",
		Voice:        "alloy",
		Instructions: "be helpful",
		Tools: []ToolDefinition{
			{Name: "schedule_appointment", Description: "books", Parameters: map[string]interface{}{"type": "object"}},
		},
		URL: "ws" + strings.TrimPrefix(server.URL, "http"),
	}
	sess := NewRealtimeSession(testLogger(), cfg, "CA1")
	require.NoError(t, sess.Connect(context.Background()))
	t.Cleanup(func() { sess.Close() })
	return sess, stub
}

func collectEvents(t *testing.T, sess *RealtimeSession, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				t.Fatalf("event stream ended after %d of %d events", len(events), n)
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestConnectSendsSessionConfiguration(t *testing.T) {
	_, stub := startSession(t, nil)

	var msgs []map[string]interface{}
	require.Eventually(t, func() bool {
		msgs = stub.messages()
		return len(msgs) > 0
	}, 2*time.Second, 10*time.Millisecond, "session configuration message was not received")
	update := msgs[0]
	assert.Equal(t, "session.update", update["type"])

	session := update["session"].(map[string]interface{})
	assert.Equal(t, "g711_ulaw", session["input_audio_format"])
	assert.Equal(t, "g711_ulaw", session["output_audio_format"])
	assert.Equal(t, "alloy", session["voice"])
	assert.Equal(t, "be helpful", session["instructions"])

	tools := session["tools"].([]interface{})
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]interface{})
	assert.Equal(t, "function", tool["type"])
	assert.Equal(t, "schedule_appointment", tool["name"])

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Equal(t, "Bearer sk-test", stub.authz)
}

func TestServerEventsAreNormalized(t *testing.T) {
	sess, _ := startSession(t, []string{
		`{"type":"session.created"}`,
		`{"type":"conversation.item.created","item":{"id":"item_1","type":"message","role":"assistant","content":[{"type":"text","text":"Hello"}]}}`,
		`{"type":"conversation.item.input_audio_transcription.completed","transcript":"I need help"}`,
		`{"type":"response.audio.delta","delta":"AAAA"}`,
		`{"type":"response.function_call_arguments.done","call_id":"call_1","name":"schedule_appointment","arguments":"{\"date\":\"2026-10-02\"}"}`,
		`{"type":"agent_handoff"}`,
	})

	events := collectEvents(t, sess, 5)

	assert.Equal(t, EventHistoryItemAdded, events[0].Type)
	assert.Equal(t, "Hello", events[0].Item.Text())
	assert.Equal(t, "assistant", events[0].Item.RoleLabel())

	assert.Equal(t, EventHistoryItemAdded, events[1].Type)
	assert.Equal(t, "I need help", events[1].Item.Text())
	assert.Equal(t, "user", events[1].Item.RoleLabel())

	assert.Equal(t, EventAudioDelta, events[2].Type)
	assert.Equal(t, "AAAA", events[2].Audio)

	assert.Equal(t, EventToolCall, events[3].Type)
	assert.Equal(t, "call_1", events[3].ToolCall.CallID)
	assert.Equal(t, "schedule_appointment", events[3].ToolCall.Name)
	assert.JSONEq(t, `{"date":"2026-10-02"}`, string(events[3].ToolCall.Arguments))

	assert.Equal(t, EventHandoff, events[4].Type)
}

func TestSendAudioAndToolOutputWireShape(t *testing.T) {
	sess, stub := startSession(t, nil)

	require.NoError(t, sess.SendAudio("AAAA"))
	require.NoError(t, sess.SendToolOutput("call_1", "done"))

	// session.update + audio append + item create + response.create
	require.Eventually(t, func() bool {
		return len(stub.messages()) >= 4
	}, 2*time.Second, 10*time.Millisecond)

	msgs := stub.messages()
	assert.Equal(t, "input_audio_buffer.append", msgs[1]["type"])
	assert.Equal(t, "AAAA", msgs[1]["audio"])

	assert.Equal(t, "conversation.item.create", msgs[2]["type"])
	item := msgs[2]["item"].(map[string]interface{})
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "call_1", item["call_id"])
	assert.Equal(t, "done", item["output"])

	assert.Equal(t, "response.create", msgs[3]["type"])
}

func TestCloseEndsEventStream(t *testing.T) {
	sess, _ := startSession(t, nil)
	require.NoError(t, sess.Close())

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end after Close")
	}
}

func TestCloseBeforeConnectEndsEventStream(t *testing.T) {
	sess := NewRealtimeSession(testLogger(), SessionConfig{}, "CA2")
	require.NoError(t, sess.Close())

	_, ok := <-sess.Events()
	assert.False(t, ok)
}

func TestCloseBeforeReadLoopEndsEventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		_, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)

	// The handshake dialed but configuring the session failed: the
	// connection is set and the read loop never started.
	sess := NewRealtimeSession(testLogger(), SessionConfig{}, "CA5")
	sess.conn = client

	require.NoError(t, sess.Close())

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not end after Close")
	}
}

func TestEmitDeliversEveryEventInOrder(t *testing.T) {
	sess := NewRealtimeSession(testLogger(), SessionConfig{}, "CA6")

	const total = 300 // past the channel buffer
	go func() {
		for i := 0; i < total; i++ {
			sess.emit(Event{Type: EventAudioDelta, Audio: strconv.Itoa(i)})
		}
		sess.Close()
	}()

	received := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				assert.Equal(t, total, received)
				return
			}
			assert.Equal(t, strconv.Itoa(received), ev.Audio)
			received++
		case <-timeout:
			t.Fatalf("received %d of %d events", received, total)
		}
	}
}

func TestCloseReleasesPendingEmit(t *testing.T) {
	script := make([]string, 300)
	for i := range script {
		script[i] = `{"type":"response.audio.delta","delta":"AAAA"}`
	}
	sess, _ := startSession(t, script)

	// No consumer: the read loop parks in a blocked send once the event
	// buffer fills.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, sess.Close())

	// The parked send is released and the read loop winds down, ending the
	// sequence after the buffered events.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sess.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("pending emit was not released by Close")
		}
	}
}

func TestSendBeforeConnectFails(t *testing.T) {
	sess := NewRealtimeSession(testLogger(), SessionConfig{}, "CA3")
	assert.Error(t, sess.SendAudio("AAAA"))
	assert.Error(t, sess.SendToolOutput("call_1", "done"))
}
