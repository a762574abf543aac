package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexvoice-server/pkg/session"
)

// dialTransport upgrades an in-process WebSocket and hands back both the
// server-side transport and the client connection playing the carrier.
func dialTransport(t *testing.T) (*twilioTransport, *websocket.Conn) {
	t.Helper()

	transportCh := make(chan *twilioTransport, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := MediaUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		transportCh <- newTwilioTransport(conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case transport := <-transportCh:
		t.Cleanup(func() { transport.Close() })
		return transport, client
	case <-time.After(2 * time.Second):
		t.Fatal("transport was not established")
		return nil, nil
	}
}

func TestTransportMapsCarrierFrames(t *testing.T) {
	transport, client := dialTransport(t)

	frames := []string{
		`{"event":"connected","protocol":"Call","version":"1.0.0"}`,
		`{"event":"start","streamSid":"MZ123","start":{"streamSid":"MZ123","callSid":"CA123"}}`,
		`{"event":"media","streamSid":"MZ123","media":{"payload":"AAAA"}}`,
		`{"event":"mark","streamSid":"MZ123"}`,
		`{"event":"stop","streamSid":"MZ123"}`,
	}
	for _, frame := range frames {
		require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(frame)))
	}

	// connected and mark are skipped; start, media, stop come through.
	frame, err := transport.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, session.FrameStart, frame.Kind)
	assert.Equal(t, "MZ123", frame.StreamSID)
	assert.Equal(t, "CA123", frame.CallSID)

	frame, err = transport.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, session.FrameAudio, frame.Kind)
	assert.Equal(t, "AAAA", frame.Payload)

	frame, err = transport.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, session.FrameStop, frame.Kind)
}

func TestTransportReadErrorAfterClientClose(t *testing.T) {
	transport, client := dialTransport(t)

	require.NoError(t, client.Close())

	_, err := transport.ReadFrame()
	assert.Error(t, err)
}

func TestTransportWriteAudioFrameShape(t *testing.T) {
	transport, client := dialTransport(t)

	require.NoError(t, transport.WriteAudio("MZ777", "ZZZZ"))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "media", msg.Event)
	assert.Equal(t, "MZ777", msg.StreamSID)
	assert.Equal(t, "ZZZZ", msg.Media.Payload)
}
