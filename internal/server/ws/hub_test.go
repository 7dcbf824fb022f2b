package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/djinn-protocol/cerberus/internal/domain"
	"github.com/djinn-protocol/cerberus/internal/events"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// dialHub connects a WebSocket client to the given test server.
func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubStreamsEvents(t *testing.T) {
	bus := events.NewBus(discard())
	t.Cleanup(bus.Close)

	h := NewHub(bus, discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		h.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The hello frame arrives before any oracle events.
	_, hello, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(hello), `"hello"`)

	bus.Publish(domain.Event{Type: domain.EventError, Err: "boom"})

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, string(domain.EventError), env.Type)
	require.Equal(t, "boom", env.Payload.Err)

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestHandleWSAfterShutdown(t *testing.T) {
	bus := events.NewBus(discard())
	t.Cleanup(bus.Close)

	h := NewHub(bus, discard())
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		h.Run(ctx)
	}()
	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	// A client connecting after the hub stopped must get its connection
	// closed by the server instead of hanging the handler on register.
	conn := dialHub(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		require.False(t, netErr.Timeout(), "server left the connection open")
	}
}
