package ingest

import (
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/tinypmf/tinypmf/pkg/storage/memory"
)

func TestEventsHub_BroadcastRoundTrip(t *testing.T) {
	hub := NewEventsHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	handler := NewHandler(memory.New())
	srv := httptest.NewServer(handler.HandleWebSocket(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(map[string]interface{}{
		"type":  "growth_update",
		"total": 110.0,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(message, &got))
	require.Equal(t, "growth_update", got["type"])
	require.Equal(t, 110.0, got["total"])
}

func TestEventsHub_BroadcastRejectsRawNaN(t *testing.T) {
	hub := NewEventsHub()

	// encoding/json cannot represent NaN; payloads must map undefined
	// values to null before reaching the hub.
	err := hub.Broadcast(map[string]interface{}{"rate": math.NaN()})
	require.Error(t, err)
}
