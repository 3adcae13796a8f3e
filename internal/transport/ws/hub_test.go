package ws_test

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

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/overlay"
	"car2x-dashboard/internal/transport/ws"
)

func newHubServer(t *testing.T, hub *ws.Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSnapshotOnConnect(t *testing.T) {
	hub := ws.NewHub(func() any {
		return map[string]any{"type": "initial_data", "counts": domain.Counts{Vehicles: 2}}
	})
	srv := newHubServer(t, hub)

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var doc struct {
		Type   string        `json:"type"`
		Counts domain.Counts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "initial_data", doc.Type)
	assert.Equal(t, 2, doc.Counts.Vehicles)
}

func TestPublishBroadcastsToClients(t *testing.T) {
	hub := ws.NewHub(nil)
	srv := newHubServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(overlay.Event{
		Type:     overlay.EventMarkerCreated,
		Kind:     domain.KindVehicle,
		ID:       "V001",
		Category: overlay.CategoryVehicleNormal,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev overlay.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, overlay.EventMarkerCreated, ev.Type)
	assert.Equal(t, "V001", ev.ID)
}

func TestDisconnectedClientIsRemoved(t *testing.T) {
	hub := ws.NewHub(nil)
	srv := newHubServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}
