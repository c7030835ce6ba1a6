package surface

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Layer, *Hub, *httptest.Server) {
	t.Helper()
	log.SetOutput(io.Discard)

	layer := NewLayer()
	hub := NewHub(layer)
	layer.SetBroadcaster(hub)

	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return layer, hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/markers"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHubSnapshotThenLiveCommands(t *testing.T) {
	layer, hub, srv := startHub(t)

	existing := layer.CreateMarkerAt(34.0, 33.0, DefaultIcon())
	layer.AddMarkerToSurface(existing)

	conn := dialHub(t, srv)

	var snapshot snapshotMessage
	readJSON(t, conn, &snapshot)
	assert.Equal(t, "snapshot", snapshot.Type)
	require.Len(t, snapshot.Markers, 1)
	assert.Equal(t, existing, snapshot.Markers[0].Handle)
	assert.True(t, snapshot.Markers[0].Visible)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	layer.SetMarkerPosition(existing, 34.5, 33.5)

	var cmd Command
	readJSON(t, conn, &cmd)
	assert.Equal(t, CommandMove, cmd.Type)
	assert.Equal(t, existing, cmd.Marker.Handle)
	assert.Equal(t, 34.5, cmd.Marker.Latitude)
	assert.Equal(t, 33.5, cmd.Marker.Longitude)
}

func TestHubSubscriberLeaves(t *testing.T) {
	_, hub, srv := startHub(t)

	conn := dialHub(t, srv)
	var snapshot snapshotMessage
	readJSON(t, conn, &snapshot)
	assert.Empty(t, snapshot.Markers)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubMarkerSnapshotEndpoint(t *testing.T) {
	layer, _, srv := startHub(t)
	h := layer.CreateMarkerAt(35.0, 34.0, DefaultIcon())
	layer.BindLabel(h, "addr: A2")

	resp, err := http.Get(srv.URL + "/markers.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var markers []Marker
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&markers))
	require.Len(t, markers, 1)
	assert.Equal(t, "addr: A2", markers[0].Label)
	assert.False(t, markers[0].Visible)
}

func TestHubRefusesAfterClose(t *testing.T) {
	_, hub, srv := startHub(t)
	hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/markers"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Count())
}
