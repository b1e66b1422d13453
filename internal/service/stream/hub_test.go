package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/internal/domain/models"
	"LabPulse/pkg/logger"
	"LabPulse/pkg/util"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(logger.Nop(), WithBufferSize(8))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := util.ParseInt64(r.URL.Query().Get("user_id"))
		hub.ServeHTTP(w, r, uid)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub, url := startHub(t)

	mine := dial(t, url+"?user_id=1")
	other := dial(t, url+"?user_id=2")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(models.ReadingEvent{
		EventID: "ev-1",
		Type:    models.EventReading,
		UserID:  1,
		Reading: &models.Reading{ID: "r-1", Name: "LDL", Value: 131},
	})

	_ = mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := mine.ReadMessage()
	require.NoError(t, err)

	var ev models.ReadingEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "ev-1", ev.EventID)
	assert.Equal(t, "LDL", ev.Reading.Name)

	_ = other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "user 2 must not receive user 1 events")
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(logger.Nop(), WithBufferSize(1))
	hub.Broadcast(models.ReadingEvent{UserID: 1})
	hub.Broadcast(models.ReadingEvent{UserID: 1})
	assert.Equal(t, int64(1), hub.Dropped())
}

func TestHubClientDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?user_id=3")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
