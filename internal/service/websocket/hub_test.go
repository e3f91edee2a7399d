package websocket

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

	"meterease/internal/logger"
	"meterease/internal/model"
)

func newTestHub(t *testing.T) *HubService {
	t.Helper()
	l, err := logger.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return NewHubService(l)
}

func TestHubService_PublishReachesViewer(t *testing.T) {
	hub := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	delta := 20.0
	event := model.ReadingEvent{ImageSetID: "abc", Current: "100", ConsumptionStatus: "computed", Consumption: &delta}
	require.NoError(t, hub.Publish(event))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var got model.ReadingEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got.ImageSetID)
	require.NotNil(t, got.Consumption)
	assert.Equal(t, 20.0, *got.Consumption)
}

func TestHubService_BroadcastNeverBlocks(t *testing.T) {
	hub := newTestHub(t)

	for i := 0; i < broadcastBuffer; i++ {
		assert.True(t, hub.Broadcast([]byte("x")))
	}
	assert.False(t, hub.Broadcast([]byte("overflow")))
	assert.Error(t, hub.Publish(model.ReadingEvent{ImageSetID: "late"}))
}
