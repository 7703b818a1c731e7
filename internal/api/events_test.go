// internal/api/events_test.go
package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewEventHub(nil)
	assert.Equal(t, 0, hub.Subscribers("p1"))
	// 无订阅端时广播直接丢弃，不阻塞
	hub.Publish("generation", "p1", gin.H{"ok": true})
}

func TestWebSocketReceivesProjectEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewEventHub(nil)

	router := gin.New()
	router.GET("/ws/projects/:project_id", hub.HandleWebSocket)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http://", "ws://", 1) + "/ws/projects/p1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// 等待注册完成
	require.Eventually(t, func() bool {
		return hub.Subscribers("p1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("story-state", "p1", gin.H{"synopsis": "新概要"})
	// 其他项目的事件不会串台
	hub.Publish("story-state", "p2", gin.H{"synopsis": "别人的"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, "story-state", event.Type)
	assert.Equal(t, "p1", event.ProjectID)
	assert.Positive(t, event.Timestamp)

	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "新概要", payload["synopsis"])
}
