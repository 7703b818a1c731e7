// internal/api/events.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event 推送给前端的项目事件
type Event struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// eventClient 单个 WebSocket 订阅端
type eventClient struct {
	conn      *websocket.Conn
	projectID string
	send      chan []byte
	closed    int32
}

func (client *eventClient) close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

func (client *eventClient) isClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// EventHub 按项目分发实时事件：生成完成、剧情状态刷新、规划更新
type EventHub struct {
	logger     *zap.Logger
	mu         sync.RWMutex
	clients    map[string]map[*eventClient]bool
	register   chan *eventClient
	unregister chan *eventClient
	events     chan Event
}

// NewEventHub 创建事件中心并启动分发循环
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &EventHub{
		logger:     logger,
		clients:    make(map[string]map[*eventClient]bool),
		register:   make(chan *eventClient, 64),
		unregister: make(chan *eventClient, 64),
		events:     make(chan Event, 256),
	}
	go hub.run()
	return hub
}

func (h *EventHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.projectID] == nil {
				h.clients[client.projectID] = make(map[*eventClient]bool)
			}
			h.clients[client.projectID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if peers, ok := h.clients[client.projectID]; ok {
				if peers[client] {
					delete(peers, client)
					close(client.send)
				}
				if len(peers) == 0 {
					delete(h.clients, client.projectID)
				}
			}
			h.mu.Unlock()
			client.close()

		case event := <-h.events:
			raw, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("事件序列化失败", zap.Error(err))
				continue
			}
			h.mu.RLock()
			for client := range h.clients[event.ProjectID] {
				select {
				case client.send <- raw:
				default:
					// 队列满的客户端丢弃本条，不阻塞分发
					h.logger.Debug("事件队列已满，丢弃消息", zap.String("project", event.ProjectID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish 向项目的所有订阅端广播事件
func (h *EventHub) Publish(eventType, projectID string, payload interface{}) {
	select {
	case h.events <- Event{
		Type:      eventType,
		ProjectID: projectID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}:
	default:
		h.logger.Warn("事件总线已满，丢弃事件", zap.String("type", eventType))
	}
}

// Subscribers 当前项目的订阅端数量，诊断用
func (h *EventHub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

// HandleWebSocket 升级连接并订阅项目事件
func (h *EventHub) HandleWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少项目ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}

	client := &eventClient{
		conn:      conn,
		projectID: projectID,
		send:      make(chan []byte, 64),
	}
	h.register <- client

	go h.writeLoop(client)
	go h.readLoop(client)
}

func (h *EventHub) writeLoop(client *eventClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				h.unregister <- client
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister <- client
				return
			}
		}
	}
}

func (h *EventHub) readLoop(client *eventClient) {
	defer func() {
		if !client.isClosed() {
			h.unregister <- client
		}
	}()

	client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
