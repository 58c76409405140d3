package api

import (
	"encoding/json"
	"sync"
	"time"

	"cookmode/internal/model"
	"cookmode/pkg/logger"
	"cookmode/service/cookmode"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 16
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
)

// Hub 把状态变化推送给所有 websocket 客户端。
// SetStatus 只做非阻塞通知，快照在广播协程中生成
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]bool
	snapshot func() model.CookModeStatus
	notify   chan struct{}
	done     chan struct{}
	once     sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub 创建推送中心，需要通过 NewServer 启动
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// SetStatus 实现 cookmode.StatusSink
func (h *Hub) SetStatus(kind cookmode.StatusKind, text string) {
	h.Notify()
}

// Notify 请求一次广播，多次请求会合并
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) run(snapshot func() model.CookModeStatus) {
	h.snapshot = snapshot
	for {
		select {
		case <-h.done:
			return
		case <-h.notify:
			data, err := json.Marshal(h.snapshot())
			if err != nil {
				logger.Error("序列化状态失败: %v", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case <-c.done:
		case c.send <- data:
		default:
			logger.Warn("客户端发送缓冲已满，丢弃状态推送")
		}
	}
}

// serve 注册连接并先发送一次当前状态
func (h *Hub) serve(conn *websocket.Conn, initial model.CookModeStatus) {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	if data, err := json.Marshal(initial); err == nil {
		c.send <- data
	}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		conn.Close()
		return
	default:
	}
	h.clients[c] = true
	h.mu.Unlock()
	logger.Debug("websocket 客户端已连接 (%d)", h.ClientCount())

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
	logger.Debug("websocket 客户端已断开 (%d)", h.ClientCount())
}

// Close 断开所有客户端并停止广播
func (h *Hub) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		close(h.done)
		for c := range h.clients {
			c.stop()
		}
		h.mu.Unlock()
	})
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// readPump 丢弃客户端消息，只用于发现断开
func (c *client) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket 写入失败: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
