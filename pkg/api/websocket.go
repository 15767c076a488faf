package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/farklesolver/pkg/solver"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`    // "score", "query", "decision", "subscribe", "unsubscribe", "ping"
	ID      string          `json:"id"`      // Request ID for correlating responses
	Payload json.RawMessage `json:"payload"` // Type-specific payload
}

// WSResponse is a generic WebSocket response.
type WSResponse struct {
	Type    string      `json:"type"`              // "result", "progress", "error", "pong", "subscribed", "unsubscribed"
	ID      string      `json:"id,omitempty"`      // Request ID
	Payload interface{} `json:"payload,omitempty"` // Response data
	Error   string      `json:"error,omitempty"`   // Error message if any
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	sendChan chan WSResponse

	mu          sync.Mutex
	unsubscribe func() // Set while the client follows iteration progress
}

// WebSocket handles WebSocket connections for interactive play.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket-upgrade-failed")
		return
	}
	client := &WSClient{conn: conn, handlers: h, sendChan: make(chan WSResponse, 256)}
	go client.writePump()
	client.readPump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for msg := range c.sendChan {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		// No progress callback may run once unsubscribed, so closing is safe.
		c.stopProgress()
		close(c.sendChan)
		c.conn.Close()
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "score":
		var req ScoreRequest
		if c.decode(msg, &req) {
			c.reply(msg.ID)(ScoreRoll(req))
		}
	case "query":
		var req QueryRequest
		if c.decode(msg, &req) {
			c.reply(msg.ID)(c.handlers.query(req))
		}
	case "decision":
		var req DecisionRequest
		if c.decode(msg, &req) {
			c.reply(msg.ID)(c.handlers.decide(req))
		}
	case "subscribe":
		c.handleSubscribe(msg)
	case "unsubscribe":
		c.stopProgress()
		c.sendChan <- WSResponse{Type: "unsubscribed", ID: msg.ID}
	case "ping":
		c.sendChan <- WSResponse{Type: "pong", ID: msg.ID}
	default:
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type"}
	}
}

func (c *WSClient) decode(msg WSMessage, v interface{}) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload"}
		return false
	}
	return true
}

// reply returns a function sending either the result or the error of a
// request.
func (c *WSClient) reply(id string) func(interface{}, error) {
	return func(payload interface{}, err error) {
		if err != nil {
			c.sendChan <- WSResponse{Type: "error", ID: id, Error: err.Error()}
			return
		}
		c.sendChan <- WSResponse{Type: "result", ID: id, Payload: payload}
	}
}

// handleSubscribe forwards the progress of background iterations to the
// client until it unsubscribes or disconnects. Progress messages are dropped
// when the client falls behind.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	engine := c.handlers.engine
	if engine == nil {
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: errNotReady.msg}
		return
	}

	c.mu.Lock()
	if c.unsubscribe == nil {
		c.unsubscribe = engine.Subscribe(func(p solver.Progress) {
			select {
			case c.sendChan <- WSResponse{Type: "progress", ID: msg.ID, Payload: ProgressEvent{
				Generation: engine.Current().N() + 1,
				Pass:       p.Pass,
				Done:       p.Done,
				Total:      p.Total,
				Percent:    p.Percent(),
			}}:
			default:
			}
		})
	}
	c.mu.Unlock()

	c.sendChan <- WSResponse{Type: "subscribed", ID: msg.ID, Payload: HealthResponse{
		Status:     "ok",
		Version:    c.handlers.version,
		Ready:      true,
		Generation: engine.Current().N(),
	}}
}

func (c *WSClient) stopProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}
