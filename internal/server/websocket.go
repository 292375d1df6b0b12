package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livetemplate/walkthrough"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"
)

// Envelope actions sent to the browser.
const (
	actionDocument = "document"
	actionError    = "error"
	actionReload   = "reload"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// MessageEnvelope is one WebSocket message in either direction. Browsers
// send {blockID, action, data: {value}}; the server answers with a
// "document", "error" or "reload" action.
type MessageEnvelope struct {
	BlockID  string         `json:"blockID,omitempty"`
	Action   string         `json:"action"`
	Data     map[string]any `json:"data,omitempty"`
	FilePath string         `json:"filePath,omitempty"`
}

// interactionData is the data payload of an interaction message.
type interactionData struct {
	Value any `mapstructure:"value"`
}

// wsConn serializes writes to one connection.
type wsConn struct {
	conn    *websocket.Conn
	pageID  string
	limiter *rate.Limiter
	mu      sync.Mutex
}

func (c *wsConn) send(env MessageEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// serveWebSocket upgrades /ws?page=ID and applies interactions sent over it.
// Every accepted interaction is answered with the re-rendered document.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	route, ok := s.routeByID(r.URL.Query().Get("page"))
	if !ok {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}

	// The upgrade response can still carry a fresh session cookie.
	header := http.Header{}
	sessionID := s.sessionID(headerWriter{header}, r)

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	c := &wsConn{
		conn:    conn,
		pageID:  route.Page.ID,
		limiter: rate.NewLimiter(rate.Limit(s.config.GetRateLimitRPS()), s.config.GetRateLimitBurst()),
	}
	s.registerConnection(c)
	defer func() {
		s.unregisterConnection(c)
		conn.Close()
	}()

	s.logger.Debug("client connected", "page", route.Page.ID, "remote", conn.RemoteAddr().String())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("unexpected close", "error", err)
			}
			break
		}
		s.handleMessage(r, c, sessionID, message)
	}

	s.logger.Debug("client disconnected", "page", route.Page.ID, "remote", conn.RemoteAddr().String())
}

func (s *Server) handleMessage(r *http.Request, c *wsConn, sessionID string, message []byte) {
	var env MessageEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.sendError(c, "", fmt.Errorf("malformed message: %w", err))
		return
	}

	if !c.limiter.Allow() {
		s.sendError(c, env.BlockID, errors.New("rate limit exceeded"))
		return
	}

	// Pages are re-resolved per message so a reload picks up edits.
	route, ok := s.routeByID(c.pageID)
	if !ok {
		s.sendError(c, env.BlockID, fmt.Errorf("page %s no longer exists", c.pageID))
		return
	}

	var data interactionData
	if err := mapstructure.Decode(env.Data, &data); err != nil {
		s.sendError(c, env.BlockID, fmt.Errorf("malformed data: %w", err))
		return
	}

	ix := walkthrough.Interaction{BlockID: env.BlockID, Action: env.Action, Value: data.Value}
	state, err := s.apply(r.Context(), sessionID, route.Page, ix)
	if err != nil {
		s.sendError(c, env.BlockID, err)
		return
	}

	doc, err := s.renderer.Render(r.Context(), route.Page, state)
	if err != nil {
		s.sendError(c, env.BlockID, err)
		return
	}
	body, err := s.html.Fragment(doc)
	if err != nil {
		s.sendError(c, env.BlockID, err)
		return
	}

	if err := c.send(MessageEnvelope{
		BlockID: env.BlockID,
		Action:  actionDocument,
		Data:    map[string]any{"html": string(body)},
	}); err != nil {
		s.logger.Warn("failed to send document", "page", c.pageID, "error", err)
	}
}

func (s *Server) sendError(c *wsConn, blockID string, err error) {
	if sendErr := c.send(MessageEnvelope{
		BlockID: blockID,
		Action:  actionError,
		Data:    map[string]any{"message": err.Error()},
	}); sendErr != nil {
		s.logger.Warn("failed to send error", "page", c.pageID, "error", sendErr)
	}
}

func (s *Server) registerConnection(c *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connections[c] = true
}

func (s *Server) unregisterConnection(c *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.connections, c)
}

// BroadcastReload tells every connected browser to reload.
func (s *Server) BroadcastReload(filePath string) {
	s.connMu.RLock()
	conns := make([]*wsConn, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.connMu.RUnlock()

	for _, c := range conns {
		if err := c.send(MessageEnvelope{Action: actionReload, FilePath: filePath}); err != nil {
			s.logger.Debug("failed to send reload", "error", err)
		}
	}
	s.logger.Debug("broadcast reload", "file", filePath, "clients", len(conns))
}

// headerWriter lets sessionID set a cookie on the upgrade response headers.
type headerWriter struct {
	header http.Header
}

func (h headerWriter) Header() http.Header         { return h.header }
func (h headerWriter) Write(b []byte) (int, error) { return len(b), nil }
func (h headerWriter) WriteHeader(int)             {}
