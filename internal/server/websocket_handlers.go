package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message types sent on /ws/ocr.
const (
	MessageRecord = "record"
	MessageDone   = "done"
	MessageError  = "error"
)

// WebSocketMessage is one server-to-client frame. A client sends an image as
// a binary frame and gets one record message per transcription, then done.
type WebSocketMessage struct {
	Type      string                        `json:"type"`
	RequestID string                        `json:"request_id"`
	Image     int                           `json:"image"`
	Record    *pipeline.TranscriptionRecord `json:"record,omitempty"`
	Records   int                           `json:"records,omitempty"`
	Skipped   []pipeline.Skip               `json:"skipped,omitempty"`
	Error     string                        `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	metrics *Metrics
}

func (c *wsConn) send(msg WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// ocrWebSocketHandler streams per-region records for each uploaded image.
func (s *Server) ocrWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	s.metrics.websocketConnections.Inc()
	defer s.metrics.websocketConnections.Dec()
	conn.SetReadLimit(s.maxUploadBytes())

	id := RequestID(r.Context())
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "request_id", id)

	// the upgrade detaches from the request lifetime
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.handleWebSocketConnection(ctx, &wsConn{conn: conn, metrics: s.metrics}, id)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, c *wsConn, id string) {
	conn := c.conn
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	for n := 0; ; n++ {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err, "request_id", id)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		s.metrics.websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType != websocket.BinaryMessage {
			if c.send(WebSocketMessage{Type: MessageError, RequestID: id, Image: n, Error: "send images as binary frames"}) != nil {
				return
			}
			continue
		}
		if err := s.streamImage(ctx, c, id, n, data); err != nil {
			return
		}
	}
}

// streamImage transcribes one frame and sends its records. Only write
// failures are returned.
func (s *Server) streamImage(ctx context.Context, c *wsConn, id string, n int, data []byte) error {
	if s.proc == nil {
		return c.send(WebSocketMessage{Type: MessageError, RequestID: id, Image: n, Error: "OCR pipeline not initialized"})
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return c.send(WebSocketMessage{Type: MessageError, RequestID: id, Image: n, Error: "invalid image format"})
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.processDecoded(ctx, "ws", img)
	if err != nil {
		return c.send(WebSocketMessage{Type: MessageError, RequestID: id, Image: n, Error: err.Error()})
	}
	for i := range res.Records {
		if err := c.send(WebSocketMessage{Type: MessageRecord, RequestID: id, Image: n, Record: &res.Records[i]}); err != nil {
			return err
		}
	}
	return c.send(WebSocketMessage{Type: MessageDone, RequestID: id, Image: n, Records: len(res.Records), Skipped: res.Skipped})
}
