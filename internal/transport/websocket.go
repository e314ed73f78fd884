package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/agentcore/pkg/models"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsPingInterval    = 15 * time.Second
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
	wsSendBuffer      = 64
)

// WebSocketSink streams frames as text messages over a WebSocket and reads
// user messages from the peer. A normal close by the peer reads as io.EOF.
type WebSocketSink struct {
	conn   *websocket.Conn
	logger *slog.Logger

	send       chan []byte
	inbox      chan []byte
	done       chan struct{}
	writerDone chan struct{}

	closeOnce sync.Once
	readErr   error
}

// NewWebSocketSink starts the read and write pumps for conn.
func NewWebSocketSink(conn *websocket.Conn, logger *slog.Logger) *WebSocketSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &WebSocketSink{
		conn:   conn,
		logger: logger.With("component", "transport"),
		send:   make(chan []byte, wsSendBuffer),
		inbox:  make(chan []byte),
		done:   make(chan struct{}),

		writerDone: make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Write queues frame for delivery. It returns ErrClosed once the sink is
// closed or the write pump has stopped on a connection failure.
func (s *WebSocketSink) Write(ctx context.Context, frame models.Frame) (int, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}
	select {
	case <-s.done:
		return 0, ErrClosed
	case <-s.writerDone:
		return 0, ErrClosed
	default:
	}
	select {
	case s.send <- data:
		return len(data), nil
	case <-s.done:
		return 0, ErrClosed
	case <-s.writerDone:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Read returns the next user message. Malformed messages are answered
// with an error frame and skipped.
func (s *WebSocketSink) Read(ctx context.Context) (models.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		case data, ok := <-s.inbox:
			if !ok {
				return models.Message{}, s.readErr
			}
			msg, err := DecodeMessage(data)
			if err != nil {
				if _, werr := s.Write(ctx, errorFrame(err)); werr != nil {
					return models.Message{}, werr
				}
				continue
			}
			return msg, nil
		}
	}
}

// Close flushes queued frames, sends a close message and releases the
// connection.
func (s *WebSocketSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		select {
		case <-s.writerDone:
		case <-time.After(wsWriteWait):
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait)) //nolint:errcheck
		err = s.conn.Close()
	})
	return err
}

func (s *WebSocketSink) readLoop() {
	defer close(s.inbox)

	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = readError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case s.inbox <- data:
		case <-s.done:
			s.readErr = io.EOF
			return
		}
	}
}

func (s *WebSocketSink) writeLoop() {
	defer close(s.writerDone)
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.drain()
			return
		case data := <-s.send:
			if err := s.writeMessage(data); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				s.logger.Debug("websocket ping failed", "error", err)
				_ = s.conn.Close()
				return
			}
		}
	}
}

// drain writes frames queued before Close.
func (s *WebSocketSink) drain() {
	for {
		select {
		case data := <-s.send:
			if err := s.writeMessage(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *WebSocketSink) writeMessage(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return fmt.Errorf("websocket read: %w", err)
}

// ServeFunc handles one accepted WebSocket connection.
type ServeFunc func(ctx context.Context, sink *WebSocketSink, r *http.Request) error

// Handler upgrades HTTP requests and hands each connection to Serve.
type Handler struct {
	upgrader websocket.Upgrader
	serve    ServeFunc
	logger   *slog.Logger
}

// NewHandler creates a WebSocket endpoint.
func NewHandler(serve ServeFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		serve:  serve,
		logger: logger.With("component", "transport"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	sink := NewWebSocketSink(conn, h.logger)
	defer sink.Close()

	if err := h.serve(r.Context(), sink, r); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error("websocket session ended with error", "remote", r.RemoteAddr, "error", err)
		_, _ = sink.Write(context.Background(), errorFrame(err))
	}
}
