package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain text", "  list files \n", "list files", false},
		{"json object", `{"content":"hello"}`, "hello", false},
		{"json with type", `{"type":"message","content":"hi"}`, "hi", false},
		{"unsupported type", `{"type":"ping","content":"hi"}`, "", true},
		{"blank content", `{"content":"  "}`, "", true},
		{"broken json", `{"content":`, "", true},
		{"empty", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if msg.Role != models.RoleUser || msg.Content != tt.want {
				t.Errorf("msg = %+v", msg)
			}
		})
	}
}

func TestStreamSink_ReadUntilEOF(t *testing.T) {
	in := strings.NewReader("first\n\n{\"content\":\"second\"}\n{\"content\":\n")
	var out bytes.Buffer
	sink := NewStreamSink(in, &out)
	ctx := context.Background()

	var got []string
	for {
		msg, err := sink.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, msg.Content)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("messages = %q", got)
	}

	var frame models.Frame
	if err := json.Unmarshal(out.Bytes(), &frame); err != nil {
		t.Fatalf("expected one error frame, got %q: %v", out.String(), err)
	}
	if frame.Type != models.FrameError {
		t.Errorf("frame type = %s, want error", frame.Type)
	}
}

func TestStreamSink_WriteJSONLines(t *testing.T) {
	var out bytes.Buffer
	sink := NewStreamSink(strings.NewReader(""), &out)

	frames := []models.Frame{
		{Type: models.FrameThinking, SessionID: "s1", Payload: map[string]int{"iteration": 0}},
		{Type: models.FrameMessage, SessionID: "s1", Payload: map[string]string{"content": "done"}},
	}
	for _, f := range frames {
		if _, err := sink.Write(context.Background(), f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var got models.Frame
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != models.FrameMessage || got.SessionID != "s1" {
		t.Errorf("frame = %+v", got)
	}
}

func TestStreamSink_ReadHonorsContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	sink := NewStreamSink(pr, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sink.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestWebSocketSink_RoundTrip(t *testing.T) {
	received := make(chan string, 4)
	served := make(chan error, 1)

	handler := NewHandler(func(ctx context.Context, sink *WebSocketSink, r *http.Request) error {
		for {
			msg, err := sink.Read(ctx)
			if errors.Is(err, io.EOF) {
				served <- nil
				return nil
			}
			if err != nil {
				served <- err
				return err
			}
			received <- msg.Content
			if _, err := sink.Write(ctx, models.Frame{
				Type:    models.FrameMessage,
				Payload: map[string]string{"content": "echo: " + msg.Content},
			}); err != nil {
				return err
			}
		}
	}, nil)
	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"hi"}`)); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame struct {
		Type    models.FrameType  `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != models.FrameMessage || frame.Payload["content"] != "echo: hi" {
		t.Errorf("frame = %+v", frame)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if frame.Type != models.FrameError {
		t.Errorf("frame type = %s, want error", frame.Type)
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve ended with %v, want clean EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe close")
	}
	if got := <-received; got != "hi" {
		t.Errorf("received %q", got)
	}
}

func TestWebSocketSink_WriteAfterClose(t *testing.T) {
	ready := make(chan *WebSocketSink, 1)
	release := make(chan struct{})
	server := httptest.NewServer(NewHandler(func(ctx context.Context, sink *WebSocketSink, r *http.Request) error {
		ready <- sink
		<-release
		return nil
	}, nil))
	defer server.Close()
	defer close(release)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sink := <-ready
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := sink.Write(context.Background(), models.Frame{Type: models.FrameThinking}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocketSink_WriteFailsAfterConnectionDrops(t *testing.T) {
	ready := make(chan *WebSocketSink, 1)
	release := make(chan struct{})
	server := httptest.NewServer(NewHandler(func(ctx context.Context, sink *WebSocketSink, r *http.Request) error {
		ready <- sink
		<-release
		return nil
	}, nil))
	defer server.Close()
	defer close(release)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sink := <-ready
	if err := sink.conn.UnderlyingConn().Close(); err != nil {
		t.Fatalf("close underlying conn: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		for i := 0; i < 4*wsSendBuffer; i++ {
			if _, err := sink.Write(context.Background(), models.Frame{Type: models.FrameThinking}); err != nil {
				result <- err
				return
			}
		}
		result <- nil
	}()

	select {
	case err := <-result:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("Write = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Write blocked after the write pump stopped")
	}
}
