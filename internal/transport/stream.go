package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// maxLineBytes bounds one inbound line.
const maxLineBytes = 1 << 20

// StreamSink writes frames as JSON lines to w and reads one user message
// per line from r. Blank lines are skipped and malformed lines are
// reported as error frames.
type StreamSink struct {
	r io.Reader
	w io.Writer

	mu    sync.Mutex
	start sync.Once
	lines chan lineResult
}

type lineResult struct {
	line []byte
	err  error
}

// NewStreamSink creates a sink over r and w.
func NewStreamSink(r io.Reader, w io.Writer) *StreamSink {
	return &StreamSink{r: r, w: w, lines: make(chan lineResult)}
}

// Write encodes frame as one JSON line.
func (s *StreamSink) Write(ctx context.Context, frame models.Frame) (int, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(data)
}

// Read returns the next user message. It returns io.EOF when the reader
// is exhausted and ctx.Err() if ctx ends first.
func (s *StreamSink) Read(ctx context.Context) (models.Message, error) {
	s.start.Do(func() { go s.scan() })

	for {
		select {
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		case res, ok := <-s.lines:
			if !ok {
				return models.Message{}, io.EOF
			}
			if res.err != nil {
				return models.Message{}, res.err
			}
			if len(bytes.TrimSpace(res.line)) == 0 {
				continue
			}
			msg, err := DecodeMessage(res.line)
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

// scan feeds lines to Read. The goroutine exits at EOF; a Read abandoned
// by ctx leaves it blocked until the next line or EOF.
func (s *StreamSink) scan() {
	defer close(s.lines)
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		s.lines <- lineResult{line: line}
	}
	if err := scanner.Err(); err != nil {
		s.lines <- lineResult{err: fmt.Errorf("read input: %w", err)}
	}
}

func errorFrame(err error) models.Frame {
	return models.Frame{
		Type:    models.FrameError,
		Payload: map[string]string{"stage": "transport", "message": err.Error()},
	}
}
