package results

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	mu  sync.Mutex
	c   io.Closer
	buf *bufio.Writer
	enc *json.Encoder
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl sink: path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jsonl sink: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl sink: open %s: %w", path, err)
	}
	return NewJSONLWriter(f), nil
}

// NewJSONLWriter writes to w, closing it on Close if it is an io.Closer.
func NewJSONLWriter(w io.Writer) *JSONLSink {
	buf := bufio.NewWriter(w)
	s := &JSONLSink{buf: buf, enc: json.NewEncoder(buf)}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	return s
}

func (s *JSONLSink) Record(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("jsonl sink: encode: %w", err)
	}
	return s.buf.Flush()
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return err
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// ReadJSONL decodes every result in r.
func ReadJSONL(r io.Reader) ([]Result, error) {
	dec := json.NewDecoder(r)
	var out []Result
	for dec.More() {
		var res Result
		if err := dec.Decode(&res); err != nil {
			return out, fmt.Errorf("jsonl: decode: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}
