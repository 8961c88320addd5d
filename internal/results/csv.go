package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
)

var csvHeader = []string{"Player ID", "Result"}

// CSVSink appends one "Player ID,Result" row per completion. The header is
// written when the file is new or empty.
type CSVSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		return nil, fmt.Errorf("csv sink: path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("csv sink: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv sink: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv sink: stat %s: %w", path, err)
	}

	s := &CSVSink{path: path, f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) Record(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRow([]string{strconv.Itoa(r.PlayerID), r.Text})
}

func (s *CSVSink) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("csv sink: write: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csv sink: flush: %w", err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.f.Close()
}

// WriteCSV writes every completed record with the results header.
func WriteCSV(w io.Writer, records []roster.PlayerRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if !rec.Completed() {
			continue
		}
		if err := cw.Write([]string{strconv.Itoa(rec.PlayerID), rec.ResultText()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export replaces path with a CSV of the completed records.
func Export(path string, records []roster.PlayerRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".results-*.csv")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}
