package results

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownSink is returned by Open for a name with no registered factory.
var ErrUnknownSink = errors.New("unknown results sink")

// Paths configures the file-backed sinks.
type Paths struct {
	CSV    string
	JSONL  string
	SQLite string
}

// Factory builds a sink from the configured paths.
type Factory func(p Paths) (Sink, error)

// Sinks maps a sink name to its factory (last registration wins).
var Sinks = map[string]Factory{
	"memory": func(Paths) (Sink, error) { return NewMemorySink(), nil },
	"csv":    func(p Paths) (Sink, error) { return NewCSVSink(p.CSV) },
	"jsonl":  func(p Paths) (Sink, error) { return NewJSONLSink(p.JSONL) },
	"sqlite": func(p Paths) (Sink, error) { return NewSQLiteStore(p.SQLite) },
}

func Register(name string, f Factory) { Sinks[name] = f }

// Names lists the registered sink names, sorted.
func Names() []string {
	names := make([]string, 0, len(Sinks))
	for n := range Sinks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open builds every named sink and fans out to all of them. Sinks already
// opened are closed again if a later one fails.
func Open(names []string, p Paths) (Multi, error) {
	var m Multi
	seen := map[string]bool{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		f, ok := Sinks[name]
		if !ok {
			m.Close()
			return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownSink, name, strings.Join(Names(), ", "))
		}
		s, err := f(p)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("open %s sink: %w", name, err)
		}
		m = append(m, s)
	}
	return m, nil
}

// Memory returns the first memory sink in m, if any.
func (m Multi) Memory() (*MemorySink, bool) {
	for _, s := range m {
		if ms, ok := s.(*MemorySink); ok {
			return ms, true
		}
	}
	return nil, false
}

// Store returns the first SQLite store in m, if any.
func (m Multi) Store() (*SQLiteStore, bool) {
	for _, s := range m {
		if st, ok := s.(*SQLiteStore); ok {
			return st, true
		}
	}
	return nil, false
}
