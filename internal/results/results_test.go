package results

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
)

func completedRoster(t *testing.T, ticks ...int) *roster.Roster {
	t.Helper()
	r := roster.NewRosterOfSize(len(ticks) + 1)
	for i, n := range ticks {
		e := shuttle.NewEngine()
		e.Start()
		for j := 0; j < n; j++ {
			e.Tick()
		}
		_, _, err := r.MarkComplete(i+1, e.State())
		require.NoError(t, err)
	}
	return r
}

func sampleResult(id int) Result {
	return Result{
		SessionID:      "01HZXAMPLE",
		PlayerID:       id,
		Name:           "Ana",
		Level:          2,
		Shuttle:        2,
		DistanceMeters: 180,
		SpeedKmh:       9,
		CompletedAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Text:           "Level 2 Shuttle 2 Distance 180.0 m",
	}
}

func TestFromRecord(t *testing.T) {
	r := completedRoster(t, 9)
	rec, err := r.Record(1)
	require.NoError(t, err)

	res := FromRecord("s1", rec)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 2, res.Shuttle)
	assert.Equal(t, "Player 1 - Level 2 Shuttle 2 Distance 180.0 m", res.LogLine())
}

func TestWriteCSV(t *testing.T) {
	r := completedRoster(t, 9, 7)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r.Records()))
	assert.Equal(t,
		"Player ID,Result\n"+
			"1,Level 2 Shuttle 2 Distance 180.0 m\n"+
			"2,Level 1 Shuttle 7 Distance 140.0 m\n",
		buf.String())
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, Export(path, completedRoster(t, 3).Records()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Player ID,Result\n1,Level 1 Shuttle 3 Distance 60.0 m\n", string(data))
}

func TestExport_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "today", "results.csv")

	require.NoError(t, Export(path, completedRoster(t, 3).Records()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Player ID,Result\n1,Level 1 Shuttle 3 Distance 60.0 m\n", string(data))
}

func TestCSVSink_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	ctx := context.Background()

	s, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleResult(1)))
	require.NoError(t, s.Close())

	s, err = NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleResult(4)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Player ID,Result\n"+
			"1,Level 2 Shuttle 2 Distance 180.0 m\n"+
			"4,Level 2 Shuttle 2 Distance 180.0 m\n",
		string(data))
}

func TestJSONLSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	s, err := NewJSONLSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), sampleResult(1)))
	require.NoError(t, s.Record(context.Background(), sampleResult(2)))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadJSONL(f)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sampleResult(1), got[0])
	assert.Equal(t, 2, got[1].PlayerID)
}

func TestMemorySink(t *testing.T) {
	m := NewMemorySink()
	require.NoError(t, m.Record(context.Background(), sampleResult(3)))
	assert.Equal(t, []string{"Player 3 - Level 2 Shuttle 2 Distance 180.0 m"}, m.Lines())

	m.Clear()
	assert.Empty(t, m.Results())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sampleResult(2)))
	require.NoError(t, s.Record(ctx, sampleResult(1)))

	dup := sampleResult(1)
	dup.Level = 9
	require.NoError(t, s.Record(ctx, dup))

	other := sampleResult(1)
	other.SessionID = "01HZOTHER"
	other.CompletedAt = other.CompletedAt.Add(time.Hour)
	require.NoError(t, s.Record(ctx, other))

	got, err := s.ListSession(ctx, "01HZXAMPLE")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].PlayerID)
	assert.Equal(t, 2, got[0].Level)
	assert.Equal(t, "Level 2 Shuttle 2 Distance 180.0 m", got[0].Text)
	assert.True(t, sampleResult(1).CompletedAt.Equal(got[0].CompletedAt))

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"01HZOTHER", "01HZXAMPLE"}, sessions)
}

type failingSink struct{ closed bool }

func (f *failingSink) Record(context.Context, Result) error {
	return errors.New("disk full")
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMulti_OneFailureDoesNotBlockOthers(t *testing.T) {
	mem := NewMemorySink()
	bad := &failingSink{}
	m := Multi{bad, mem}

	err := m.Record(context.Background(), sampleResult(1))
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, mem.Results(), 1)

	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	m, err := Open([]string{"memory", " CSV ", "memory", ""}, Paths{CSV: filepath.Join(dir, "r.csv")})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	assert.Len(t, m, 2)
	_, ok := m.Memory()
	assert.True(t, ok)
	_, ok = m.Store()
	assert.False(t, ok)
}

func TestOpen_UnknownSink(t *testing.T) {
	_, err := Open([]string{"memory", "kafka"}, Paths{})
	assert.ErrorIs(t, err, ErrUnknownSink)
}

func TestOpen_FactoryError(t *testing.T) {
	_, err := Open([]string{"csv"}, Paths{})
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer
	mem := NewMemorySink()
	rec := NewRecorder(Multi{mem, &failingSink{}}, log.New(&buf, "", 0))
	rec.SetSession("abc")

	r := completedRoster(t, 4)
	pr, _ := r.Record(1)

	assert.False(t, rec.Record(pr))
	assert.Equal(t, 1, rec.Failures())
	require.Len(t, mem.Results(), 1)
	assert.Equal(t, "abc", mem.Results()[0].SessionID)
	assert.Contains(t, buf.String(), "disk full")
}
