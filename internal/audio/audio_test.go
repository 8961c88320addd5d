package audio

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (r *recordingRunner) run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name: name, args: args})
	return r.err
}

func (r *recordingRunner) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func tempClip(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestCommandPlayer_AppendsFile(t *testing.T) {
	beep := tempClip(t, "beep.wav")
	var buf bytes.Buffer
	runner := &recordingRunner{}

	p, err := NewCommandPlayer("paplay --volume 65536", map[Clip]string{ClipShuttle: beep}, log.New(&buf, "", 0))
	require.NoError(t, err)
	p.WithRunner(runner.run)

	p.Play(ClipShuttle)
	p.Wait()

	calls := runner.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "paplay", calls[0].name)
	assert.Equal(t, []string{"--volume", "65536", beep}, calls[0].args)
}

func TestCommandPlayer_SubstitutesPlaceholder(t *testing.T) {
	beep := tempClip(t, "beep.mp3")
	runner := &recordingRunner{}

	p, err := NewCommandPlayer("ffplay -i {file} -nodisp -autoexit", map[Clip]string{ClipShuttle: beep}, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	p.WithRunner(runner.run)

	p.Play(ClipShuttle)
	p.Wait()

	calls := runner.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-i", beep, "-nodisp", "-autoexit"}, calls[0].args)
}

func TestCommandPlayer_LevelFallsBackToShuttle(t *testing.T) {
	beep := tempClip(t, "beep.wav")
	p, err := NewCommandPlayer("aplay", map[Clip]string{ClipShuttle: beep}, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)

	assert.Equal(t, beep, p.File(ClipLevel))
	assert.Equal(t, beep, p.File(ClipFinish))
	assert.Equal(t, "", p.File(ClipCountdown))
}

func TestCommandPlayer_MissingFileIsLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	runner := &recordingRunner{}
	p, err := NewCommandPlayer("aplay", map[Clip]string{ClipShuttle: "/nonexistent/beep.wav"}, log.New(&buf, "", 0))
	require.NoError(t, err)
	p.WithRunner(runner.run)

	p.Play(ClipShuttle)
	p.Wait()

	assert.Empty(t, runner.snapshot())
	assert.Contains(t, buf.String(), "cannot play shuttle")
}

func TestCommandPlayer_RunnerErrorIsLogged(t *testing.T) {
	beep := tempClip(t, "beep.wav")
	var buf bytes.Buffer
	runner := &recordingRunner{err: errors.New("exit status 1")}
	p, err := NewCommandPlayer("aplay", map[Clip]string{ClipShuttle: beep}, log.New(&buf, "", 0))
	require.NoError(t, err)
	p.WithRunner(runner.run)

	p.Play(ClipShuttle)
	p.Wait()

	assert.Contains(t, buf.String(), "exit status 1")
}

func TestNewCommandPlayer_EmptyCommand(t *testing.T) {
	_, err := NewCommandPlayer("   ", nil, log.New(&bytes.Buffer{}, "", 0))
	assert.Error(t, err)
}

type countingBeeper struct {
	mu    sync.Mutex
	count int
}

func (b *countingBeeper) Beep() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	return nil
}

func (b *countingBeeper) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func TestBellPlayer_RingsPerClip(t *testing.T) {
	beeper := &countingBeeper{}
	p := NewBellPlayer(beeper, log.New(&bytes.Buffer{}, "", 0))
	p.gap = time.Millisecond

	p.Play(ClipShuttle)
	assert.Eventually(t, func() bool { return beeper.Count() == 1 }, time.Second, time.Millisecond)

	p.Play(ClipLevel)
	assert.Eventually(t, func() bool { return beeper.Count() == 3 }, time.Second, time.Millisecond)
}

type recordingPlayer struct {
	mu    sync.Mutex
	clips []Clip
}

func (r *recordingPlayer) Play(c Clip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips = append(r.clips, c)
}

func TestSwitch(t *testing.T) {
	first := &recordingPlayer{}
	second := &recordingPlayer{}

	s := NewSwitch(first)
	s.Play(ClipShuttle)
	s.Set(second)
	s.Play(ClipLevel)
	s.Set(nil)
	s.Play(ClipFinish)

	assert.Equal(t, []Clip{ClipShuttle}, first.clips)
	assert.Equal(t, []Clip{ClipLevel}, second.clips)
}
