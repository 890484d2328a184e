package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastRecorder struct {
	mu      sync.Mutex
	signals []bool
}

func (r *broadcastRecorder) send(start bool) {
	r.mu.Lock()
	r.signals = append(r.signals, start)
	r.mu.Unlock()
}

func (r *broadcastRecorder) recorded() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.signals))
	copy(out, r.signals)
	return out
}

func TestLocalInputDebouncesStart(t *testing.T) {
	rec := &broadcastRecorder{}
	c := New("me", 50*time.Millisecond, 50*time.Millisecond, rec.send)
	defer c.Close()

	c.OnLocalInput()
	c.OnLocalInput()
	c.OnLocalInput()

	assert.Equal(t, []bool{true}, rec.recorded(), "one start per idle window")
}

func TestContinuousTypingRebroadcastsStartEachWindow(t *testing.T) {
	rec := &broadcastRecorder{}
	c := New("me", 20*time.Millisecond, 30*time.Millisecond, rec.send)
	defer c.Close()

	// keystrokes keep arriving well past several windows; the peer's expiry
	// only survives if a fresh start goes out each window
	deadline := time.Now().Add(110 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.OnLocalInput()
		time.Sleep(5 * time.Millisecond)
	}

	signals := rec.recorded()
	starts := 0
	for _, start := range signals {
		if start {
			starts++
		}
	}
	assert.Greater(t, starts, 1, "continuous typing must refresh the start each window")
	require.NotEmpty(t, signals)
	assert.True(t, signals[0], "first signal is a start")
}

func TestIdleTimerEmitsStop(t *testing.T) {
	rec := &broadcastRecorder{}
	c := New("me", 20*time.Millisecond, 50*time.Millisecond, rec.send)
	defer c.Close()

	c.OnLocalInput()
	require.Eventually(t, func() bool {
		signals := rec.recorded()
		return len(signals) == 2 && !signals[1]
	}, time.Second, 5*time.Millisecond)

	// typing again after the stop broadcasts a fresh start
	c.OnLocalInput()
	assert.Equal(t, []bool{true, false, true}, rec.recorded())
}

func TestRemoteExpiryWithoutStop(t *testing.T) {
	c := New("me", 20*time.Millisecond, 30*time.Millisecond, func(bool) {})
	defer c.Close()

	c.HandleStart("u2", "Bea")
	require.Equal(t, []string{"Bea"}, c.Names())

	require.Eventually(t, func() bool {
		return len(c.Names()) == 0
	}, time.Second, 5*time.Millisecond)

	// must not reappear without a new start
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.Names())
}

func TestRemoteStartRefreshesExpiry(t *testing.T) {
	c := New("me", 20*time.Millisecond, 60*time.Millisecond, func(bool) {})
	defer c.Close()

	c.HandleStart("u2", "Bea")
	time.Sleep(40 * time.Millisecond)
	c.HandleStart("u2", "Bea")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, []string{"Bea"}, c.Names(), "refreshed entry must survive the original window")
}

func TestExplicitStopRemoves(t *testing.T) {
	c := New("me", time.Second, time.Second, func(bool) {})
	defer c.Close()

	c.HandleStart("u2", "Bea")
	c.HandleStart("u3", "Ada")
	require.Equal(t, []string{"Ada", "Bea"}, c.Names())

	c.HandleStop("u2")
	assert.Equal(t, []string{"Ada"}, c.Names())
}

func TestSelfEventsFiltered(t *testing.T) {
	c := New("me", time.Second, time.Second, func(bool) {})
	defer c.Close()

	c.HandleStart("me", "Me")
	assert.Empty(t, c.Names())
}

func TestCloseCancelsTimersAndSendsFinalStop(t *testing.T) {
	rec := &broadcastRecorder{}
	c := New("me", 20*time.Millisecond, 20*time.Millisecond, rec.send)

	c.OnLocalInput()
	c.HandleStart("u2", "Bea")
	c.Close()

	assert.Equal(t, []bool{true, false}, rec.recorded())
	assert.Empty(t, c.Names())

	// nothing may fire after close
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.recorded())

	c.OnLocalInput()
	assert.Equal(t, []bool{true, false}, rec.recorded(), "input after close is ignored")
}
