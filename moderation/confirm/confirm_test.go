package confirm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// records presented prompts so tests can answer them
type fakePrompter struct {
	mu        sync.Mutex
	presented []string
	retracted []string
}

func (f *fakePrompter) Present(ctx context.Context, promptID string, p Prompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presented = append(f.presented, promptID)
	return nil
}

func (f *fakePrompter) Retract(promptID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retracted = append(f.retracted, promptID)
}

func (f *fakePrompter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.presented) == 0 {
		return ""
	}
	return f.presented[len(f.presented)-1]
}

func waitForPrompt(t *testing.T, f *fakePrompter) string {
	t.Helper()
	for i := 0; i < 100; i++ {
		if id := f.lastPrompt(); id != "" {
			return id
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("prompt never presented")
	return ""
}

func TestGateConfirm(t *testing.T) {
	assert := assert.New(t)
	p := &fakePrompter{}
	gate := NewGate(p)

	done := make(chan bool, 1)
	go func() {
		ok, err := gate.WaitForConfirm(context.Background(), Prompt{
			Message:      "Log the warning anyway?",
			ConfirmLabel: "Yes",
			CancelLabel:  "No",
			RestrictToID: "mod1",
			Timeout:      5 * time.Second,
		})
		assert.NoError(err)
		done <- ok
	}()

	id := waitForPrompt(t, p)
	assert.True(gate.Resolve(id, "mod1", true))
	assert.True(<-done)
}

func TestGateIgnoresOtherResponders(t *testing.T) {
	assert := assert.New(t)
	p := &fakePrompter{}
	gate := NewGate(p)

	done := make(chan bool, 1)
	go func() {
		ok, _ := gate.WaitForConfirm(context.Background(), Prompt{
			RestrictToID: "mod1",
			Timeout:      5 * time.Second,
		})
		done <- ok
	}()

	id := waitForPrompt(t, p)
	// answers from anyone else are dropped silently
	assert.False(gate.Resolve(id, "bystander", true))
	// the flow is still waiting; the allowed responder settles it
	assert.True(gate.Resolve(id, "mod1", false))
	assert.False(<-done)
}

func TestGateTimeoutIsDecline(t *testing.T) {
	assert := assert.New(t)
	p := &fakePrompter{}
	gate := NewGate(p)

	start := time.Now()
	ok, err := gate.WaitForConfirm(context.Background(), Prompt{
		RestrictToID: "mod1",
		Timeout:      20 * time.Millisecond,
	})
	assert.NoError(err)
	assert.False(ok)
	assert.Less(time.Since(start), time.Second)

	// prompt was cleaned up; late answers find nothing
	require.Len(t, p.presented, 1)
	assert.False(gate.Resolve(p.presented[0], "mod1", true))
	assert.Equal(p.presented, p.retracted)
}

func TestGateResolveOnce(t *testing.T) {
	assert := assert.New(t)
	p := &fakePrompter{}
	gate := NewGate(p)

	done := make(chan bool, 1)
	go func() {
		ok, _ := gate.WaitForConfirm(context.Background(), Prompt{
			RestrictToID: "mod1",
			Timeout:      5 * time.Second,
		})
		done <- ok
	}()

	id := waitForPrompt(t, p)
	assert.True(gate.Resolve(id, "mod1", true))
	// only the first accepted answer counts
	assert.False(gate.Resolve(id, "mod1", false))
	assert.True(<-done)
}

func TestGateContextCancel(t *testing.T) {
	assert := assert.New(t)
	p := &fakePrompter{}
	gate := NewGate(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ok, err := gate.WaitForConfirm(ctx, Prompt{RestrictToID: "mod1", Timeout: 5 * time.Second})
		assert.False(ok)
		assert.ErrorIs(err, context.Canceled)
		close(done)
	}()

	waitForPrompt(t, p)
	cancel()
	<-done
}
