package commandqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupe_Seen(t *testing.T) {
	d := NewDedupe(time.Minute)
	defer d.Stop()

	var mu sync.Mutex
	now := time.Unix(1000, 0)
	d.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	assert.False(t, d.Seen("update:1"))
	assert.True(t, d.Seen("update:1"))
	assert.False(t, d.Seen("update:2"))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	assert.False(t, d.Seen("update:1"))

	d.prune()
	assert.Equal(t, 1, d.Size())
}

func TestDedupe_Shutdown(t *testing.T) {
	d := NewDedupe(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		// ok
	case <-time.After(1 * time.Second):
		t.Fatalf("dedupe cleanup did not stop within timeout")
	}
}
