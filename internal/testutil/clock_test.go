package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtEpoch(t *testing.T) {
	clock := NewClock()
	assert.Equal(t, Epoch, clock.Peek())
	assert.Equal(t, Epoch, clock.Now())
}

func TestClock_AdvancesByStep(t *testing.T) {
	clock := NewClock()
	clock.Step = time.Minute

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Minute), clock.Now())
	assert.Equal(t, Epoch.Add(3*time.Minute), clock.Peek())
}

func TestClock_Reset(t *testing.T) {
	clock := NewClock()
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	clock := NewClock()
	const goroutines = 50
	const callsPerGoroutine = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				now := clock.Now()
				mu.Lock()
				assert.False(t, seen[now], "duplicate instant %v", now)
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*callsPerGoroutine)
	assert.Equal(t, Epoch.Add(goroutines*callsPerGoroutine*time.Second), clock.Peek())
}
