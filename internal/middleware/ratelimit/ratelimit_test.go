package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(0.001, 3, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("ip1"))
	assert.True(t, l.Allow("ip1"))
	assert.True(t, l.Allow("ip1"))
	assert.False(t, l.Allow("ip1"), "fourth request should exceed the burst")
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l := New(0.001, 1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("ip1"))
	assert.False(t, l.Allow("ip1"))
	assert.True(t, l.Allow("ip2"), "a different identity has its own bucket")
}

func TestRefill(t *testing.T) {
	l := New(50, 1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("ip1"))
	assert.False(t, l.Allow("ip1"))

	// 50 tokens/s refills one within 20ms
	time.Sleep(50 * time.Millisecond)
	assert.True(t, l.Allow("ip1"))
}

func TestConcurrentAccess(t *testing.T) {
	l := New(0.001, 50, time.Minute)
	defer l.Stop()

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("shared")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 50, count, "exactly the burst should be admitted")
}
