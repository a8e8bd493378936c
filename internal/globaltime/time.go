// Package globaltime is the process clock. Pipeline code reads "now" from here
// so tests can pin or step it.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
	offset  time.Duration
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc().Add(offset)
}

func UTC() time.Time {
	return Now().UTC()
}

// Since reports the time elapsed since t on the process clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// SetMockTime pins the clock to t until ResetTime is called.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
	offset = 0
}

// Advance moves the clock forward by d, pinned or not.
func Advance(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	offset += d
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
	offset = 0
}
