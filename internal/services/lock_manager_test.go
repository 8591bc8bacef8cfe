package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockManagerSerializesPerKey(t *testing.T) {
	lm := NewLockManager(time.Minute)
	defer lm.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lm.ExecuteWithLock("job", func() error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 1, lm.Size())
}

func TestLockManagerCleanup(t *testing.T) {
	lm := NewLockManager(time.Minute)
	defer lm.Stop()

	_ = lm.ExecuteWithLock("a", func() error { return nil })
	lm.lockTTL = 0
	time.Sleep(time.Millisecond)
	lm.cleanupUnusedLocks()
	assert.Equal(t, 0, lm.Size())
}
