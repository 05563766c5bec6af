package limiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSamePairIsSerialized(t *testing.T) {
	l := NewPairLocker()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(1, 42)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter, "increments under the pair lock must not race")
	assert.Zero(t, l.ActivePairs(), "entries are reclaimed once released")
}

func TestDistinctPairsDoNotBlock(t *testing.T) {
	l := NewPairLocker()

	unlockA := l.Lock(1, 42)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock(1, 43)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("different user in the same chat must not wait on the held lock")
	}
	assert.Equal(t, 1, l.ActivePairs(), "only the held pair remains tracked")
}

func TestWaiterKeepsEntryAlive(t *testing.T) {
	l := NewPairLocker()

	unlock := l.Lock(7, 7)

	acquired := make(chan struct{})
	go func() {
		u := l.Lock(7, 7)
		close(acquired)
		u()
	}()

	// Give the waiter time to register; it must block until we release.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second Lock acquired while the first was held")
	default:
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}

	// Both holds released; the entry is reclaimed.
	assert.Eventually(t, func() bool { return l.ActivePairs() == 0 },
		time.Second, 10*time.Millisecond)
}
