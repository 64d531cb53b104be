package capture

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIDSortable(t *testing.T) {
	now := time.Now()
	a := NewID(now)
	b := NewID(now.Add(time.Second))
	assert.Less(t, a, b)
}

func TestNewIDStrictlyIncreasing(t *testing.T) {
	now := time.Now()
	prev := NewID(now)
	for i := 0; i < 1000; i++ {
		next := NewID(now)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNewIDClockRollback(t *testing.T) {
	now := time.Now()
	a := NewID(now)
	// A wall clock stepping backwards must not produce a smaller ID.
	b := NewID(now.Add(-time.Hour))
	assert.Less(t, a, b)
}

func TestNewIDConcurrent(t *testing.T) {
	const n = 500
	ids := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = NewID(time.Now())
		}(i)
	}
	wg.Wait()

	sort.Strings(ids)
	for i := 1; i < n; i++ {
		assert.NotEqual(t, ids[i-1], ids[i], "duplicate ID at %d", i)
	}
}
