package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsSequential(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, int64(1), g.Next())
	assert.Equal(t, int64(2), g.Next())
	assert.Equal(t, int64(3), g.Next())
}

func TestObserveOnlyMovesForward(t *testing.T) {
	g := NewGenerator()
	g.Observe(10)
	assert.Equal(t, int64(11), g.Next())

	g.Observe(4)
	assert.Equal(t, int64(12), g.Next())
}

func TestConcurrentNextIsUnique(t *testing.T) {
	g := NewGenerator()
	const workers, per = 8, 200

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				id := g.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*per)
	assert.Equal(t, int64(workers*per+1), g.Next())
}
