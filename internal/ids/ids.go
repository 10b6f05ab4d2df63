// internal/ids/ids.go
package ids

import "sync/atomic"

// Generator hands out sequential catalog ids starting at 1.
type Generator struct {
	counter int64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the next unused id.
func (g *Generator) Next() int64 {
	return atomic.AddInt64(&g.counter, 1)
}

// Observe moves the counter forward so that Next never returns an id
// less than or equal to id. Ids loaded from storage go through here.
func (g *Generator) Observe(id int64) {
	for {
		cur := atomic.LoadInt64(&g.counter)
		if id <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&g.counter, cur, id) {
			return
		}
	}
}
