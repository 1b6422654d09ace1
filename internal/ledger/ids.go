package ledger

import (
	"fmt"
	"sync"
	"time"
)

// IDGenerator issues record ids of the form prefix + the low 8 digits of
// the Unix millisecond clock. Ids from one generator never repeat within
// the process; across processes only the partition duplicate check guards
// against collisions.
type IDGenerator struct {
	prefix string

	mu   sync.Mutex
	last int64
}

// NewIDGenerator creates a generator for prefix (e.g. "DH" for sales).
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next returns a fresh id for the instant now.
func (g *IDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("%s%08d", g.prefix, ms%100_000_000)
}
