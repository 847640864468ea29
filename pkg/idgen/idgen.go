// Package idgen generates identifiers that stay unique when many are
// created within the same millisecond.
package idgen

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator produces "<prefix>-<unix millis>-<counter>-<random>" identifiers.
// The counter is monotonic per Generator; the random suffix separates
// generators running in different processes.
type Generator struct {
	prefix  string
	counter atomic.Uint64
	now     func() time.Time
}

// New creates a Generator. The prefix may be empty.
func New(prefix string) *Generator {
	return &Generator{prefix: prefix, now: time.Now}
}

// Next returns a new identifier.
func (g *Generator) Next() string {
	n := g.counter.Add(1)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	id := fmt.Sprintf("%d-%06d-%s", g.now().UnixMilli(), n, suffix)
	if g.prefix != "" {
		return g.prefix + "-" + id
	}
	return id
}

var defaultGenerator = New("")

// Next returns an identifier from the package-level generator.
func Next() string {
	return defaultGenerator.Next()
}
