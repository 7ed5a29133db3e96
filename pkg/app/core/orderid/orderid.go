// Package orderid issues process-wide unique order identifiers.
package orderid

import (
	"strconv"
	"sync/atomic"
)

// Generator hands out strictly increasing ids. It is safe for concurrent use;
// no two calls to Next ever return the same value.
type Generator struct {
	last atomic.Uint64
}

// New creates a generator whose first id is start+1.
// On fresh start → start = 0
// After a restore → start = last id issued by the previous process
func New(start uint64) *Generator {
	g := &Generator{}
	g.last.Store(start)
	return g
}

// Next returns the next id.
func (g *Generator) Next() uint64 {
	return g.last.Add(1)
}

// Current returns the last issued id.
func (g *Generator) Current() uint64 {
	return g.last.Load()
}

// Advance moves the generator so that every later id is greater than floor.
// It never moves backward.
func (g *Generator) Advance(floor uint64) {
	for {
		cur := g.last.Load()
		if cur >= floor {
			return
		}
		if g.last.CompareAndSwap(cur, floor) {
			return
		}
	}
}

// Format renders an id the way it is exposed on the wire.
func Format(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Parse is the inverse of Format.
func Parse(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
