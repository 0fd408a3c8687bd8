package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalsDeclareIsIdempotent(t *testing.T) {
	g := NewGlobals()
	a := g.Declare("x")
	b := g.Declare("x")
	assert.Equal(t, a, b)
}

func TestGlobalsLookupMissing(t *testing.T) {
	g := NewGlobals()
	assert.Equal(t, GlobalDoesNotExist, g.Lookup("nope"))
}

func TestGlobalsAssignFreesOldValue(t *testing.T) {
	g := NewGlobals()
	idx := g.Declare("x")
	first := NewString("first")
	g.Assign(idx, first)
	g.Assign(idx, NewString("second"))
	assert.Equal(t, 0, *first.refcount, "the replaced value's reference is released")
	assert.Equal(t, "second", g.Fetch(idx).(*String).Display())
}

func TestGlobalsFetchClones(t *testing.T) {
	g := NewGlobals()
	idx := g.Declare("x")
	s := NewString("shared")
	g.Assign(idx, s)

	a := g.Fetch(idx)
	b := g.Fetch(idx)
	assert.Equal(t, a.(*String).Display(), b.(*String).Display())
	assert.Equal(t, 3, *s.refcount, "the table's reference plus one per Fetch")
}

func TestGlobalsNameAt(t *testing.T) {
	g := NewGlobals()
	idx := g.Declare("counter")
	assert.Equal(t, "counter", g.NameAt(idx))
}
