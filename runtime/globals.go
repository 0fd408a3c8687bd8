package runtime

// GlobalDoesNotExist is returned by Globals.Lookup when no global has been
// declared under the given name.
const GlobalDoesNotExist = -1

type globalEntry struct {
	name  string
	value Value
}

// Globals is the ordered, flat global-variable table shared across every
// file compiled into a program (imports splice their declarations into the
// same table; there is no per-module namespacing), matching globals.c.
type Globals struct {
	entries []globalEntry
}

// NewGlobals returns an empty globals table.
func NewGlobals() *Globals {
	return &Globals{}
}

// Lookup returns the index of name, or GlobalDoesNotExist.
func (g *Globals) Lookup(name string) int {
	for i, e := range g.entries {
		if e.name == name {
			return i
		}
	}
	return GlobalDoesNotExist
}

// Declare registers name if it isn't already present, defaulting its value
// to Null, and returns its index either way (idempotent), matching
// globals.c's declare_global_variable.
func (g *Globals) Declare(name string) int {
	if idx := g.Lookup(name); idx != GlobalDoesNotExist {
		return idx
	}
	g.entries = append(g.entries, globalEntry{name: name, value: Null{}})
	return len(g.entries) - 1
}

// Assign stores val at index, taking ownership of it and freeing the
// previous value.
func (g *Globals) Assign(index int, val Value) {
	g.entries[index].value.Free()
	g.entries[index].value = val
}

// Fetch returns a cloned reference to the value at index.
func (g *Globals) Fetch(index int) Value {
	return g.entries[index].value.Clone()
}

// NameAt returns the name a global was declared under, used for
// diagnostics.
func (g *Globals) NameAt(index int) string {
	return g.entries[index].name
}
