package domain

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// idLength is the length of cell and notebook identifiers. Ids are drawn from
// the URL-safe nanoid alphabet; uniqueness per notebook is a creation-time
// responsibility.
const idLength = 30

// NewID generates a fresh 30-character URL-safe identifier.
func NewID() string {
	id, err := gonanoid.New(idLength)
	if err != nil {
		// The default alphabet and crypto/rand never fail outside of a
		// broken platform entropy source.
		panic(err)
	}
	return id
}

// LocalValue is the evaluator's value envelope for one name. The core passes
// it through untouched.
type LocalValue struct {
	Value string `json:"value" msgpack:"value"`
	Type  string `json:"type" msgpack:"type"`
}

// LocalSet maps identifiers to their last-known value envelopes.
type LocalSet map[string]LocalValue

// Extend merges other into the set; new entries overwrite old ones.
func (l LocalSet) Extend(other LocalSet) {
	for name, v := range other {
		l[name] = v
	}
}

// Clone returns an independent copy of the set.
func (l LocalSet) Clone() LocalSet {
	out := make(LocalSet, len(l))
	for name, v := range l {
		out[name] = v
	}
	return out
}

// CellMetadata carries presentation state the core stores but never reads.
type CellMetadata struct {
	Collapsed bool `json:"collapsed"`
}

// Cell is the unit of edit and execution. Bindings, Requirements, Ignored and
// Statements are derived from Source by the analyzer; Locals is extended from
// evaluator replies.
type Cell struct {
	ID       string       `json:"uuid"`
	Kind     CellKind     `json:"cellType"`
	Source   string       `json:"content"`
	Metadata CellMetadata `json:"metadata"`

	Statements   []Statement `json:"statements"`
	Bindings     StringSet   `json:"bindings"`
	Requirements StringSet   `json:"requirements"`
	Ignored      StringSet   `json:"-"`
	Locals       LocalSet    `json:"locals,omitempty"`
}

// NewCell creates a cell with a fresh id and empty derived sets.
func NewCell(kind CellKind, source string) *Cell {
	return &Cell{
		ID:           NewID(),
		Kind:         kind,
		Source:       source,
		Bindings:     NewStringSet(),
		Requirements: NewStringSet(),
		Ignored:      NewStringSet(),
		Locals:       make(LocalSet),
	}
}

// ResetAnalysis clears every derived set before a fresh analysis. Locals are
// kept: the evaluator's last-known values stay valid across edits.
func (c *Cell) ResetAnalysis() {
	c.Statements = nil
	c.Bindings = NewStringSet()
	c.Requirements = NewStringSet()
	c.Ignored = NewStringSet()
}

// Clone returns a deep copy of the cell's analysis state. Locals values are
// shared; they are opaque and immutable once observed.
func (c *Cell) Clone() *Cell {
	out := &Cell{
		ID:           c.ID,
		Kind:         c.Kind,
		Source:       c.Source,
		Metadata:     c.Metadata,
		Bindings:     c.Bindings.Clone(),
		Requirements: c.Requirements.Clone(),
		Ignored:      c.Ignored.Clone(),
		Locals:       c.Locals.Clone(),
	}
	out.Statements = make([]Statement, len(c.Statements))
	copy(out.Statements, c.Statements)
	return out
}

// Restore copies the analysis state of other back into the cell. Used to roll
// back a rejected update.
func (c *Cell) Restore(other *Cell) {
	c.Kind = other.Kind
	c.Source = other.Source
	c.Metadata = other.Metadata
	c.Statements = other.Statements
	c.Bindings = other.Bindings
	c.Requirements = other.Requirements
	c.Ignored = other.Ignored
	c.Locals = other.Locals
}
