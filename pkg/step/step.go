// Package step reads and writes ISO 10303-21 exchange files ("STEP physical
// files"), the clear-text encoding used for IFC models.
//
// Only simple entity instances are supported. Complex (multi-leaf) instances
// and binary literals are rejected by the parser.
package step

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Format errors.
var (
	ErrInvalidMagic   = errors.New("invalid STEP file: expected 'ISO-10303-21;'")
	ErrUnexpectedEOF  = errors.New("unexpected end of STEP data")
	ErrSyntax         = errors.New("STEP syntax error")
	ErrUnsupported    = errors.New("unsupported STEP construct")
	ErrDuplicateID    = errors.New("duplicate instance id")
	ErrDanglingRef    = errors.New("reference to undefined instance")
	ErrInvalidReal    = errors.New("real value is not finite")
	ErrInvalidKeyword = errors.New("invalid entity keyword")
)

// Value is one attribute value of an instance.
type Value interface {
	isValue()
}

// Ref is an instance reference (#id).
type Ref int

// String is a quoted string literal.
type String string

// Real is a floating point literal.
type Real float64

// Integer is an integer literal.
type Integer int64

// Enum is an enumeration literal written between dots, e.g. .METRE.
type Enum string

// Bool is a logical literal, .T. or .F.
type Bool bool

// List is a parenthesized aggregate.
type List []Value

// Null is the unset value '$'.
type Null struct{}

// Derived is the derived value '*'.
type Derived struct{}

// Typed is a value wrapped in its defined type, e.g. IFCLABEL('x').
type Typed struct {
	Type  string
	Value Value
}

func (Ref) isValue()     {}
func (String) isValue()  {}
func (Real) isValue()    {}
func (Integer) isValue() {}
func (Enum) isValue()    {}
func (Bool) isValue()    {}
func (List) isValue()    {}
func (Null) isValue()    {}
func (Derived) isValue() {}
func (Typed) isValue()   {}

// Shorthand values.
var (
	Unset Value = Null{}
	Star  Value = Derived{}
)

// Refs builds a List of references.
func Refs(ids ...int) List {
	l := make(List, len(ids))
	for i, id := range ids {
		l[i] = Ref(id)
	}
	return l
}

// Reals builds a List of reals.
func Reals(vs ...float64) List {
	l := make(List, len(vs))
	for i, v := range vs {
		l[i] = Real(v)
	}
	return l
}

// OptString returns Unset for an empty string and String(s) otherwise.
func OptString(s string) Value {
	if s == "" {
		return Unset
	}
	return String(s)
}

// Instance is one entity instance. Header entries have ID 0.
type Instance struct {
	ID    int
	Type  string
	Attrs []Value
}

// Attr returns the i-th attribute or nil when out of range.
func (in *Instance) Attr(i int) Value {
	if i < 0 || i >= len(in.Attrs) {
		return nil
	}
	return in.Attrs[i]
}

// References returns every instance id referenced by the attributes, in
// attribute order, including references nested in lists and typed values.
func (in *Instance) References() []int {
	var out []int
	var walk func(v Value)
	walk = func(v Value) {
		switch x := v.(type) {
		case Ref:
			out = append(out, int(x))
		case List:
			for _, e := range x {
				walk(e)
			}
		case Typed:
			walk(x.Value)
		}
	}
	for _, a := range in.Attrs {
		walk(a)
	}
	return out
}

// File is a parsed or to-be-written exchange file.
type File struct {
	Header    []*Instance
	Instances []*Instance

	index map[int]*Instance
}

// HeaderEntry returns the header instance with the given keyword.
func (f *File) HeaderEntry(keyword string) *Instance {
	for _, h := range f.Header {
		if strings.EqualFold(h.Type, keyword) {
			return h
		}
	}
	return nil
}

// Schemas returns the schema identifiers from FILE_SCHEMA.
func (f *File) Schemas() []string {
	h := f.HeaderEntry("FILE_SCHEMA")
	if h == nil {
		return nil
	}
	list, ok := h.Attr(0).(List)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range list {
		if s, ok := v.(String); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// Get returns the instance with the given id. The index is built on first
// use, so Instances must not change afterwards.
func (f *File) Get(id int) *Instance {
	if f.index == nil {
		f.reindex()
	}
	return f.index[id]
}

func (f *File) reindex() {
	f.index = make(map[int]*Instance, len(f.Instances))
	for _, in := range f.Instances {
		f.index[in.ID] = in
	}
}

// ByType returns all instances of an entity type (case-insensitive) in file order.
func (f *File) ByType(entity string) []*Instance {
	var out []*Instance
	for _, in := range f.Instances {
		if strings.EqualFold(in.Type, entity) {
			out = append(out, in)
		}
	}
	return out
}

// TypeCount is the number of instances of one entity type.
type TypeCount struct {
	Type  string
	Count int
}

// CountByType returns instance counts per type, most frequent first.
func (f *File) CountByType() []TypeCount {
	counts := make(map[string]int)
	for _, in := range f.Instances {
		counts[in.Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TypeCount{t, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Validate checks that instance ids are unique and positive and that every
// reference resolves to an instance in the file.
func (f *File) Validate() error {
	seen := make(map[int]bool, len(f.Instances))
	for _, in := range f.Instances {
		if in.ID <= 0 {
			return fmt.Errorf("%w: #%d", ErrSyntax, in.ID)
		}
		if seen[in.ID] {
			return fmt.Errorf("%w: #%d", ErrDuplicateID, in.ID)
		}
		seen[in.ID] = true
	}
	for _, in := range f.Instances {
		for _, ref := range in.References() {
			if !seen[ref] {
				return fmt.Errorf("%w: #%d in #%d=%s", ErrDanglingRef, ref, in.ID, in.Type)
			}
		}
	}
	return nil
}
