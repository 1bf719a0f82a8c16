// Package classify maps element names to building-element kinds using an
// ordered table of substring rules.
package classify

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a semantic building-element category.
type Kind int

const (
	Proxy Kind = iota // Fallback when no rule matches
	Beam
	Column
	Plate
	MechanicalFastener
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{Proxy, Beam, Column, Plate, MechanicalFastener}

// String returns the kind name as used in configuration files.
func (k Kind) String() string {
	switch k {
	case Proxy:
		return "Proxy"
	case Beam:
		return "Beam"
	case Column:
		return "Column"
	case Plate:
		return "Plate"
	case MechanicalFastener:
		return "MechanicalFastener"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// IFCType returns the IFC4 entity that represents the kind.
func (k Kind) IFCType() string {
	switch k {
	case Beam:
		return "IFCBEAM"
	case Column:
		return "IFCCOLUMN"
	case Plate:
		return "IFCPLATE"
	case MechanicalFastener:
		return "IFCMECHANICALFASTENER"
	default:
		return "IFCBUILDINGELEMENTPROXY"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Proxy && k <= MechanicalFastener
}

// Rule table errors.
var (
	ErrUnknownKind  = errors.New("unknown element kind")
	ErrEmptyPattern = errors.New("classification pattern is empty")
)

// ParseKind parses a kind name case-insensitively. IFC entity names such as
// "IfcBeam" are accepted as well.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "ifc")
	for _, k := range Kinds {
		if strings.ToLower(k.String()) == name {
			return k, nil
		}
	}
	if name == "buildingelementproxy" {
		return Proxy, nil
	}
	return Proxy, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Rule assigns Kind to every name containing Pattern (case-insensitive).
type Rule struct {
	Pattern string `yaml:"pattern"`
	Kind    Kind   `yaml:"kind"`
}

// DefaultRules returns the built-in rule table. Order is priority:
// a name like "ColumnPlate" is a Column.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "beam", Kind: Beam},
		{Pattern: "column", Kind: Column},
		{Pattern: "plate", Kind: Plate},
		{Pattern: "gusset", Kind: Plate},
		{Pattern: "bolt", Kind: MechanicalFastener},
	}
}

// ValidateRules checks that every rule has a pattern and a known kind.
func ValidateRules(rules []Rule) error {
	for i, r := range rules {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("rule %d: %w", i, ErrEmptyPattern)
		}
		if !r.Kind.Valid() {
			return fmt.Errorf("rule %d (%q): %w: %d", i, r.Pattern, ErrUnknownKind, int(r.Kind))
		}
	}
	return nil
}

// Classifier evaluates rules in order; the first match wins.
type Classifier struct {
	rules []Rule
}

// New creates a classifier from an ordered rule table. The table is copied.
func New(rules []Rule) (*Classifier, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	c := &Classifier{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		c.rules[i] = Rule{Pattern: strings.ToLower(r.Pattern), Kind: r.Kind}
	}
	return c, nil
}

// Default returns a classifier using DefaultRules.
func Default() *Classifier {
	c, _ := New(DefaultRules())
	return c
}

// Rules returns a copy of the rule table in priority order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the kind for name. It never fails: names matching no
// rule are Proxy.
func (c *Classifier) Classify(name string) Kind {
	n := strings.ToLower(name)
	for _, r := range c.rules {
		if strings.Contains(n, r.Pattern) {
			return r.Kind
		}
	}
	return Proxy
}
