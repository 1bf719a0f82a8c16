package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/steelifc/pkg/brep"
)

// Input validation errors.
var (
	ErrEmptyName     = errors.New("export: element name is empty")
	ErrDuplicateName = errors.New("export: duplicate element name")
)

// Entry is one named solid to export.
type Entry struct {
	Name  string
	Solid brep.Solid
}

// EntriesFromMap returns the entries of m sorted by name, so the exported
// file does not depend on map iteration order.
func EntriesFromMap(m map[string]brep.Solid) []Entry {
	entries := make([]Entry, 0, len(m))
	for name, solid := range m {
		entries = append(entries, Entry{Name: name, Solid: solid})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// ValidateEntries rejects blank and repeated names.
func ValidateEntries(entries []Entry) error {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("%w (entry %d)", ErrEmptyName, i)
		}
		if first, ok := seen[e.Name]; ok {
			return fmt.Errorf("%w: %q (entries %d and %d)", ErrDuplicateName, e.Name, first, i)
		}
		seen[e.Name] = i
	}
	return nil
}
