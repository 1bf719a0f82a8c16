package scene

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed samples/*.yaml
var sampleFS embed.FS

// ErrUnknownSample is returned by Sample for a name with no built-in scene.
var ErrUnknownSample = errors.New("unknown sample scene")

// SampleNames lists the built-in scenes.
func SampleNames() []string {
	entries, _ := sampleFS.ReadDir("samples")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Sample returns the built-in scene called name.
func Sample(name string) (*Scene, error) {
	data, err := sampleFS.ReadFile(path.Join("samples", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownSample, name, strings.Join(SampleNames(), ", "))
	}
	return Parse(data)
}
