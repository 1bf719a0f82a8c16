// Package scene reads connection scenes: named parts built from boxes,
// cylinders, I-sections and angles, placed in millimetres.
package scene

import (
	"errors"
	"fmt"
	gomath "math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/steelifc/internal/export"
	"github.com/Faultbox/steelifc/pkg/brep"
	"github.com/Faultbox/steelifc/pkg/math"
)

// Scene validation errors.
var (
	ErrEmptyScene     = errors.New("scene has no parts")
	ErrNoShape        = errors.New("part has no shape")
	ErrMultipleShapes = errors.New("part has more than one shape")
)

// Vec is an [x, y, z] triple.
type Vec [3]float64

func (v Vec) vec3() math.Vec3 {
	return math.V3(v[0], v[1], v[2])
}

// Scene is a named list of parts.
type Scene struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Parts       []Part `yaml:"parts"`
}

// Part is one named solid. Exactly one shape field is set.
type Part struct {
	Name string `yaml:"name"`

	Box      *BoxSpec      `yaml:"box,omitempty"`
	Cylinder *CylinderSpec `yaml:"cylinder,omitempty"`
	IBeam    *IBeamSpec    `yaml:"ibeam,omitempty"`
	Angle    *AngleSpec    `yaml:"angle,omitempty"`

	// Split exports each plate of an I-section or angle as its own element
	// named <name>_0, <name>_1, ...
	Split bool `yaml:"split,omitempty"`

	Placement *Placement `yaml:"placement,omitempty"`
}

// BoxSpec is an axis-aligned box given by its minimum corner and extents.
type BoxSpec struct {
	Origin Vec `yaml:"origin"`
	Size   Vec `yaml:"size"`
}

// CylinderSpec is a cylinder along +Z with its base centre at Origin.
type CylinderSpec struct {
	Origin Vec     `yaml:"origin"`
	Radius float64 `yaml:"radius"`
	Height float64 `yaml:"height"`
}

// IBeamSpec is an I-section along +Y made of two flanges and a web. Origin
// is the minimum corner of the bottom flange.
type IBeamSpec struct {
	Origin          Vec     `yaml:"origin"`
	Length          float64 `yaml:"length"`
	Height          float64 `yaml:"height"`
	Width           float64 `yaml:"width"`
	FlangeThickness float64 `yaml:"flange_thickness"`
	WebThickness    float64 `yaml:"web_thickness"`
}

// AngleSpec is an L-section along +Y: one leg in the XY plane, one in the
// YZ plane, both starting at Origin.
type AngleSpec struct {
	Origin    Vec     `yaml:"origin"`
	Length    float64 `yaml:"length"`
	Leg1      float64 `yaml:"leg1"`
	Leg2      float64 `yaml:"leg2"`
	Thickness float64 `yaml:"thickness"`
}

// Placement moves a part: rotation about the world origin, then translation.
type Placement struct {
	Translate Vec       `yaml:"translate"`
	Rotate    *Rotation `yaml:"rotate,omitempty"`
}

// Rotation is a rotation by Angle degrees about Axis.
type Rotation struct {
	Axis  Vec     `yaml:"axis"`
	Angle float64 `yaml:"angle"`
}

// Matrix returns the rigid transform of p. A nil placement is the identity.
func (p *Placement) Matrix() math.Mat4 {
	if p == nil {
		return math.Identity()
	}
	m := math.TranslateVec3(p.Translate.vec3())
	if p.Rotate != nil && p.Rotate.Angle != 0 {
		q := math.QuatFromAxisAngle(p.Rotate.Axis.vec3(), p.Rotate.Angle*gomath.Pi/180)
		m = m.Mul(q.ToMat4())
	}
	return m
}

// Parse decodes a scene from YAML and validates it.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Marshal encodes the scene as YAML.
func (s *Scene) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks that every part has a name and exactly one shape, and
// that the resulting element names are unique.
func (s *Scene) Validate() error {
	if len(s.Parts) == 0 {
		return ErrEmptyScene
	}
	_, err := s.Entries()
	return err
}

// Entries builds the export entries of the scene in part order.
func (s *Scene) Entries() ([]export.Entry, error) {
	var entries []export.Entry
	for i, p := range s.Parts {
		parts, err := p.entries()
		if err != nil {
			return nil, fmt.Errorf("part %d (%q): %w", i, p.Name, err)
		}
		entries = append(entries, parts...)
	}
	if err := export.ValidateEntries(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p Part) entries() ([]export.Entry, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, export.ErrEmptyName
	}
	solids, err := p.solids()
	if err != nil {
		return nil, err
	}

	m := p.Placement.Matrix()
	for i, s := range solids {
		solids[i] = move(s, m)
	}

	if p.Split && len(solids) > 1 {
		entries := make([]export.Entry, len(solids))
		for i, s := range solids {
			entries[i] = export.Entry{Name: fmt.Sprintf("%s_%d", p.Name, i), Solid: s}
		}
		return entries, nil
	}
	if len(solids) == 1 {
		return []export.Entry{{Name: p.Name, Solid: solids[0]}}, nil
	}
	return []export.Entry{{Name: p.Name, Solid: brep.Compound(solids)}}, nil
}

func (p Part) solids() ([]brep.Solid, error) {
	set := 0
	for _, ok := range []bool{p.Box != nil, p.Cylinder != nil, p.IBeam != nil, p.Angle != nil} {
		if ok {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, ErrNoShape
	case set > 1:
		return nil, ErrMultipleShapes
	}

	switch {
	case p.Box != nil:
		b, err := brep.NewBox(p.Box.Origin.vec3(), p.Box.Size[0], p.Box.Size[1], p.Box.Size[2])
		if err != nil {
			return nil, err
		}
		return []brep.Solid{b}, nil
	case p.Cylinder != nil:
		c, err := brep.NewCylinder(p.Cylinder.Radius, p.Cylinder.Height)
		if err != nil {
			return nil, err
		}
		return []brep.Solid{c.Moved(math.TranslateVec3(p.Cylinder.Origin.vec3()))}, nil
	case p.IBeam != nil:
		return p.IBeam.plates()
	default:
		return p.Angle.plates()
	}
}

func move(s brep.Solid, m math.Mat4) brep.Solid {
	switch v := s.(type) {
	case *brep.Box:
		return v.Moved(m)
	case *brep.Cylinder:
		return v.Moved(m)
	}
	return s
}

// plates returns bottom flange, top flange and web. Zero fields take the
// defaults 500 x 200 x 100 with 10 mm flanges and a 6 mm web.
func (b *IBeamSpec) plates() ([]brep.Solid, error) {
	s := *b
	if s.Length == 0 {
		s.Length = 500
	}
	if s.Height == 0 {
		s.Height = 200
	}
	if s.Width == 0 {
		s.Width = 100
	}
	if s.FlangeThickness == 0 {
		s.FlangeThickness = 10
	}
	if s.WebThickness == 0 {
		s.WebThickness = 6
	}
	if s.Height <= 2*s.FlangeThickness || s.Width <= s.WebThickness {
		return nil, fmt.Errorf("%w: I-section %gx%g with %g/%g plates",
			brep.ErrDegenerateSolid, s.Height, s.Width, s.FlangeThickness, s.WebThickness)
	}

	o := s.Origin.vec3()
	return boxes(
		boxArgs{o, s.Width, s.Length, s.FlangeThickness},
		boxArgs{o.Add(math.V3(0, 0, s.Height-s.FlangeThickness)), s.Width, s.Length, s.FlangeThickness},
		boxArgs{o.Add(math.V3((s.Width-s.WebThickness)/2, 0, s.FlangeThickness)), s.WebThickness, s.Length, s.Height - 2*s.FlangeThickness},
	)
}

// plates returns the horizontal and the vertical leg. Zero fields take the
// defaults 500 long, 50 x 50 legs, 5 thick.
func (a *AngleSpec) plates() ([]brep.Solid, error) {
	s := *a
	if s.Length == 0 {
		s.Length = 500
	}
	if s.Leg1 == 0 {
		s.Leg1 = 50
	}
	if s.Leg2 == 0 {
		s.Leg2 = 50
	}
	if s.Thickness == 0 {
		s.Thickness = 5
	}

	o := s.Origin.vec3()
	return boxes(
		boxArgs{o, s.Leg1, s.Length, s.Thickness},
		boxArgs{o, s.Thickness, s.Length, s.Leg2},
	)
}

type boxArgs struct {
	origin     math.Vec3
	dx, dy, dz float64
}

func boxes(args ...boxArgs) ([]brep.Solid, error) {
	solids := make([]brep.Solid, len(args))
	for i, a := range args {
		b, err := brep.NewBox(a.origin, a.dx, a.dy, a.dz)
		if err != nil {
			return nil, err
		}
		solids[i] = b
	}
	return solids, nil
}
