package ifc

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/steelifc/internal/mesh"
	"github.com/Faultbox/steelifc/pkg/brep"
	"github.com/Faultbox/steelifc/pkg/math"
	"github.com/Faultbox/steelifc/pkg/step"
)

// ErrNonFinitePoint is returned when a triangle corner is NaN or infinite.
var ErrNonFinitePoint = errors.New("ifc: non-finite point coordinate")

// triangleSource feeds triangles to emit until emit returns false.
type triangleSource func(emit func(mesh.Triangle) bool) error

// AddElement classifies name, inserts an element into the storey and
// attaches a faceted representation of solid when it meshes to at least one
// triangle.
//
// The element is always inserted once its entity exists. If meshing or
// geometry construction fails, the geometry written so far is dropped, the
// element stays without representation and an *ElementError is returned.
// Panics are recovered the same way.
func (d *Document) AddElement(name string, solid brep.Solid) error {
	return d.insert(name, func(emit func(mesh.Triangle) bool) error {
		if solid == nil {
			return errors.New("nil solid")
		}
		seq, err := mesh.Triangulate(solid, d.opts.Tolerance)
		if err != nil {
			return err
		}
		seq(emit)
		return nil
	})
}

// AddTriangulated is AddElement for triangles computed ahead of time.
func (d *Document) AddTriangulated(name string, triangles []mesh.Triangle) error {
	return d.insert(name, func(emit func(mesh.Triangle) bool) error {
		for _, t := range triangles {
			if !emit(t) {
				break
			}
		}
		return nil
	})
}

// AddWithoutGeometry inserts an element with no representation, e.g. after
// its triangulation timed out.
func (d *Document) AddWithoutGeometry(name string) error {
	return d.insert(name, nil)
}

func (d *Document) insert(name string, source triangleSource) (err error) {
	kind := d.classifier.Classify(name)
	elem := &Element{Name: name, Kind: kind}
	mark := len(d.instances)
	inserted := false

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		if err == nil {
			return
		}
		// Keep the element if it made it into the hierarchy, but drop any
		// half-built geometry.
		if inserted {
			if elem.Representation != 0 {
				d.instance(elem.Ref).Attrs[representationAttr] = step.Unset
				elem.Representation = 0
			}
			elem.Facets = nil
		}
		d.truncate(mark)
		err = &ElementError{Name: name, Kind: kind, Err: err}
		d.log.Warn("element export failed",
			zap.String("element", name),
			zap.Stringer("kind", kind),
			zap.Bool("inserted", inserted),
			zap.Error(err))
	}()

	factory, ok := elementFactories[kind]
	if !ok {
		return fmt.Errorf("no factory for kind %s", kind)
	}

	elem.GlobalID = d.opts.IDs.Next()
	placement := d.add("IFCLOCALPLACEMENT", step.Ref(d.storey.Placement), step.Ref(d.origin))
	entity, attrs := factory(elem.GlobalID, name, placement)
	elem.Ref = d.add(entity, attrs...)

	// RelatedElements, RelatingStructure
	elem.Containment = d.add("IFCRELCONTAINEDINSPATIALSTRUCTURE",
		step.String(d.opts.IDs.Next()),
		step.Unset,
		step.Unset,
		step.Unset,
		step.Refs(elem.Ref),
		step.Ref(d.storey.Ref),
	)
	d.elements = append(d.elements, elem)
	inserted = true
	mark = len(d.instances)

	if source == nil {
		return nil
	}
	faces, err := d.addFacets(elem, source)
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		d.log.Debug("element has no facets",
			zap.String("element", name),
			zap.Stringer("kind", kind))
		return nil
	}

	shell := d.add("IFCCLOSEDSHELL", step.Refs(faces...))
	solid := d.add("IFCFACETEDBREP", step.Ref(shell))
	// ContextOfItems, RepresentationIdentifier, RepresentationType, Items
	rep := d.add("IFCSHAPEREPRESENTATION",
		step.Ref(d.context),
		step.String("Body"),
		step.String("Brep"),
		step.Refs(solid),
	)
	// Name, Description, Representations
	elem.Representation = d.add("IFCPRODUCTDEFINITIONSHAPE", step.Unset, step.Unset, step.Refs(rep))
	d.instance(elem.Ref).Attrs[representationAttr] = step.Ref(elem.Representation)

	d.log.Debug("element added",
		zap.String("element", name),
		zap.Stringer("kind", kind),
		zap.Int("facets", len(elem.Facets)))
	return nil
}

// addFacets writes one IfcFace per triangle with non-zero area. Corners closer
// than the context precision share an IfcCartesianPoint, unless sharing would
// collapse the loop of a triangle that still has area; such corners get their
// own point.
func (d *Document) addFacets(elem *Element, source triangleSource) ([]int, error) {
	points := make(map[[3]int64]int)
	var faces []int
	var pointErr error

	pointID := func(p math.Vec3) int {
		if !finite(p) {
			pointErr = fmt.Errorf("%w: %v", ErrNonFinitePoint, p)
			return 0
		}
		key, ok := p.Quantize(d.opts.Precision)
		if !ok {
			return d.add("IFCCARTESIANPOINT", step.Reals(p.X, p.Y, p.Z))
		}
		if id, ok := points[key]; ok {
			return id
		}
		id := d.add("IFCCARTESIANPOINT", step.Reals(p.X, p.Y, p.Z))
		points[key] = id
		return id
	}

	// A triangle is degenerate when its area vanishes at the precision scale.
	minArea := d.opts.Precision * d.opts.Precision
	degenerate := 0
	err := source(func(t mesh.Triangle) bool {
		// NaN areas fall through so the point check reports them.
		if t.Area() <= minArea {
			degenerate++
			return true
		}
		var ids [3]int
		for i, p := range t {
			ids[i] = pointID(p)
			if pointErr != nil {
				return false
			}
		}
		for i := 1; i < 3; i++ {
			if ids[i] == ids[0] || (i == 2 && ids[2] == ids[1]) {
				p := t[i]
				ids[i] = d.add("IFCCARTESIANPOINT", step.Reals(p.X, p.Y, p.Z))
			}
		}
		loop := d.add("IFCPOLYLOOP", step.Refs(ids[:]...))
		bound := d.add("IFCFACEOUTERBOUND", step.Ref(loop), step.Bool(true))
		face := d.add("IFCFACE", step.Refs(bound))
		faces = append(faces, face)
		elem.Facets = append(elem.Facets, Facet{Face: face, Points: ids})
		return true
	})
	if err != nil {
		return nil, err
	}
	if pointErr != nil {
		return nil, pointErr
	}
	if degenerate > 0 {
		d.log.Debug("dropped degenerate triangles",
			zap.String("element", elem.Name),
			zap.Int("count", degenerate))
	}
	return faces, nil
}

func finite(p math.Vec3) bool {
	for _, c := range p.Array() {
		if gomath.IsNaN(c) || gomath.IsInf(c, 0) {
			return false
		}
	}
	return true
}
