package ifc

import (
	"errors"
	"fmt"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/pkg/step"
)

// ErrPanic wraps a panic recovered while adding an element.
var ErrPanic = errors.New("panic while adding element")

// Facet is one triangular IfcFace: three distinct IfcCartesianPoint ids
// forming the outer bound loop.
type Facet struct {
	Face   int
	Points [3]int
}

// Element is a building element placed in the storey.
type Element struct {
	Name     string
	Kind     classify.Kind
	GlobalID string

	// Ref is the id of the element instance.
	Ref int
	// Containment is the id of the IfcRelContainedInSpatialStructure
	// linking the element to the storey.
	Containment int
	// Representation is the id of the IfcProductDefinitionShape, or 0 when
	// the element carries no geometry.
	Representation int
	Facets         []Facet
}

// HasGeometry reports whether a faceted representation is attached.
func (e *Element) HasGeometry() bool {
	return e.Representation != 0
}

// ElementError reports a failure confined to one element.
type ElementError struct {
	Name string
	Kind classify.Kind
	Err  error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %q (%s): %v", e.Name, e.Kind, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// productAttrs are the IfcProduct attributes shared by every element kind:
// GlobalId, OwnerHistory, Name, Description, ObjectType, ObjectPlacement,
// Representation.
func productAttrs(guid, name string, placement int) []step.Value {
	return []step.Value{
		step.String(guid),
		step.Unset,
		step.OptString(name),
		step.Unset,
		step.Unset,
		step.Ref(placement),
		step.Unset,
	}
}

// representationAttr is the index of Representation in productAttrs.
const representationAttr = 6

type elementFactory func(guid, name string, placement int) (string, []step.Value)

// Tag, PredefinedType.
func newBeam(guid, name string, placement int) (string, []step.Value) {
	return "IFCBEAM", append(productAttrs(guid, name, placement), step.Unset, step.Unset)
}

// Tag, PredefinedType.
func newColumn(guid, name string, placement int) (string, []step.Value) {
	return "IFCCOLUMN", append(productAttrs(guid, name, placement), step.Unset, step.Unset)
}

// Tag, PredefinedType.
func newPlate(guid, name string, placement int) (string, []step.Value) {
	return "IFCPLATE", append(productAttrs(guid, name, placement), step.Unset, step.Unset)
}

// Tag, NominalDiameter, NominalLength, PredefinedType.
func newMechanicalFastener(guid, name string, placement int) (string, []step.Value) {
	return "IFCMECHANICALFASTENER", append(productAttrs(guid, name, placement),
		step.Unset, step.Unset, step.Unset, step.Unset)
}

// Tag, PredefinedType.
func newProxy(guid, name string, placement int) (string, []step.Value) {
	return "IFCBUILDINGELEMENTPROXY", append(productAttrs(guid, name, placement), step.Unset, step.Unset)
}

var elementFactories = map[classify.Kind]elementFactory{
	classify.Beam:               newBeam,
	classify.Column:             newColumn,
	classify.Plate:              newPlate,
	classify.MechanicalFastener: newMechanicalFastener,
	classify.Proxy:              newProxy,
}
