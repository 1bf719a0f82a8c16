// Package ifc builds IFC4 documents describing building elements as faceted
// boundary representations inside a Project/Site/Building/Storey hierarchy.
package ifc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/pkg/step"
)

// SpatialNode is one level of the spatial hierarchy.
type SpatialNode struct {
	Type     string
	Name     string
	GlobalID string
	// Ref is the id of the spatial instance.
	Ref int
	// Placement is the id of its IfcLocalPlacement (0 for the project).
	Placement int
	// Aggregation is the id of the IfcRelAggregates linking it to its
	// parent (0 for the project).
	Aggregation int
	Children    []*SpatialNode
}

// Document owns every instance of one IFC model. It is not safe for
// concurrent use.
type Document struct {
	opts       Options
	log        *zap.Logger
	classifier *classify.Classifier

	instances []*step.Instance

	origin   int // IfcAxis2Placement3D at the world origin
	context  int // IfcGeometricRepresentationContext
	units    int // IfcUnitAssignment
	project  *SpatialNode
	site     *SpatialNode
	building *SpatialNode
	storey   *SpatialNode

	elements []*Element
}

// NewDocument validates opts and creates the project, units, representation
// context and the Site/Building/Storey chain. A nil logger discards output.
func NewDocument(opts Options, log *zap.Logger) (*Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	d := &Document{
		opts:       opts,
		log:        log,
		classifier: opts.Classifier,
	}
	d.initialize()

	log.Debug("IFC document initialized",
		zap.String("project", opts.ProjectName),
		zap.String("storey", opts.StoreyName),
		zap.Float64("tolerance", opts.Tolerance),
		zap.Float64("precision", opts.Precision),
		zap.Int("instances", len(d.instances)))
	return d, nil
}

// add appends an instance and returns its id. Ids are dense and start at 1.
func (d *Document) add(entity string, attrs ...step.Value) int {
	id := len(d.instances) + 1
	d.instances = append(d.instances, &step.Instance{ID: id, Type: entity, Attrs: attrs})
	return id
}

func (d *Document) instance(id int) *step.Instance {
	return d.instances[id-1]
}

// truncate drops every instance with an id greater than mark.
func (d *Document) truncate(mark int) {
	for i := mark; i < len(d.instances); i++ {
		d.instances[i] = nil
	}
	d.instances = d.instances[:mark]
}

func (d *Document) initialize() {
	// Geometric context
	originPoint := d.add("IFCCARTESIANPOINT", step.Reals(0, 0, 0))
	d.origin = d.add("IFCAXIS2PLACEMENT3D", step.Ref(originPoint), step.Unset, step.Unset)
	d.context = d.add("IFCGEOMETRICREPRESENTATIONCONTEXT",
		step.Unset,
		step.String("Model"),
		step.Integer(3),
		step.Real(d.opts.Precision),
		step.Ref(d.origin),
		step.Unset,
	)

	// Units: millimetre from the metre base
	length := d.add("IFCSIUNIT", step.Star, step.Enum("LENGTHUNIT"), step.Enum("MILLI"), step.Enum("METRE"))
	d.units = d.add("IFCUNITASSIGNMENT", step.Refs(length))

	// Project
	d.project = &SpatialNode{Type: "IFCPROJECT", Name: d.opts.ProjectName, GlobalID: d.opts.IDs.Next()}
	d.project.Ref = d.add(d.project.Type,
		step.String(d.project.GlobalID),
		step.Unset,
		step.OptString(d.project.Name),
		step.Unset,
		step.Unset,
		step.Unset,
		step.Unset,
		step.Refs(d.context),
		step.Ref(d.units),
	)

	// Spatial hierarchy
	d.site = d.addSpatial(d.project, "IFCSITE", d.opts.SiteName,
		// LongName, CompositionType, RefLatitude, RefLongitude, RefElevation,
		// LandTitleNumber, SiteAddress
		step.Unset, step.Enum("ELEMENT"), step.Unset, step.Unset, step.Unset, step.Unset, step.Unset)
	d.building = d.addSpatial(d.site, "IFCBUILDING", d.opts.BuildingName,
		// LongName, CompositionType, ElevationOfRefHeight, ElevationOfTerrain,
		// BuildingAddress
		step.Unset, step.Enum("ELEMENT"), step.Unset, step.Unset, step.Unset)
	d.storey = d.addSpatial(d.building, "IFCBUILDINGSTOREY", d.opts.StoreyName,
		// LongName, CompositionType, Elevation
		step.Unset, step.Enum("ELEMENT"), step.Real(0))
}

// addSpatial creates a spatial structure element placed relative to its
// parent and aggregated into it.
func (d *Document) addSpatial(parent *SpatialNode, entity, name string, tail ...step.Value) *SpatialNode {
	node := &SpatialNode{Type: entity, Name: name, GlobalID: d.opts.IDs.Next()}

	relTo := step.Unset
	if parent.Placement != 0 {
		relTo = step.Ref(parent.Placement)
	}
	node.Placement = d.add("IFCLOCALPLACEMENT", relTo, step.Ref(d.origin))

	attrs := []step.Value{
		step.String(node.GlobalID),
		step.Unset,
		step.OptString(name),
		step.Unset,
		step.Unset,
		step.Ref(node.Placement),
		step.Unset,
	}
	node.Ref = d.add(entity, append(attrs, tail...)...)

	// RelatingObject, RelatedObjects
	node.Aggregation = d.add("IFCRELAGGREGATES",
		step.String(d.opts.IDs.Next()),
		step.Unset,
		step.Unset,
		step.Unset,
		step.Ref(parent.Ref),
		step.Refs(node.Ref),
	)
	parent.Children = append(parent.Children, node)
	return node
}

// Project returns the root of the spatial hierarchy.
func (d *Document) Project() *SpatialNode { return d.project }

// Site returns the single site.
func (d *Document) Site() *SpatialNode { return d.site }

// Building returns the single building.
func (d *Document) Building() *SpatialNode { return d.building }

// Storey returns the storey that contains every element.
func (d *Document) Storey() *SpatialNode { return d.storey }

// Context returns the id of the shared geometric representation context.
func (d *Document) Context() int { return d.context }

// Elements returns the elements in insertion order.
func (d *Document) Elements() []*Element {
	return append([]*Element(nil), d.elements...)
}

// Last returns the element inserted most recently, or nil.
func (d *Document) Last() *Element {
	if len(d.elements) == 0 {
		return nil
	}
	return d.elements[len(d.elements)-1]
}

// Len returns the number of elements.
func (d *Document) Len() int { return len(d.elements) }

// InstanceCount returns the number of entity instances.
func (d *Document) InstanceCount() int { return len(d.instances) }

// Stats summarizes the document content.
type Stats struct {
	Elements     int
	WithGeometry int
	Facets       int
	Instances    int
	ByKind       map[classify.Kind]int
}

// Stats returns element, facet and instance counts.
func (d *Document) Stats() Stats {
	s := Stats{
		Elements:  len(d.elements),
		Instances: len(d.instances),
		ByKind:    make(map[classify.Kind]int),
	}
	for _, e := range d.elements {
		s.ByKind[e.Kind]++
		s.Facets += len(e.Facets)
		if e.HasGeometry() {
			s.WithGeometry++
		}
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("%d elements (%d with geometry), %d facets, %d instances",
		s.Elements, s.WithGeometry, s.Facets, s.Instances)
}
