package step

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func sampleFile() *File {
	return &File{
		Header: HeaderInfo{
			Description: []string{"ViewDefinition [ReferenceView]"},
			Name:        "test.ifc",
			TimeStamp:   "2026-01-02T03:04:05",
			Schemas:     []string{"IFC4"},
		}.Instances(),
		Instances: []*Instance{
			{ID: 1, Type: "IFCCARTESIANPOINT", Attrs: []Value{Reals(0, 0.5, -1200)}},
			{ID: 2, Type: "IFCAXIS2PLACEMENT3D", Attrs: []Value{Ref(1), Unset, Unset}},
			{ID: 3, Type: "IFCGEOMETRICREPRESENTATIONCONTEXT", Attrs: []Value{
				Unset, String("Model"), Integer(3), Real(1e-5), Ref(2), Unset,
			}},
			{ID: 4, Type: "IFCSIUNIT", Attrs: []Value{Star, Enum("LENGTHUNIT"), Enum("MILLI"), Enum("METRE")}},
			{ID: 5, Type: "IFCFACEOUTERBOUND", Attrs: []Value{Ref(1), Bool(true)}},
			{ID: 6, Type: "IFCPROPERTYSINGLEVALUE", Attrs: []Value{
				String("Designer's note \\ Größe"), Unset, Typed{"IFCLABEL", String("x")}, Unset,
			}},
		},
	}
}

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleFile()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"ISO-10303-21;\nHEADER;\n",
		"FILE_DESCRIPTION(('ViewDefinition [ReferenceView]'),'2;1');",
		"FILE_SCHEMA(('IFC4'));",
		"ENDSEC;\nDATA;\n",
		"#1=IFCCARTESIANPOINT((0.,0.5,-1200.));",
		"#2=IFCAXIS2PLACEMENT3D(#1,$,$);",
		"#3=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#2,$);",
		"#4=IFCSIUNIT(*,.LENGTHUNIT.,.MILLI.,.METRE.);",
		"#5=IFCFACEOUTERBOUND(#1,.T.);",
		`'Designer''s note \\ Gr\X2\00F600DF\X0\e'`,
		"IFCLABEL('x')",
		"END-ISO-10303-21;\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleFile()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if got := f.Schemas(); len(got) != 1 || got[0] != "IFC4" {
		t.Errorf("Schemas() = %v", got)
	}
	if len(f.Instances) != 6 {
		t.Fatalf("expected 6 instances, got %d", len(f.Instances))
	}

	pt := f.Get(1)
	coords, ok := pt.Attr(0).(List)
	if !ok || len(coords) != 3 || coords[2] != Real(-1200) {
		t.Errorf("point coordinates = %#v", pt.Attr(0))
	}
	ctx := f.Get(3)
	if ctx.Attr(3) != Real(1e-5) {
		t.Errorf("precision = %#v, want 1e-5", ctx.Attr(3))
	}
	if ctx.Attr(2) != Integer(3) {
		t.Errorf("dimension = %#v", ctx.Attr(2))
	}
	if f.Get(4).Attr(0) != Star {
		t.Errorf("derived attribute = %#v", f.Get(4).Attr(0))
	}
	if f.Get(5).Attr(1) != Bool(true) {
		t.Errorf("orientation = %#v", f.Get(5).Attr(1))
	}
	if got := f.Get(6).Attr(0); got != String("Designer's note \\ Größe") {
		t.Errorf("string = %#v", got)
	}
	if got := f.Get(6).Attr(2); got != (Typed{"IFCLABEL", String("x")}) {
		t.Errorf("typed = %#v", got)
	}
}

func TestFormatReal(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0."},
		{1, "1."},
		{-1200, "-1200."},
		{12.5, "12.5"},
		{1e-5, "1.E-05"},
		{2.5e-7, "2.5E-07"},
		{1e20, "1.E+20"},
	}
	for _, tt := range tests {
		got, err := FormatReal(tt.in)
		if err != nil {
			t.Fatalf("FormatReal(%v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("FormatReal(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := FormatReal(math.NaN()); !errors.Is(err, ErrInvalidReal) {
		t.Errorf("NaN: expected ErrInvalidReal, got %v", err)
	}
}

func TestEncodeRejectsNonFinite(t *testing.T) {
	f := &File{Instances: []*Instance{{ID: 1, Type: "IFCCARTESIANPOINT", Attrs: []Value{Reals(math.Inf(1), 0, 0)}}}}
	var buf bytes.Buffer
	if err := Encode(&buf, f); !errors.Is(err, ErrInvalidReal) {
		t.Fatalf("expected ErrInvalidReal, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on encoding failure, got %d bytes", buf.Len())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no magic", "HEADER;", ErrInvalidMagic},
		{"truncated", "ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\n#1=IFCX(", ErrUnexpectedEOF},
		{"duplicate id", "ISO-10303-21;HEADER;ENDSEC;DATA;#1=A();#1=B();ENDSEC;END-ISO-10303-21;", ErrDuplicateID},
		{"complex instance", "ISO-10303-21;HEADER;ENDSEC;DATA;#1=(A()B());ENDSEC;END-ISO-10303-21;", ErrUnsupported},
		{"missing trailer", "ISO-10303-21;HEADER;ENDSEC;DATA;ENDSEC;", ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCommentsAndWhitespace(t *testing.T) {
	data := `ISO-10303-21;
/* generated */
HEADER;
FILE_SCHEMA(('IFC4'));
ENDSEC;
DATA;
#10 = IFCCARTESIANPOINT ( ( 1. , 2.E+00 , -3 ) ) ;
#11=IFCPOLYLOOP((#10));
ENDSEC;
END-ISO-10303-21;
`
	f, err := ParseBytes([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	coords := f.Get(10).Attr(0).(List)
	if coords[0] != Real(1) || coords[1] != Real(2) || coords[2] != Integer(-3) {
		t.Errorf("coords = %#v", coords)
	}
	if refs := f.Get(11).References(); len(refs) != 1 || refs[0] != 10 {
		t.Errorf("References() = %v", refs)
	}
}

func TestValidateDanglingRef(t *testing.T) {
	f := &File{Instances: []*Instance{{ID: 1, Type: "IFCPOLYLOOP", Attrs: []Value{Refs(2, 3)}}}}
	if err := f.Validate(); !errors.Is(err, ErrDanglingRef) {
		t.Errorf("expected ErrDanglingRef, got %v", err)
	}
}

func TestCountByType(t *testing.T) {
	f := sampleFile()
	f.Instances = append(f.Instances, &Instance{ID: 7, Type: "IFCCARTESIANPOINT", Attrs: []Value{Reals(1, 1, 1)}})
	counts := f.CountByType()
	if counts[0].Type != "IFCCARTESIANPOINT" || counts[0].Count != 2 {
		t.Errorf("CountByType()[0] = %+v", counts[0])
	}
}
