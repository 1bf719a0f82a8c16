package step

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	magic    = "ISO-10303-21;"
	trailer  = "END-ISO-10303-21;"
	hexDigit = "0123456789ABCDEF"
)

// HeaderInfo holds the fields of the three mandatory header entities.
type HeaderInfo struct {
	Description         []string
	ImplementationLevel string
	Name                string
	TimeStamp           string
	Author              []string
	Organization        []string
	PreprocessorVersion string
	OriginatingSystem   string
	Authorization       string
	Schemas             []string
}

func stringList(ss []string) List {
	if len(ss) == 0 {
		return List{String("")}
	}
	l := make(List, len(ss))
	for i, s := range ss {
		l[i] = String(s)
	}
	return l
}

// Instances converts the header fields to FILE_DESCRIPTION, FILE_NAME and
// FILE_SCHEMA entries.
func (h HeaderInfo) Instances() []*Instance {
	level := h.ImplementationLevel
	if level == "" {
		level = "2;1"
	}
	return []*Instance{
		{Type: "FILE_DESCRIPTION", Attrs: []Value{stringList(h.Description), String(level)}},
		{Type: "FILE_NAME", Attrs: []Value{
			String(h.Name),
			String(h.TimeStamp),
			stringList(h.Author),
			stringList(h.Organization),
			String(h.PreprocessorVersion),
			String(h.OriginatingSystem),
			String(h.Authorization),
		}},
		{Type: "FILE_SCHEMA", Attrs: []Value{stringList(h.Schemas)}},
	}
}

// Encoder writes an exchange file to an output stream.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes the complete file: magic, header section, data section and
// trailer. Nothing is flushed if an attribute cannot be encoded.
func (e *Encoder) Encode(f *File) error {
	var sb strings.Builder
	sb.WriteString(magic)
	sb.WriteString("\nHEADER;\n")
	for _, h := range f.Header {
		if err := writeRecord(&sb, h, false); err != nil {
			return err
		}
	}
	sb.WriteString("ENDSEC;\nDATA;\n")
	for _, in := range f.Instances {
		if err := writeRecord(&sb, in, true); err != nil {
			return err
		}
	}
	sb.WriteString("ENDSEC;\n")
	sb.WriteString(trailer)
	sb.WriteString("\n")

	if _, err := e.w.WriteString(sb.String()); err != nil {
		return err
	}
	return e.w.Flush()
}

// Encode writes f to w.
func Encode(w io.Writer, f *File) error {
	return NewEncoder(w).Encode(f)
}

func writeRecord(sb *strings.Builder, in *Instance, withID bool) error {
	if !validKeyword(in.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyword, in.Type)
	}
	if withID {
		sb.WriteByte('#')
		sb.WriteString(strconv.Itoa(in.ID))
		sb.WriteByte('=')
	}
	sb.WriteString(strings.ToUpper(in.Type))
	sb.WriteByte('(')
	for i, a := range in.Attrs {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := writeValue(sb, a); err != nil {
			return fmt.Errorf("#%d %s attribute %d: %w", in.ID, in.Type, i, err)
		}
	}
	sb.WriteString(");\n")
	return nil
}

func writeValue(sb *strings.Builder, v Value) error {
	switch x := v.(type) {
	case nil, Null:
		sb.WriteByte('$')
	case Derived:
		sb.WriteByte('*')
	case Ref:
		sb.WriteByte('#')
		sb.WriteString(strconv.Itoa(int(x)))
	case String:
		sb.WriteString(EncodeString(string(x)))
	case Real:
		s, err := FormatReal(float64(x))
		if err != nil {
			return err
		}
		sb.WriteString(s)
	case Integer:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case Enum:
		sb.WriteByte('.')
		sb.WriteString(strings.ToUpper(string(x)))
		sb.WriteByte('.')
	case Bool:
		if x {
			sb.WriteString(".T.")
		} else {
			sb.WriteString(".F.")
		}
	case List:
		sb.WriteByte('(')
		for i, e := range x {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeValue(sb, e); err != nil {
				return err
			}
		}
		sb.WriteByte(')')
	case Typed:
		if !validKeyword(x.Type) {
			return fmt.Errorf("%w: %q", ErrInvalidKeyword, x.Type)
		}
		sb.WriteString(strings.ToUpper(x.Type))
		sb.WriteByte('(')
		if err := writeValue(sb, x.Value); err != nil {
			return err
		}
		sb.WriteByte(')')
	default:
		return fmt.Errorf("%w: value %T", ErrUnsupported, v)
	}
	return nil
}

// FormatReal renders a real the way Part 21 requires: always with a decimal
// point, exponent form for very small or very large magnitudes.
func FormatReal(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidReal, v)
	}
	if v == 0 {
		return "0.", nil
	}
	abs := math.Abs(v)
	if abs >= 1e-4 && abs < 1e15 {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += "."
		}
		return s, nil
	}
	s := strconv.FormatFloat(v, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	return mant + "E" + exp, nil
}

// EncodeString quotes s as a Part 21 string literal. Apostrophes and
// backslashes are doubled; characters outside printable ASCII are written as
// \X2\ UTF-16 runs.
func EncodeString(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	var run []uint16
	flush := func() {
		if len(run) == 0 {
			return
		}
		sb.WriteString(`\X2\`)
		for _, u := range run {
			sb.WriteByte(hexDigit[u>>12&0xF])
			sb.WriteByte(hexDigit[u>>8&0xF])
			sb.WriteByte(hexDigit[u>>4&0xF])
			sb.WriteByte(hexDigit[u&0xF])
		}
		sb.WriteString(`\X0\`)
		run = run[:0]
	}
	for _, r := range s {
		if r >= 0x20 && r <= 0x7E {
			flush()
			switch r {
			case '\'':
				sb.WriteString("''")
			case '\\':
				sb.WriteString(`\\`)
			default:
				sb.WriteRune(r)
			}
			continue
		}
		run = utf16.AppendRune(run, r)
	}
	flush()
	sb.WriteByte('\'')
	return sb.String()
}

func validKeyword(k string) bool {
	if k == "" {
		return false
	}
	for i, r := range k {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
