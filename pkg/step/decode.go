package step

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Parse reads a complete exchange file.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// ParseBytes parses an exchange file held in memory.
func ParseBytes(data []byte) (*File, error) {
	p := &parser{data: data}
	return p.file()
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) errorf(base error, format string, args ...any) error {
	line := 1 + bytes.Count(p.data[:min(p.pos, len(p.data))], []byte{'\n'})
	return fmt.Errorf("%w: line %d: %s", base, line, fmt.Sprintf(format, args...))
}

// skip advances over whitespace and /* */ comments.
func (p *parser) skip() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '/' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '*':
			end := bytes.Index(p.data[p.pos+2:], []byte("*/"))
			if end < 0 {
				p.pos = len(p.data)
				return
			}
			p.pos += end + 4
		default:
			return
		}
	}
}

func (p *parser) peek() (byte, bool) {
	p.skip()
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *parser) expect(c byte) error {
	got, ok := p.peek()
	if !ok {
		return p.errorf(ErrUnexpectedEOF, "expected %q", c)
	}
	if got != c {
		return p.errorf(ErrSyntax, "expected %q, got %q", c, got)
	}
	p.pos++
	return nil
}

// keyword reads an identifier; '-' is accepted so section markers such as
// END-ISO-10303-21 read as one token.
func (p *parser) keyword() string {
	p.skip()
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '_' || c == '-' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	return string(p.data[start:p.pos])
}

func (p *parser) section(name string) error {
	if kw := p.keyword(); kw != name {
		return p.errorf(ErrSyntax, "expected %s, got %q", name, kw)
	}
	return p.expect(';')
}

func (p *parser) file() (*File, error) {
	p.skip()
	if !bytes.HasPrefix(p.data[p.pos:], []byte(magic)) {
		return nil, ErrInvalidMagic
	}
	p.pos += len(magic)

	f := &File{}
	if err := p.section("HEADER"); err != nil {
		return nil, err
	}
	for {
		save := p.pos
		kw := p.keyword()
		if kw == "ENDSEC" {
			if err := p.expect(';'); err != nil {
				return nil, err
			}
			break
		}
		if kw == "" {
			p.pos = save
			return nil, p.errorf(ErrSyntax, "expected header entity")
		}
		attrs, err := p.params()
		if err != nil {
			return nil, err
		}
		if err := p.expect(';'); err != nil {
			return nil, err
		}
		f.Header = append(f.Header, &Instance{Type: kw, Attrs: attrs})
	}

	seen := make(map[int]bool)
	for {
		kw := p.keyword()
		switch kw {
		case "END-ISO-10303-21":
			if err := p.expect(';'); err != nil {
				return nil, err
			}
			return f, nil
		case "DATA":
			if err := p.expect(';'); err != nil {
				return nil, err
			}
			if err := p.dataSection(f, seen); err != nil {
				return nil, err
			}
		case "":
			if _, ok := p.peek(); !ok {
				return nil, p.errorf(ErrUnexpectedEOF, "missing %s", trailer)
			}
			return nil, p.errorf(ErrSyntax, "unexpected input")
		default:
			return nil, p.errorf(ErrSyntax, "unexpected section %q", kw)
		}
	}
}

func (p *parser) dataSection(f *File, seen map[int]bool) error {
	for {
		c, ok := p.peek()
		if !ok {
			return p.errorf(ErrUnexpectedEOF, "unterminated DATA section")
		}
		if c != '#' {
			if kw := p.keyword(); kw != "ENDSEC" {
				return p.errorf(ErrSyntax, "expected instance or ENDSEC, got %q", kw)
			}
			return p.expect(';')
		}
		p.pos++
		id, err := p.integer()
		if err != nil {
			return err
		}
		if seen[int(id)] {
			return p.errorf(ErrDuplicateID, "#%d", id)
		}
		seen[int(id)] = true
		if err := p.expect('='); err != nil {
			return err
		}
		if c, _ := p.peek(); c == '(' {
			return p.errorf(ErrUnsupported, "complex instance #%d", id)
		}
		kw := p.keyword()
		if kw == "" {
			return p.errorf(ErrSyntax, "missing entity keyword for #%d", id)
		}
		attrs, err := p.params()
		if err != nil {
			return err
		}
		if err := p.expect(';'); err != nil {
			return err
		}
		f.Instances = append(f.Instances, &Instance{ID: int(id), Type: strings.ToUpper(kw), Attrs: attrs})
	}
}

func (p *parser) integer() (int64, error) {
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf(ErrSyntax, "expected integer")
	}
	return strconv.ParseInt(string(p.data[start:p.pos]), 10, 64)
}

// params reads "(" value {"," value} ")".
func (p *parser) params() ([]Value, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var out []Value
	if c, ok := p.peek(); ok && c == ')' {
		p.pos++
		return []Value{}, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		c, ok := p.peek()
		if !ok {
			return nil, p.errorf(ErrUnexpectedEOF, "unterminated parameter list")
		}
		p.pos++
		switch c {
		case ',':
			continue
		case ')':
			return out, nil
		default:
			return nil, p.errorf(ErrSyntax, "unexpected %q in parameter list", c)
		}
	}
}

func (p *parser) value() (Value, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errorf(ErrUnexpectedEOF, "expected value")
	}
	switch {
	case c == '$':
		p.pos++
		return Null{}, nil
	case c == '*':
		p.pos++
		return Derived{}, nil
	case c == '#':
		p.pos++
		id, err := p.integer()
		if err != nil {
			return nil, err
		}
		return Ref(id), nil
	case c == '\'':
		return p.str()
	case c == '.':
		return p.enum()
	case c == '(':
		l, err := p.params()
		if err != nil {
			return nil, err
		}
		return List(l), nil
	case c == '"':
		return nil, p.errorf(ErrUnsupported, "binary literal")
	case c == '+' || c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	case c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
		kw := p.keyword()
		if err := p.expect('('); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return Typed{Type: strings.ToUpper(kw), Value: v}, nil
	default:
		return nil, p.errorf(ErrSyntax, "unexpected %q", c)
	}
}

func (p *parser) enum() (Value, error) {
	p.pos++
	end := bytes.IndexByte(p.data[p.pos:], '.')
	if end < 0 {
		return nil, p.errorf(ErrUnexpectedEOF, "unterminated enumeration")
	}
	name := string(p.data[p.pos : p.pos+end])
	p.pos += end + 1
	switch name {
	case "T":
		return Bool(true), nil
	case "F":
		return Bool(false), nil
	}
	return Enum(name), nil
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.data[p.pos]; c == '+' || c == '-' {
		p.pos++
	}
	isReal := false
scan:
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' || c == 'E' || c == 'e':
			isReal = true
		case (c == '+' || c == '-') && (p.data[p.pos-1] == 'E' || p.data[p.pos-1] == 'e'):
		default:
			break scan
		}
		p.pos++
	}
	text := string(p.data[start:p.pos])
	if isReal {
		// Part 21 allows a bare point before the exponent ("1.E-05").
		v, err := strconv.ParseFloat(strings.Replace(text, ".E", ".0E", 1), 64)
		if err != nil {
			return nil, p.errorf(ErrSyntax, "bad real %q", text)
		}
		return Real(v), nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorf(ErrSyntax, "bad integer %q", text)
	}
	return Integer(v), nil
}

// str reads a quoted string literal and decodes its control directives.
func (p *parser) str() (Value, error) {
	p.pos++
	var raw []byte
	for {
		if p.pos >= len(p.data) {
			return nil, p.errorf(ErrUnexpectedEOF, "unterminated string")
		}
		c := p.data[p.pos]
		p.pos++
		if c == '\'' {
			if p.pos < len(p.data) && p.data[p.pos] == '\'' {
				raw = append(raw, '\'')
				p.pos++
				continue
			}
			break
		}
		raw = append(raw, c)
	}
	s, err := DecodeString(string(raw))
	if err != nil {
		return nil, p.errorf(ErrSyntax, "%v", err)
	}
	return String(s), nil
}

// DecodeString resolves the \\, \X\, \X2\ and \X4\ directives in the body of
// a string literal (without the surrounding quotes; doubled apostrophes
// already collapsed).
func DecodeString(body string) (string, error) {
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var sb strings.Builder
	for i := 0; i < len(body); {
		if body[i] != '\\' {
			sb.WriteByte(body[i])
			i++
			continue
		}
		rest := body[i:]
		switch {
		case strings.HasPrefix(rest, `\\`):
			sb.WriteByte('\\')
			i += 2
		case strings.HasPrefix(rest, `\X2\`), strings.HasPrefix(rest, `\X4\`):
			width := 4
			if rest[2] == '4' {
				width = 8
			}
			end := strings.Index(rest[4:], `\X0\`)
			if end < 0 || end%width != 0 {
				return "", fmt.Errorf("unterminated %s directive", rest[:4])
			}
			hex := rest[4 : 4+end]
			var units []uint16
			for j := 0; j < len(hex); j += width {
				v, err := strconv.ParseUint(hex[j:j+width], 16, 32)
				if err != nil {
					return "", fmt.Errorf("bad hex in %s directive: %w", rest[:4], err)
				}
				if width == 8 {
					sb.WriteRune(rune(v))
				} else {
					units = append(units, uint16(v))
				}
			}
			sb.WriteString(string(utf16.Decode(units)))
			i += 4 + end + 4
		case strings.HasPrefix(rest, `\X\`) && len(rest) >= 5:
			v, err := strconv.ParseUint(rest[3:5], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\X\\ directive: %w", err)
			}
			sb.WriteRune(rune(v))
			i += 5
		case strings.HasPrefix(rest, `\S\`) && len(rest) >= 4:
			sb.WriteRune(rune(rest[3]) + 0x80)
			i += 4
		default:
			// Unknown directive (e.g. \P..\ code page switches): keep as text.
			sb.WriteByte('\\')
			i++
		}
	}
	return sb.String(), nil
}
