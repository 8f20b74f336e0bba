// Package typeref decodes JVM type descriptors and generic signatures into
// the class types they mention, and maps internal class names to packages.
package typeref

import (
	"fmt"
	"strings"
)

// Ref is the internal (slash-delimited) name of a referenced class type.
// Array types never appear as a Ref; they are reduced to their element class.
type Ref string

// Package returns the dotted package name the referenced class belongs to.
func (r Ref) Package() string {
	return PackageOf(string(r))
}

// ClassName returns the dotted fully-qualified class name.
func (r Ref) ClassName() string {
	return ClassName(string(r))
}

// ClassName converts an internal name (java/lang/String) to its dotted form.
func ClassName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// PackageOf strips the last segment of an internal or dotted class name and
// returns the remaining prefix in dotted form. Classes without a separator
// belong to the unnamed package "".
func PackageOf(name string) string {
	pos := strings.LastIndexAny(name, "/.")
	if pos < 0 {
		return ""
	}
	return ClassName(name[:pos])
}

// SyntaxError reports a malformed descriptor or signature.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("typeref: %s at offset %d in %q", e.Msg, e.Offset, e.Input)
}

// decoder is a cursor over a descriptor or signature string.
type decoder struct {
	s   string
	pos int
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Input: d.s, Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) eof() bool {
	return d.pos >= len(d.s)
}

func (d *decoder) peek() byte {
	if d.eof() {
		return 0
	}
	return d.s[d.pos]
}

func (d *decoder) expect(c byte) error {
	if d.peek() != c {
		if d.eof() {
			return d.errorf("expected %q, got end of input", c)
		}
		return d.errorf("expected %q, got %q", c, d.s[d.pos])
	}
	d.pos++
	return nil
}

func (d *decoder) done() error {
	if !d.eof() {
		return d.errorf("unexpected trailing %q", d.s[d.pos:])
	}
	return nil
}

func isBaseType(c byte) bool {
	switch c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return true
	}
	return false
}
