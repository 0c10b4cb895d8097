// internal/mbim/builder.go
package mbim

import (
	"encoding/binary"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// fixup marks an offset field in a static buffer that points into the data
// buffer. The final value is only known once the static buffer stops growing.
type fixup struct {
	spos int // position of the u32 offset in sbuf
	dpos int // target position in dbuf
}

type container struct {
	kind   containerKind
	sig    string // expected tokens; empty means unchecked
	sigPos int

	sbuf      []byte // fixed-size fields and offset/length placeholders
	dbuf      []byte // strings, nested structs, array payloads
	fixups    []fixup
	dataAlign int
	trailing  bool // a data buffer closed the static area

	// arrays
	fixed     bool
	elemAlign int
	nElem     uint32
	abuf      []byte   // fixed-size elements, packed
	elems     [][]byte // variable-size elements, one blob each
}

func newContainer(kind containerKind, sig string) *container {
	c := &container{kind: kind, sig: sig, dataAlign: 4}
	if kind == containerArray {
		c.fixed = isFixedSize(sig)
		c.elemAlign = 1
		if len(sig) > 0 {
			if a := alignment(sig[0]); a > 0 {
				c.elemAlign = a
			}
		}
	}
	return c
}

// expect advances the container signature past tok. Array signatures wrap
// around at each element boundary.
func (c *container) expect(tok string) error {
	if c.sig == "" {
		return nil
	}
	if c.kind == containerArray && c.sigPos >= len(c.sig) {
		c.sigPos = 0
	}
	if !strings.HasPrefix(c.sig[c.sigPos:], tok) {
		return errors.Wrapf(ErrSignature, "got %q, signature %q at %d", tok, c.sig, c.sigPos)
	}
	c.sigPos += len(tok)
	return nil
}

func (c *container) complete() bool {
	if c.kind == containerArray {
		return c.sigPos == 0 || c.sigPos == len(c.sig)
	}
	return c.sig == "" || c.sigPos == len(c.sig)
}

func pad(b []byte, a int) []byte {
	for len(b) < align(len(b), a) {
		b = append(b, 0)
	}
	return b
}

// putOL records an offset/length pair in sbuf for blob, which goes to dbuf.
func (c *container) putOL(blob []byte) {
	c.sbuf = pad(c.sbuf, 4)
	spos := len(c.sbuf)
	var pair [8]byte
	binary.LittleEndian.PutUint32(pair[4:], uint32(len(blob)))
	c.sbuf = append(c.sbuf, pair[:]...)
	if len(blob) == 0 {
		return
	}
	c.dbuf = pad(c.dbuf, 4)
	c.fixups = append(c.fixups, fixup{spos: spos, dpos: len(c.dbuf)})
	c.dbuf = append(c.dbuf, blob...)
}

// flatten lays out sbuf followed by dbuf and resolves pending offsets.
// Returns the blob and the start of its data area.
func (c *container) flatten() ([]byte, int) {
	dataStart := len(c.sbuf)
	if len(c.dbuf) > 0 {
		dataStart = align(dataStart, c.dataAlign)
	}
	out := make([]byte, dataStart, dataStart+len(c.dbuf))
	copy(out, c.sbuf)
	for _, f := range c.fixups {
		binary.LittleEndian.PutUint32(out[f.spos:], uint32(dataStart+f.dpos))
	}
	return append(out, c.dbuf...), dataStart
}

func appendFixed(buf []byte, tok byte, v uint64) []byte {
	buf = pad(buf, alignment(tok))
	switch tok {
	case 'y':
		return append(buf, byte(v))
	case 'q':
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case 'u':
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return binary.LittleEndian.AppendUint64(buf, v)
}

// Builder assembles the information buffer of one message. Calls must
// mirror the message signature; a builder finalizes at most once.
type Builder struct {
	msg       *Message
	stack     []*container
	finalized bool
}

// NewBuilder starts building into an unsealed message.
func NewBuilder(m *Message) (*Builder, error) {
	if m.sealed {
		return nil, ErrSealed
	}
	return &Builder{msg: m, stack: []*container{newContainer(containerRoot, "")}}, nil
}

func (b *Builder) top() *container { return b.stack[len(b.stack)-1] }

func (b *Builder) push(c *container) error {
	if len(b.stack) > MaxNesting {
		return ErrNesting
	}
	b.stack = append(b.stack, c)
	return nil
}

func (b *Builder) pop(kind containerKind) (*container, error) {
	c := b.top()
	if len(b.stack) == 1 || c.kind != kind {
		return nil, errors.Wrap(ErrSignature, "leaving a container that is not open")
	}
	if !c.complete() {
		return nil, errors.Wrapf(ErrSignature, "container %q left incomplete", c.sig)
	}
	b.stack = b.stack[:len(b.stack)-1]
	return c, nil
}

func (b *Builder) writable() (*container, error) {
	if b.finalized {
		return nil, ErrSealed
	}
	c := b.top()
	if c.trailing {
		return nil, errors.Wrap(ErrSignature, "field after data buffer")
	}
	return c, nil
}

// AppendBasic appends one y/q/u/t/s value. Integers are written little-endian
// at their natural alignment; strings are stored UTF-16LE in the data area and
// referenced by an offset/length pair. A nil string encodes as (0, 0).
func (b *Builder) AppendBasic(tok byte, v any) error {
	c, err := b.writable()
	if err != nil {
		return err
	}
	if !isBasic(tok) {
		return errors.Wrapf(ErrSignature, "%q is not a basic type", tok)
	}
	if err := c.expect(string(tok)); err != nil {
		return err
	}

	if tok == 's' {
		s, err := toString(v)
		if err != nil {
			return err
		}
		u16, err := encodeUTF16(s)
		if err != nil {
			return err
		}
		if c.kind == containerArray {
			c.elems = append(c.elems, u16)
			c.nElem++
			return nil
		}
		c.putOL(u16)
		return nil
	}

	n, err := toUint(v, basicSize(tok)*8)
	if err != nil {
		return err
	}
	if c.kind == containerArray {
		c.abuf = appendFixed(c.abuf, tok, n)
		c.nElem++
		return nil
	}
	c.sbuf = appendFixed(c.sbuf, tok, n)
	return nil
}

// AppendBytes appends raw bytes: the payload of an "ay" array, one "<N>y"
// array element, or a "<N>y" field of a struct.
func (b *Builder) AppendBytes(data []byte) error {
	return b.appendBytes(-1, data)
}

func (b *Builder) appendBytes(n int, data []byte) error {
	c, err := b.writable()
	if err != nil {
		return err
	}

	if c.kind == containerArray && c.sig == "y" {
		c.abuf = append(c.abuf, data...)
		c.nElem += uint32(len(data))
		return nil
	}

	if c.sig != "" {
		if c.kind == containerArray && c.sigPos >= len(c.sig) {
			c.sigPos = 0
		}
		end := signatureEnd(c.sig, c.sigPos)
		if end < 0 {
			return errors.Wrapf(ErrSignature, "no fixed array expected in %q", c.sig)
		}
		want, ok := fixedCount(c.sig[c.sigPos : end+1])
		if !ok {
			return errors.Wrapf(ErrSignature, "no fixed array expected in %q", c.sig)
		}
		if n >= 0 && n != want {
			return errors.Wrapf(ErrSignature, "fixed array of %d, signature says %d", n, want)
		}
		n = want
		if err := c.expect(c.sig[c.sigPos : end+1]); err != nil {
			return err
		}
	}
	if n >= 0 && len(data) != n {
		return errors.Wrapf(ErrSignature, "fixed array needs %d bytes, got %d", n, len(data))
	}

	if c.kind == containerArray {
		c.abuf = append(c.abuf, data...)
		c.nElem++
		return nil
	}
	c.sbuf = append(c.sbuf, data...)
	return nil
}

// EnterStruct opens a nested struct referenced by an offset/length pair.
// Fixed-size nested structs are not implemented.
func (b *Builder) EnterStruct(inner string) error {
	c, err := b.writable()
	if err != nil {
		return err
	}
	if isFixedSize(inner) {
		return errors.Wrapf(ErrUnsupported, "fixed-size struct (%s)", inner)
	}
	if err := c.expect("(" + inner + ")"); err != nil {
		return err
	}
	return b.push(newContainer(containerStruct, inner))
}

// LeaveStruct closes the current struct and hands its blob to the parent.
func (b *Builder) LeaveStruct() error {
	c, err := b.pop(containerStruct)
	if err != nil {
		return err
	}
	blob, _ := c.flatten()
	parent := b.top()
	if parent.kind == containerArray {
		parent.elems = append(parent.elems, blob)
		parent.nElem++
		return nil
	}
	parent.putOL(blob)
	return nil
}

// EnterArray opens an array whose elements follow elem.
func (b *Builder) EnterArray(elem string) error {
	c, err := b.writable()
	if err != nil {
		return err
	}
	if c.kind == containerArray {
		return errors.Wrap(ErrUnsupported, "array of arrays")
	}
	if end := signatureEnd(elem, 0); end != len(elem)-1 {
		return errors.Wrapf(ErrSignature, "bad array element %q", elem)
	}
	if err := c.expect("a" + elem); err != nil {
		return err
	}
	return b.push(newContainer(containerArray, elem))
}

// LeaveArray closes the current array. Fixed-size elements become an
// (offset, count) header with the packed payload in the data area; other
// elements become a count plus one offset/length pair per element.
func (b *Builder) LeaveArray() error {
	c, err := b.pop(containerArray)
	if err != nil {
		return err
	}
	parent := b.top()
	parent.sbuf = pad(parent.sbuf, 4)

	if c.fixed {
		spos := len(parent.sbuf)
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[4:], c.nElem)
		parent.sbuf = append(parent.sbuf, hdr[:]...)
		if len(c.abuf) == 0 {
			return nil
		}
		a := 4
		if c.elemAlign > a {
			a = c.elemAlign
		}
		if a > parent.dataAlign {
			parent.dataAlign = a
		}
		parent.dbuf = pad(parent.dbuf, a)
		parent.fixups = append(parent.fixups, fixup{spos: spos, dpos: len(parent.dbuf)})
		parent.dbuf = append(parent.dbuf, c.abuf...)
		return nil
	}

	parent.sbuf = binary.LittleEndian.AppendUint32(parent.sbuf, c.nElem)
	for _, e := range c.elems {
		parent.putOL(e)
	}
	return nil
}

// EnterDatabuf opens a trailing raw buffer laid out per sig. Nothing may be
// appended to the enclosing struct after it.
func (b *Builder) EnterDatabuf(sig string) error {
	c, err := b.writable()
	if err != nil {
		return err
	}
	if c.kind == containerArray {
		return errors.Wrap(ErrSignature, "data buffer inside array")
	}
	if err := c.expect("d"); err != nil {
		return err
	}
	return b.push(newContainer(containerDatabuf, sig))
}

// LeaveDatabuf closes the data buffer and appends it inline.
func (b *Builder) LeaveDatabuf() error {
	c, err := b.pop(containerDatabuf)
	if err != nil {
		return err
	}
	blob, _ := c.flatten()
	parent := b.top()
	parent.sbuf = append(pad(parent.sbuf, 4), blob...)
	parent.trailing = true
	return nil
}

// Finalize seals the message. Only legal with every container closed.
func (b *Builder) Finalize() error {
	if b.finalized {
		return ErrSealed
	}
	if len(b.stack) != 1 {
		return errors.Wrapf(ErrSignature, "%d containers still open", len(b.stack)-1)
	}
	blob, dataStart := b.stack[0].flatten()
	frags := [][]byte{blob[:dataStart]}
	if dataStart < len(blob) {
		frags = append(frags, blob[dataStart:])
	}
	b.msg.seal(frags)
	b.finalized = true
	return nil
}

// appendArgs walks sig consuming args and returns what is left.
//
// Arrays take an element count followed by count flattened elements; "ay"
// also accepts a single []byte. 'd' takes a signature string followed by
// the values for it.
func (b *Builder) appendArgs(sig string, args []any) ([]any, error) {
	take := func() (any, error) {
		if len(args) == 0 {
			return nil, errors.Wrap(ErrSignature, "not enough arguments")
		}
		v := args[0]
		args = args[1:]
		return v, nil
	}

	for i := 0; i < len(sig); {
		end := signatureEnd(sig, i)
		if end < 0 {
			return args, errors.Wrapf(ErrSignature, "bad signature %q", sig)
		}
		tok := sig[i]

		switch {
		case isBasic(tok):
			v, err := take()
			if err != nil {
				return args, err
			}
			if err := b.AppendBasic(tok, v); err != nil {
				return args, err
			}

		case tok >= '0' && tok <= '9':
			n, _ := fixedCount(sig[i : end+1])
			v, err := take()
			if err != nil {
				return args, err
			}
			data, ok := v.([]byte)
			if !ok {
				return args, errors.Wrapf(ErrSignature, "want []byte for %q, got %T", sig[i:end+1], v)
			}
			if err := b.appendBytes(n, data); err != nil {
				return args, err
			}

		case tok == '(':
			inner := sig[i+1 : end]
			if err := b.EnterStruct(inner); err != nil {
				return args, err
			}
			var err error
			if args, err = b.appendArgs(inner, args); err != nil {
				return args, err
			}
			if err := b.LeaveStruct(); err != nil {
				return args, err
			}

		case tok == 'a':
			elem := sig[i+1 : end+1]
			if err := b.EnterArray(elem); err != nil {
				return args, err
			}
			v, err := take()
			if err != nil {
				return args, err
			}
			if data, ok := v.([]byte); ok && elem == "y" {
				if err := b.AppendBytes(data); err != nil {
					return args, err
				}
			} else {
				count, err := toUint(v, 32)
				if err != nil {
					return args, err
				}
				for k := uint64(0); k < count; k++ {
					if args, err = b.appendArgs(elem, args); err != nil {
						return args, err
					}
				}
			}
			if err := b.LeaveArray(); err != nil {
				return args, err
			}

		case tok == 'd':
			v, err := take()
			if err != nil {
				return args, err
			}
			sub, ok := v.(string)
			if !ok {
				return args, errors.Wrapf(ErrSignature, "want databuf signature, got %T", v)
			}
			if err := b.EnterDatabuf(sub); err != nil {
				return args, err
			}
			if args, err = b.appendArgs(sub, args); err != nil {
				return args, err
			}
			if err := b.LeaveDatabuf(); err != nil {
				return args, err
			}

		default:
			return args, errors.Wrapf(ErrSignature, "unsupported token %q", tok)
		}

		i = end + 1
	}
	return args, nil
}

func toUint(v any, bits int) (uint64, error) {
	rv := reflect.ValueOf(v)
	var n uint64
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n = rv.Uint()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return 0, errors.Wrapf(ErrSignature, "negative value %d", i)
		}
		n = uint64(i)
	default:
		return 0, errors.Wrapf(ErrSignature, "want integer, got %T", v)
	}
	if bits < 64 && n >= 1<<uint(bits) {
		return 0, errors.Wrapf(ErrSignature, "value %d overflows %d bits", n, bits)
	}
	return n, nil
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case *string:
		if s == nil {
			return "", nil
		}
		return *s, nil
	}
	return "", errors.Wrapf(ErrSignature, "want string, got %T", v)
}
