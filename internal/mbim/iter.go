// internal/mbim/iter.go
package mbim

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type containerKind int

const (
	containerRoot containerKind = iota
	containerStruct
	containerArray
	containerDatabuf
)

// Iter walks a signature in lock-step with a cursor over a message's information buffer.
//
// Offsets inside a container are relative to its base. Arrays share the base
// of the container that holds them; structs and data buffers start a new one.
type Iter struct {
	cur   fragCursor
	sig   string
	kind  containerKind
	depth int

	base int // absolute offset of the container start
	pos  int // cursor, relative to base
	len  int // container length, relative to base

	nElem uint32 // arrays: elements left
	done  bool   // structs: row consumed
	err   error
}

func newRootIter(frags [][]byte, infoLen int, sig string) *Iter {
	return &Iter{cur: newFragCursor(frags), sig: sig, kind: containerRoot, len: infoLen}
}

// Err returns the error that stopped the iterator, if any.
func (it *Iter) Err() error { return it.err }

// Remaining returns the number of array elements not yet consumed.
func (it *Iter) Remaining() int { return int(it.nElem) }

// Signature returns the row signature this iterator decodes.
func (it *Iter) Signature() string { return it.sig }

// Next decodes one row into out: one element for arrays, the whole signature
// for structs, data buffers and the root. Returns false when the iterator is
// exhausted or the data does not match the signature; Err tells them apart.
//
// Outputs: *uint8 (y) *uint16 (q) *uint32 (u) *uint64 (t) *string (s),
// *[]byte for "<N>y", *Iter for arrays, and a signature string followed by
// *Iter for 'd'. A nil output skips the value.
func (it *Iter) Next(out ...any) bool {
	if it.err != nil {
		return false
	}
	if it.kind == containerArray {
		if it.nElem == 0 {
			return false
		}
	} else if it.done {
		return false
	}

	rest, err := it.walk(out)
	if err == nil && len(rest) != 0 {
		err = errors.Wrapf(ErrSignature, "%d unused outputs", len(rest))
	}
	if err != nil {
		it.err = err
		return false
	}

	if it.kind == containerArray {
		it.nElem--
	} else {
		it.done = true
	}
	return true
}

// Bytes consumes every remaining element of a byte array ("ay").
func (it *Iter) Bytes() ([]byte, bool) {
	if it.err != nil || it.kind != containerArray || it.sig != "y" {
		return nil, false
	}
	n := int(it.nElem)
	if it.pos+n > it.len {
		it.err = errors.Wrap(ErrMalformed, "byte array overruns container")
		return nil, false
	}
	b := make([]byte, n)
	if !it.cur.copyAt(it.base+it.pos, b) {
		it.err = errors.Wrap(ErrMalformed, "byte array outside message")
		return nil, false
	}
	it.pos += n
	it.nElem = 0
	return b, true
}

type iterFrame struct {
	iter *Iter
	sig  string
	i    int
}

// walk consumes one row of it.sig. Nested structs are tracked on an explicit
// stack bounded by MaxNesting.
func (it *Iter) walk(out []any) ([]any, error) {
	stack := make([]iterFrame, 0, MaxNesting)
	cur := iterFrame{iter: it, sig: it.sig}

	next := func() (any, error) {
		if len(out) == 0 {
			return nil, errors.Wrap(ErrSignature, "not enough outputs")
		}
		v := out[0]
		out = out[1:]
		return v, nil
	}

	for {
		if cur.i >= len(cur.sig) {
			if len(stack) == 0 {
				return out, nil
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			continue
		}

		tok := cur.sig[cur.i]
		end := signatureEnd(cur.sig, cur.i)
		if end < 0 {
			return out, errors.Wrapf(ErrSignature, "bad signature %q", cur.sig)
		}

		switch {
		case tok == '(':
			child, err := cur.iter.enterStruct(cur.sig[cur.i+1 : end])
			if err != nil {
				return out, err
			}
			cur.i = end + 1
			if len(stack) >= MaxNesting {
				return out, ErrNesting
			}
			stack = append(stack, cur)
			cur = iterFrame{iter: child, sig: child.sig}

		case tok == 'a':
			dst, err := next()
			if err != nil {
				return out, err
			}
			child, err := cur.iter.enterArray(cur.sig[cur.i+1 : end+1])
			if err != nil {
				return out, err
			}
			if err := assignIter(dst, child); err != nil {
				return out, err
			}
			cur.i = end + 1

		case tok == 'd':
			s, err := next()
			if err != nil {
				return out, err
			}
			sub, ok := s.(string)
			if !ok {
				return out, errors.Wrap(ErrSignature, "databuf needs a signature string")
			}
			dst, err := next()
			if err != nil {
				return out, err
			}
			child, err := cur.iter.enterDatabuf(sub)
			if err != nil {
				return out, err
			}
			if err := assignIter(dst, child); err != nil {
				return out, err
			}
			cur.i = end + 1

		case tok >= '0' && tok <= '9':
			n, _ := fixedCount(cur.sig[cur.i : end+1])
			dst, err := next()
			if err != nil {
				return out, err
			}
			if err := cur.iter.readFixed(n, dst); err != nil {
				return out, err
			}
			cur.i = end + 1

		case isBasic(tok):
			dst, err := next()
			if err != nil {
				return out, err
			}
			if err := cur.iter.readBasic(tok, dst); err != nil {
				return out, err
			}
			cur.i++

		default:
			return out, errors.Wrapf(ErrSignature, "unsupported token %q", tok)
		}
	}
}

func assignIter(dst any, child *Iter) error {
	switch p := dst.(type) {
	case nil:
		return nil
	case *Iter:
		*p = *child
		return nil
	}
	return errors.Wrapf(ErrSignature, "want *Iter, got %T", dst)
}

func (it *Iter) u32At(pos int) (uint32, error) {
	if pos < 0 || pos+4 > it.len {
		return 0, errors.Wrapf(ErrMalformed, "read at %d overruns container of %d", pos, it.len)
	}
	var w [4]byte
	if !it.cur.copyAt(it.base+pos, w[:]) {
		return 0, errors.Wrap(ErrMalformed, "read outside message")
	}
	return binary.LittleEndian.Uint32(w[:]), nil
}

func (it *Iter) readBasic(tok byte, dst any) error {
	pos := align(it.pos, alignment(tok))
	size := basicSize(tok)
	if pos+size > it.len {
		return errors.Wrapf(ErrMalformed, "%c at %d overruns container of %d", tok, pos, it.len)
	}

	var w [8]byte
	if !it.cur.copyAt(it.base+pos, w[:size]) {
		return errors.Wrap(ErrMalformed, "read outside message")
	}
	it.pos = pos + size

	switch tok {
	case 'y':
		return store(dst, w[0])
	case 'q':
		return store(dst, binary.LittleEndian.Uint16(w[:2]))
	case 'u':
		return store(dst, binary.LittleEndian.Uint32(w[:4]))
	case 't':
		return store(dst, binary.LittleEndian.Uint64(w[:8]))
	}

	off := int(binary.LittleEndian.Uint32(w[0:4]))
	n := int(binary.LittleEndian.Uint32(w[4:8]))
	if off+n > it.len {
		return errors.Wrapf(ErrMalformed, "string %d+%d overruns container of %d", off, n, it.len)
	}
	s := ""
	if n > 0 {
		raw, ok := it.cur.bytesAt(it.base+off, n)
		if !ok {
			return errors.Wrap(ErrMalformed, "string outside message")
		}
		var err error
		if s, err = decodeUTF16(raw); err != nil {
			return err
		}
	}
	return store(dst, s)
}

func store[T any](dst any, v T) error {
	if dst == nil {
		return nil
	}
	p, ok := dst.(*T)
	if !ok {
		return errors.Wrapf(ErrSignature, "want %T, got %T", p, dst)
	}
	*p = v
	return nil
}

func (it *Iter) readFixed(n int, dst any) error {
	if it.pos+n > it.len {
		return errors.Wrapf(ErrMalformed, "%d bytes at %d overrun container of %d", n, it.pos, it.len)
	}
	b := make([]byte, n)
	if !it.cur.copyAt(it.base+it.pos, b) {
		return errors.Wrap(ErrMalformed, "read outside message")
	}
	it.pos += n
	return store(dst, b)
}

func (it *Iter) child(kind containerKind, sig string) (*Iter, error) {
	if it.depth+1 > MaxNesting {
		return nil, ErrNesting
	}
	return &Iter{cur: it.cur, sig: sig, kind: kind, depth: it.depth + 1, base: it.base, len: it.len}, nil
}

// enterArray reads an array header. Arrays of fixed-size elements are
// (offset, count) with packed elements; all others are a count followed by
// one offset/length pair per element.
func (it *Iter) enterArray(elem string) (*Iter, error) {
	if it.kind == containerArray && it.nElem == 0 {
		return nil, errors.Wrap(ErrMalformed, "array exhausted")
	}
	child, err := it.child(containerArray, elem)
	if err != nil {
		return nil, err
	}

	pos := align(it.pos, 4)
	fixed := isFixedSize(elem)

	var offset uint32
	if fixed {
		if offset, err = it.u32At(pos); err != nil {
			return nil, err
		}
		pos += 4
	}
	count, err := it.u32At(pos)
	if err != nil {
		return nil, err
	}
	pos += 4
	child.nElem = count

	if fixed {
		child.pos = int(offset)
		it.pos = pos
		return child, nil
	}

	pairs := int(count) * 8
	if pos+pairs > it.len {
		return nil, errors.Wrapf(ErrMalformed, "%d element pairs overrun container", count)
	}
	child.pos = pos
	it.pos = pos + pairs
	return child, nil
}

// enterStruct follows an offset/length pair. Fixed-size nested structs are
// not implemented.
func (it *Iter) enterStruct(inner string) (*Iter, error) {
	if isFixedSize(inner) {
		return nil, errors.Wrapf(ErrUnsupported, "fixed-size struct (%s)", inner)
	}
	child, err := it.child(containerStruct, inner)
	if err != nil {
		return nil, err
	}

	pos := align(it.pos, 4)
	off, err := it.u32At(pos)
	if err != nil {
		return nil, err
	}
	n, err := it.u32At(pos + 4)
	if err != nil {
		return nil, err
	}
	it.pos = pos + 8

	if int(off)+int(n) > it.len {
		return nil, errors.Wrapf(ErrMalformed, "struct %d+%d overruns container of %d", off, n, it.len)
	}
	child.base = it.base + int(off)
	child.len = int(n)
	return child, nil
}

// enterDatabuf treats the rest of the enclosing struct as a trailing buffer
// described by sig, and consumes the struct to its end.
func (it *Iter) enterDatabuf(sig string) (*Iter, error) {
	if it.kind == containerArray {
		return nil, errors.Wrap(ErrSignature, "data buffer inside array")
	}
	child, err := it.child(containerDatabuf, sig)
	if err != nil {
		return nil, err
	}
	pos := align(it.pos, 4)
	if pos > it.len {
		return nil, errors.Wrap(ErrMalformed, "data buffer past container end")
	}
	child.base = it.base + pos
	child.len = it.len - pos
	it.pos = it.len
	return child, nil
}
