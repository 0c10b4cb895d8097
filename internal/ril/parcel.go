// internal/ril/parcel.go
package ril

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

var ErrParcel = errors.New("ril: malformed parcel")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Parcel builds a RIL request body: little-endian int32 words and
// length-prefixed, NUL-terminated UTF-16 strings padded to 4 bytes.
type Parcel struct {
	buf []byte
}

func (p *Parcel) PutInt32(v int32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(v))
}

// PutString writes s; the empty string is written as a null string.
func (p *Parcel) PutString(s string) {
	if s == "" {
		p.PutInt32(-1)
		return
	}
	u16, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		u16 = nil
	}
	p.PutInt32(int32(len(u16) / 2))
	p.buf = append(p.buf, u16...)
	p.buf = append(p.buf, 0, 0)
	for len(p.buf)%4 != 0 {
		p.buf = append(p.buf, 0)
	}
}

// PutStrings writes a counted string list.
func (p *Parcel) PutStrings(ss ...string) {
	p.PutInt32(int32(len(ss)))
	for _, s := range ss {
		p.PutString(s)
	}
}

// PutInts writes a counted int32 list.
func (p *Parcel) PutInts(vs ...int32) {
	p.PutInt32(int32(len(vs)))
	for _, v := range vs {
		p.PutInt32(v)
	}
}

func (p *Parcel) Bytes() []byte { return p.buf }

// ParcelReader decodes a RIL response body. The first error sticks; later
// reads return zero values.
type ParcelReader struct {
	b   []byte
	off int
	err error
}

func NewParcelReader(b []byte) *ParcelReader { return &ParcelReader{b: b} }

func (r *ParcelReader) Err() error { return r.err }

func (r *ParcelReader) Int32() int32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.b) {
		r.err = errors.Wrapf(ErrParcel, "int32 at %d of %d", r.off, len(r.b))
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.b[r.off:]))
	r.off += 4
	return v
}

func (r *ParcelReader) String() string {
	n := r.Int32()
	if r.err != nil || n < 0 {
		return ""
	}
	size := int(n)*2 + 2
	if r.off+size > len(r.b) {
		r.err = errors.Wrapf(ErrParcel, "string of %d chars at %d", n, r.off)
		return ""
	}
	out, err := utf16le.NewDecoder().Bytes(r.b[r.off : r.off+int(n)*2])
	if err != nil {
		r.err = errors.Wrap(ErrParcel, err.Error())
		return ""
	}
	r.off += size
	for r.off%4 != 0 {
		r.off++
	}
	return string(out)
}
