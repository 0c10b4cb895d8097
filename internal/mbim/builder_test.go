// internal/mbim/builder_test.go
package mbim

import (
	"bytes"
	"errors"
	"testing"
)

func newQuery(t *testing.T, sig string, args ...any) *Message {
	t.Helper()
	m := NewCommand(UUIDBasicConnect, CIDDeviceCaps, CommandTypeQuery)
	if err := m.SetArguments(sig, args...); err != nil {
		t.Fatalf("SetArguments(%q) err=%v", sig, err)
	}
	return m
}

func TestRoundTrip_BasicTypes(t *testing.T) {
	m := newQuery(t, "uyqts", uint32(0xdeadbeef), uint8(7), uint16(0x1234), uint64(1)<<40, "hello")

	var (
		u uint32
		y uint8
		q uint16
		v uint64
		s string
	)
	if err := m.Arguments("uyqts", &u, &y, &q, &v, &s); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if u != 0xdeadbeef || y != 7 || q != 0x1234 || v != 1<<40 || s != "hello" {
		t.Fatalf("unexpected values %x %d %x %d %q", u, y, q, v, s)
	}
}

func TestRoundTrip_EmptyAndNilStrings(t *testing.T) {
	m := newQuery(t, "sus", nil, 5, "")

	info := m.InfoBuffer()
	if len(info) != 20 {
		t.Fatalf("expected 20 bytes (two empty pairs + u32), got %d", len(info))
	}

	a, b := "x", "y"
	var u uint32
	if err := m.Arguments("sus", &a, &u, &b); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if a != "" || b != "" || u != 5 {
		t.Fatalf("unexpected values %q %d %q", a, u, b)
	}
}

func TestRoundTrip_NonASCIIString(t *testing.T) {
	m := newQuery(t, "s", "Ünïcødé ✓")
	var s string
	if err := m.Arguments("s", &s); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if s != "Ünïcødé ✓" {
		t.Fatalf("got %q", s)
	}
}

func TestRoundTrip_FixedBytes(t *testing.T) {
	want := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	m := newQuery(t, "16yu", want, 99)

	var (
		got []byte
		u   uint32
	)
	if err := m.Arguments("16yu", &got, &u); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if !bytes.Equal(got, want) || u != 99 {
		t.Fatalf("got %v %d", got, u)
	}
}

func TestSetArguments_FixedBytesWrongLength(t *testing.T) {
	m := NewCommand(UUIDBasicConnect, CIDPIN, CommandTypeSet)
	err := m.SetArguments("4y", []byte{1, 2, 3})
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
	if m.Sealed() {
		t.Fatalf("failed message must stay unsealed")
	}
}

func TestRoundTrip_ArrayOfBasic(t *testing.T) {
	m := newQuery(t, "uau", 1, 3, 10, 20, 30)

	var (
		u   uint32
		arr Iter
	)
	if err := m.Arguments("uau", &u, &arr); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if arr.Remaining() != 3 {
		t.Fatalf("expected 3 elements, got %d", arr.Remaining())
	}

	var got []uint32
	var v uint32
	for arr.Next(&v) {
		got = append(got, v)
	}
	if arr.Err() != nil {
		t.Fatalf("array err=%v", arr.Err())
	}
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("got %v", got)
	}
}

func TestRoundTrip_ArrayOfUint64KeepsAlignment(t *testing.T) {
	m := newQuery(t, "uat", 1, 2, uint64(0x0102030405060708), uint64(9))

	var (
		u   uint32
		arr Iter
		v   uint64
	)
	if err := m.Arguments("uat", &u, &arr); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	var got []uint64
	for arr.Next(&v) {
		got = append(got, v)
	}
	if arr.Err() != nil || len(got) != 2 || got[0] != 0x0102030405060708 || got[1] != 9 {
		t.Fatalf("got %v err=%v", got, arr.Err())
	}
}

func TestRoundTrip_EmptyArray(t *testing.T) {
	m := newQuery(t, "aus", 0, "after")

	var (
		arr Iter
		s   string
	)
	if err := m.Arguments("aus", &arr, &s); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if arr.Remaining() != 0 {
		t.Fatalf("expected empty array, got %d", arr.Remaining())
	}
	var v uint32
	if arr.Next(&v) {
		t.Fatalf("empty array yielded a value")
	}
	if s != "after" {
		t.Fatalf("got %q", s)
	}
}

func TestRoundTrip_ByteArray(t *testing.T) {
	want := []byte("raw payload")
	m := newQuery(t, "ay", want)

	var arr Iter
	if err := m.Arguments("ay", &arr); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	got, ok := arr.Bytes()
	if !ok || !bytes.Equal(got, want) {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestRoundTrip_ArrayOfFixedByteArrays(t *testing.T) {
	m := newQuery(t, "a4y", 2, []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8})

	var arr Iter
	if err := m.Arguments("a4y", &arr); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	var got [][]byte
	var b []byte
	for arr.Next(&b) {
		got = append(got, b)
	}
	if len(got) != 2 || !bytes.Equal(got[0], []byte{1, 2, 3, 4}) || !bytes.Equal(got[1], []byte{5, 6, 7, 8}) {
		t.Fatalf("got %v err=%v", got, arr.Err())
	}
}

func TestRoundTrip_ArrayOfStrings(t *testing.T) {
	m := newQuery(t, "as", 3, "a", "", "ccc")

	var arr Iter
	if err := m.Arguments("as", &arr); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	var got []string
	var s string
	for arr.Next(&s) {
		got = append(got, s)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "" || got[2] != "ccc" {
		t.Fatalf("got %q err=%v", got, arr.Err())
	}
}

func TestRoundTrip_ArrayOfStructs(t *testing.T) {
	m := newQuery(t, "a(us)u", 2, 1, "one", 2, "two", 77)

	var (
		arr  Iter
		tail uint32
	)
	if err := m.Arguments("a(us)u", &arr, &tail); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if tail != 77 {
		t.Fatalf("tail=%d", tail)
	}

	type row struct {
		id   uint32
		name string
	}
	var got []row
	var r row
	for arr.Next(&r.id, &r.name) {
		got = append(got, r)
	}
	if arr.Err() != nil {
		t.Fatalf("array err=%v", arr.Err())
	}
	if len(got) != 2 || got[0] != (row{1, "one"}) || got[1] != (row{2, "two"}) {
		t.Fatalf("got %+v", got)
	}
}

func TestRoundTrip_NestedStruct(t *testing.T) {
	m := newQuery(t, "u(u(s))", 1, 2, "deep")

	var (
		a, b uint32
		s    string
	)
	if err := m.Arguments("u(u(s))", &a, &b, &s); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if a != 1 || b != 2 || s != "deep" {
		t.Fatalf("got %d %d %q", a, b, s)
	}
}

func TestRoundTrip_Databuf(t *testing.T) {
	m := newQuery(t, "ud", 7, "us", 9, "tail")

	var (
		u  uint32
		db Iter
	)
	if err := m.Arguments("ud", &u, "us", &db); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	var (
		v uint32
		s string
	)
	if !db.Next(&v, &s) {
		t.Fatalf("databuf err=%v", db.Err())
	}
	if u != 7 || v != 9 || s != "tail" {
		t.Fatalf("got %d %d %q", u, v, s)
	}
}

func TestBuilder_NothingAfterDatabuf(t *testing.T) {
	m := NewCommand(UUIDBasicConnect, CIDConnect, CommandTypeSet)
	err := m.SetArguments("du", "u", 1, 2)
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestAlignment_UYU(t *testing.T) {
	m := newQuery(t, "uyu", 1, 2, 3)

	want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	if m.InfoLen() != 12 {
		t.Fatalf("expected 12 bytes, got %d", m.InfoLen())
	}
	if got := m.InfoBuffer(); !bytes.Equal(got, want) {
		t.Fatalf("got % x", got)
	}
}

func TestBuilder_NestingBound(t *testing.T) {
	b, err := NewBuilder(NewCommand(UUIDBasicConnect, CIDConnect, CommandTypeSet))
	if err != nil {
		t.Fatalf("NewBuilder err=%v", err)
	}
	if err := b.EnterArray("(a(s))"); err != nil {
		t.Fatalf("EnterArray err=%v", err)
	}
	if err := b.EnterStruct("a(s)"); err != nil {
		t.Fatalf("EnterStruct err=%v", err)
	}
	if err := b.EnterArray("(s)"); !errors.Is(err, ErrNesting) {
		t.Fatalf("expected ErrNesting, got %v", err)
	}
}

func TestSetArguments_NestingBound(t *testing.T) {
	m := NewCommand(UUIDBasicConnect, CIDConnect, CommandTypeSet)
	err := m.SetArguments("a(a(s))", 1, 1, "x")
	if !errors.Is(err, ErrNesting) {
		t.Fatalf("expected ErrNesting, got %v", err)
	}
	if m.Sealed() {
		t.Fatalf("failed message must stay unsealed")
	}
}

func TestFixedSizeStructUnsupported(t *testing.T) {
	m := NewCommand(UUIDBasicConnect, CIDConnect, CommandTypeSet)
	if err := m.SetArguments("(uu)", 1, 2); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("builder: expected ErrUnsupported, got %v", err)
	}

	raw := newQuery(t, "uu", 8, 8)
	var a, b uint32
	if err := raw.Arguments("(uu)", &a, &b); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("iterator: expected ErrUnsupported, got %v", err)
	}
}

func TestBuilder_FinalizeOnce(t *testing.T) {
	m := NewCommand(UUIDBasicConnect, CIDRadioState, CommandTypeSet)
	b, err := NewBuilder(m)
	if err != nil {
		t.Fatalf("NewBuilder err=%v", err)
	}
	if err := b.AppendBasic('u', 1); err != nil {
		t.Fatalf("AppendBasic err=%v", err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatalf("Finalize err=%v", err)
	}
	if err := b.Finalize(); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	if _, err := NewBuilder(m); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed for sealed message, got %v", err)
	}
}

func TestBuilder_FinalizeWithOpenContainer(t *testing.T) {
	b, _ := NewBuilder(NewCommand(UUIDBasicConnect, CIDRadioState, CommandTypeSet))
	if err := b.EnterStruct("s"); err != nil {
		t.Fatalf("EnterStruct err=%v", err)
	}
	if err := b.Finalize(); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestSetArguments_Mismatch(t *testing.T) {
	cases := []struct {
		name string
		sig  string
		args []any
	}{
		{"too few", "uu", []any{1}},
		{"too many", "u", []any{1, 2}},
		{"wrong type", "u", []any{"x"}},
		{"overflow", "y", []any{300}},
		{"negative", "u", []any{-1}},
		{"bad signature", "(u", []any{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewCommand(UUIDBasicConnect, CIDRadioState, CommandTypeSet)
			if err := m.SetArguments(tc.sig, tc.args...); !errors.Is(err, ErrSignature) {
				t.Fatalf("expected ErrSignature, got %v", err)
			}
		})
	}
}
