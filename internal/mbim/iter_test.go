// internal/mbim/iter_test.go
package mbim

import (
	"errors"
	"strings"
	"testing"
)

type fragDecoded struct {
	head  uint32
	names []string
	ids   []uint32
	blob  []byte
	tail  string
}

const fragSig = "ua(us)16ys"

func encodeFragSample(t *testing.T) *Message {
	t.Helper()
	blob := []byte("0123456789abcdef")
	return newQuery(t, fragSig,
		0xcafe,
		3, 1, "first", 2, "second-name", 3, strings.Repeat("z", 9),
		blob,
		"trailing string",
	)
}

func decodeFrags(t *testing.T, frags [][]byte, infoLen int) fragDecoded {
	t.Helper()
	it := newRootIter(frags, infoLen, fragSig)

	var (
		d   fragDecoded
		arr Iter
	)
	if !it.Next(&d.head, &arr, &d.blob, &d.tail) {
		t.Fatalf("decode err=%v", it.Err())
	}
	var (
		id   uint32
		name string
	)
	for arr.Next(&id, &name) {
		d.ids = append(d.ids, id)
		d.names = append(d.names, name)
	}
	if arr.Err() != nil {
		t.Fatalf("array err=%v", arr.Err())
	}
	return d
}

func equalDecoded(a, b fragDecoded) bool {
	if a.head != b.head || a.tail != b.tail || string(a.blob) != string(b.blob) {
		return false
	}
	if len(a.names) != len(b.names) || len(a.ids) != len(b.ids) {
		return false
	}
	for i := range a.names {
		if a.names[i] != b.names[i] || a.ids[i] != b.ids[i] {
			return false
		}
	}
	return true
}

func TestIter_FragmentationInvariance(t *testing.T) {
	m := encodeFragSample(t)
	info := m.InfoBuffer()
	ref := decodeFrags(t, [][]byte{info}, len(info))

	if ref.head != 0xcafe || len(ref.names) != 3 || ref.names[1] != "second-name" || ref.tail != "trailing string" {
		t.Fatalf("unexpected reference decode %+v", ref)
	}

	// two fragments, every split point
	for k := 1; k < len(info); k++ {
		got := decodeFrags(t, [][]byte{info[:k], info[k:]}, len(info))
		if !equalDecoded(ref, got) {
			t.Fatalf("split at %d: got %+v", k, got)
		}
	}

	// N fragments of fixed width
	for _, w := range []int{1, 3, 4, 7} {
		var frags [][]byte
		for off := 0; off < len(info); off += w {
			end := off + w
			if end > len(info) {
				end = len(info)
			}
			frags = append(frags, info[off:end])
		}
		got := decodeFrags(t, frags, len(info))
		if !equalDecoded(ref, got) {
			t.Fatalf("width %d: got %+v", w, got)
		}
	}
}

func TestIter_RequiresSealedMessage(t *testing.T) {
	m := NewCommand(UUIDBasicConnect, CIDDeviceCaps, CommandTypeQuery)
	if _, err := m.Iter("u"); !errors.Is(err, ErrNotSealed) {
		t.Fatalf("expected ErrNotSealed, got %v", err)
	}
}

func TestIter_Overrun(t *testing.T) {
	m := newQuery(t, "u", 1)
	var a, b uint32
	if err := m.Arguments("uu", &a, &b); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestIter_StringOutsideContainer(t *testing.T) {
	// offset 8, length 100 in a 16-byte buffer
	info := []byte{8, 0, 0, 0, 100, 0, 0, 0, 'a', 0, 'b', 0, 'c', 0, 'd', 0}
	it := newRootIter([][]byte{info}, len(info), "s")
	var s string
	if it.Next(&s) {
		t.Fatalf("expected failure, got %q", s)
	}
	if !errors.Is(it.Err(), ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", it.Err())
	}
}

func TestIter_OutputTypeMismatch(t *testing.T) {
	m := newQuery(t, "u", 1)
	var s string
	if err := m.Arguments("u", &s); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestIter_NilOutputSkips(t *testing.T) {
	m := newQuery(t, "usu", 1, "skip me", 3)
	var last uint32
	if err := m.Arguments("usu", nil, nil, &last); err != nil {
		t.Fatalf("Arguments err=%v", err)
	}
	if last != 3 {
		t.Fatalf("got %d", last)
	}
}

func TestIter_NestingBound(t *testing.T) {
	m := newQuery(t, "u", 1)
	it, err := m.Iter("a(a(s))")
	if err != nil {
		t.Fatalf("Iter err=%v", err)
	}
	child, err := it.child(containerArray, "(a(s))")
	if err != nil {
		t.Fatalf("child err=%v", err)
	}
	grand, err := child.child(containerStruct, "a(s)")
	if err != nil {
		t.Fatalf("grandchild err=%v", err)
	}
	if _, err := grand.child(containerArray, "(s)"); !errors.Is(err, ErrNesting) {
		t.Fatalf("expected ErrNesting, got %v", err)
	}
}

func TestSignatureEnd(t *testing.T) {
	cases := []struct {
		sig  string
		i    int
		want int
	}{
		{"u", 0, 0},
		{"(us)", 0, 3},
		{"a(us)u", 0, 4},
		{"16yu", 0, 2},
		{"a16y", 0, 3},
		{"(u(s))", 0, 5},
		{"(us", 0, -1},
		{"12", 0, -1},
		{"x", 0, -1},
	}
	for _, tc := range cases {
		if got := signatureEnd(tc.sig, tc.i); got != tc.want {
			t.Fatalf("signatureEnd(%q,%d)=%d want %d", tc.sig, tc.i, got, tc.want)
		}
	}
}

func TestIsFixedSize(t *testing.T) {
	for sig, want := range map[string]bool{
		"u":     true,
		"uyqt":  true,
		"16y":   true,
		"us":    false,
		"au":    false,
		"(uv)":  false,
		"(uut)": true,
	} {
		if got := isFixedSize(sig); got != want {
			t.Fatalf("isFixedSize(%q)=%v", sig, got)
		}
	}
}
