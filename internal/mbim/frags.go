// internal/mbim/frags.go
package mbim

// fragCursor maps absolute info-buffer offsets onto a list of discontiguous
// byte ranges. It remembers the last fragment it touched so forward reads
// stay cheap; a read behind the cursor rewinds to the first fragment.
type fragCursor struct {
	frags [][]byte
	idx   int // current fragment
	start int // absolute offset of frags[idx]
}

func newFragCursor(frags [][]byte) fragCursor {
	return fragCursor{frags: frags}
}

func (c *fragCursor) seek(off int) bool {
	if off < c.start {
		c.idx, c.start = 0, 0
	}
	for c.idx < len(c.frags) {
		if off < c.start+len(c.frags[c.idx]) {
			return true
		}
		c.start += len(c.frags[c.idx])
		c.idx++
	}
	return false
}

// copyAt copies len(dst) bytes starting at off. The range may span fragments.
func (c *fragCursor) copyAt(off int, dst []byte) bool {
	if len(dst) == 0 {
		return true
	}
	if !c.seek(off) {
		return false
	}
	idx, start := c.idx, c.start
	n := 0
	for n < len(dst) {
		if idx >= len(c.frags) {
			return false
		}
		f := c.frags[idx]
		rel := off + n - start
		n += copy(dst[n:], f[rel:])
		if n < len(dst) {
			start += len(f)
			idx++
		}
	}
	return true
}

// bytesAt returns n bytes at off. The result aliases the fragment when the
// range lies within one fragment and is a fresh copy otherwise.
func (c *fragCursor) bytesAt(off, n int) ([]byte, bool) {
	if n == 0 {
		return nil, true
	}
	if !c.seek(off) {
		return nil, false
	}
	rel := off - c.start
	if f := c.frags[c.idx]; rel+n <= len(f) {
		return f[rel : rel+n], true
	}
	out := make([]byte, n)
	if !c.copyAt(off, out) {
		return nil, false
	}
	return out, true
}

// rangeFrom returns the sub-ranges covering [off, off+n) without copying.
func rangeFrom(frags [][]byte, off, n int) [][]byte {
	var out [][]byte
	pos := 0
	for _, f := range frags {
		if n == 0 {
			break
		}
		end := pos + len(f)
		if off < end {
			rel := 0
			if off > pos {
				rel = off - pos
			}
			take := len(f) - rel
			if take > n {
				take = n
			}
			out = append(out, f[rel:rel+take])
			n -= take
			off += take
		}
		pos = end
	}
	return out
}

func fragsLen(frags [][]byte) int {
	n := 0
	for _, f := range frags {
		n += len(f)
	}
	return n
}
