// internal/mbim/wire.go
package mbim

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header geometry.
//
// Header:
//   Type(4) Length(4) TransactionID(4)
// Fragment header (COMMAND, COMMAND_DONE, INDICATE_STATUS only):
//   TotalFragments(4) CurrentFragment(4)
const (
	HeaderSize         = 12
	FragmentHeaderSize = 8
	SegmentHeaderSize  = HeaderSize + FragmentHeaderSize

	// uuid(16) cid(4) command-type|status(4) info-length(4)
	commandPrefixSize = 28
	// uuid(16) cid(4) info-length(4)
	indicationPrefixSize = 24

	// MinSegmentSize is the smallest max-segment size accepted for a device.
	MinSegmentSize = 64
)

// Header is the common 12-byte message header.
type Header struct {
	Type MessageType
	Len  uint32
	TID  uint32
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Wrap(ErrMalformed, "short header")
	}
	h := Header{
		Type: MessageType(binary.LittleEndian.Uint32(b[0:4])),
		Len:  binary.LittleEndian.Uint32(b[4:8]),
		TID:  binary.LittleEndian.Uint32(b[8:12]),
	}
	if h.Len < HeaderSize {
		return h, errors.Wrapf(ErrMalformed, "header length %d", h.Len)
	}
	return h, nil
}

func (h Header) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Type))
	binary.LittleEndian.PutUint32(b[4:8], h.Len)
	binary.LittleEndian.PutUint32(b[8:12], h.TID)
}

// Fragmented reports whether messages of this type carry a fragment header.
func (t MessageType) Fragmented() bool {
	switch t {
	case TypeCommand, TypeCommandDone, TypeIndicateStatus:
		return true
	}
	return false
}

// Segment is one physical transfer as read from the device.
type Segment struct {
	Header
	Total   uint32
	Index   uint32
	Payload []byte
}

// ParseSegment decodes one complete segment. For types without a fragment
// header Total is 1 and Payload is everything after the header.
func ParseSegment(b []byte) (*Segment, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if int(h.Len) != len(b) {
		return nil, errors.Wrapf(ErrMalformed, "segment length %d, header says %d", len(b), h.Len)
	}

	s := &Segment{Header: h, Total: 1}
	if !h.Type.Fragmented() {
		s.Payload = b[HeaderSize:]
		return s, nil
	}

	if len(b) < SegmentHeaderSize {
		return nil, errors.Wrap(ErrMalformed, "short fragment header")
	}
	s.Total = binary.LittleEndian.Uint32(b[12:16])
	s.Index = binary.LittleEndian.Uint32(b[16:20])
	s.Payload = b[SegmentHeaderSize:]
	if s.Total == 0 || s.Index >= s.Total {
		return nil, errors.Wrapf(ErrMalformed, "fragment %d of %d", s.Index, s.Total)
	}
	return s, nil
}

// EncodeOpen builds an OPEN request carrying the max control transfer size.
func EncodeOpen(tid, maxControlTransfer uint32) []byte {
	b := make([]byte, HeaderSize+4)
	Header{Type: TypeOpen, Len: uint32(len(b)), TID: tid}.put(b)
	binary.LittleEndian.PutUint32(b[HeaderSize:], maxControlTransfer)
	return b
}

// EncodeClose builds a CLOSE request.
func EncodeClose(tid uint32) []byte {
	b := make([]byte, HeaderSize)
	Header{Type: TypeClose, Len: HeaderSize, TID: tid}.put(b)
	return b
}

// EncodeDone builds an OPEN_DONE, CLOSE_DONE or FUNCTION_ERROR carrying a status word.
func EncodeDone(t MessageType, tid uint32, status Status) []byte {
	b := make([]byte, HeaderSize+4)
	Header{Type: t, Len: uint32(len(b)), TID: tid}.put(b)
	binary.LittleEndian.PutUint32(b[HeaderSize:], uint32(status))
	return b
}

// DoneStatus extracts the status word of an OPEN_DONE / CLOSE_DONE / FUNCTION_ERROR payload.
func DoneStatus(payload []byte) (Status, error) {
	if len(payload) < 4 {
		return 0, errors.Wrap(ErrMalformed, "short status")
	}
	return Status(binary.LittleEndian.Uint32(payload[0:4])), nil
}

// Segments serializes a sealed message into one or more wire segments no
// larger than maxSegment bytes each.
func (m *Message) Segments(tid uint32, maxSegment uint32) ([][]byte, error) {
	if !m.sealed {
		return nil, ErrNotSealed
	}
	if maxSegment <= SegmentHeaderSize {
		return nil, errors.Errorf("mbim: max segment %d too small", maxSegment)
	}

	var (
		t      MessageType
		prefix []byte
	)
	switch m.kind {
	case KindCommand:
		t = TypeCommand
		prefix = make([]byte, commandPrefixSize)
		binary.LittleEndian.PutUint32(prefix[20:24], uint32(m.commandType))
		binary.LittleEndian.PutUint32(prefix[24:28], m.infoLen)
	case KindCommandDone:
		t = TypeCommandDone
		prefix = make([]byte, commandPrefixSize)
		binary.LittleEndian.PutUint32(prefix[20:24], uint32(m.status))
		binary.LittleEndian.PutUint32(prefix[24:28], m.infoLen)
	case KindIndication:
		t = TypeIndicateStatus
		prefix = make([]byte, indicationPrefixSize)
		binary.LittleEndian.PutUint32(prefix[20:24], m.infoLen)
	default:
		return nil, errors.Errorf("mbim: cannot serialize %s", m.kind)
	}
	copy(prefix[0:16], m.uuid[:])
	binary.LittleEndian.PutUint32(prefix[16:20], m.cid)

	body := make([]byte, 0, len(prefix)+int(m.infoLen))
	body = append(body, prefix...)
	for _, f := range m.frags {
		body = append(body, f...)
	}

	chunk := int(maxSegment) - SegmentHeaderSize
	total := (len(body) + chunk - 1) / chunk
	if total == 0 {
		total = 1
	}

	out := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		part := body[i*chunk:]
		if len(part) > chunk {
			part = part[:chunk]
		}
		seg := make([]byte, SegmentHeaderSize+len(part))
		Header{Type: t, Len: uint32(len(seg)), TID: tid}.put(seg)
		binary.LittleEndian.PutUint32(seg[12:16], uint32(total))
		binary.LittleEndian.PutUint32(seg[16:20], uint32(i))
		copy(seg[SegmentHeaderSize:], part)
		out = append(out, seg)
	}
	return out, nil
}

// parseMessage builds a sealed message from the concatenated fragment payloads
// of one transaction. The info buffer keeps referencing the payload ranges.
func parseMessage(t MessageType, body [][]byte) (*Message, error) {
	cur := newFragCursor(body)
	total := fragsLen(body)

	if t == TypeFunctionError {
		var w [4]byte
		if !cur.copyAt(0, w[:]) {
			return nil, errors.Wrap(ErrMalformed, "short function error")
		}
		return &Message{
			kind:   KindFunctionError,
			status: Status(binary.LittleEndian.Uint32(w[:])),
			sealed: true,
		}, nil
	}

	prefixLen := commandPrefixSize
	kind := KindCommand
	switch t {
	case TypeCommand:
	case TypeCommandDone:
		kind = KindCommandDone
	case TypeIndicateStatus:
		kind = KindIndication
		prefixLen = indicationPrefixSize
	default:
		return nil, errors.Wrapf(ErrMalformed, "unexpected message type %s", t)
	}

	prefix := make([]byte, prefixLen)
	if !cur.copyAt(0, prefix) {
		return nil, errors.Wrap(ErrMalformed, "short message prefix")
	}

	m := &Message{kind: kind, sealed: true}
	copy(m.uuid[:], prefix[0:16])
	m.cid = binary.LittleEndian.Uint32(prefix[16:20])

	switch kind {
	case KindCommand:
		m.commandType = CommandType(binary.LittleEndian.Uint32(prefix[20:24]))
		m.infoLen = binary.LittleEndian.Uint32(prefix[24:28])
	case KindCommandDone:
		m.status = Status(binary.LittleEndian.Uint32(prefix[20:24]))
		m.infoLen = binary.LittleEndian.Uint32(prefix[24:28])
	case KindIndication:
		m.infoLen = binary.LittleEndian.Uint32(prefix[20:24])
	}

	if int(m.infoLen) > total-prefixLen {
		return nil, errors.Wrapf(ErrMalformed, "info buffer length %d exceeds %d", m.infoLen, total-prefixLen)
	}
	m.frags = rangeFrom(body, prefixLen, int(m.infoLen))
	return m, nil
}

// ParseMessage decodes a single unfragmented segment into a message.
func ParseMessage(b []byte) (*Message, error) {
	s, err := ParseSegment(b)
	if err != nil {
		return nil, err
	}
	if s.Total != 1 {
		return nil, errors.Wrap(ErrFragment, "fragmented segment")
	}
	return parseMessage(s.Type, [][]byte{s.Payload})
}
