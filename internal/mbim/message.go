// internal/mbim/message.go
package mbim

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates what a Message carries.
type Kind int

const (
	KindCommand Kind = iota
	KindCommandDone
	KindIndication
	KindFunctionError
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCommandDone:
		return "command-done"
	case KindIndication:
		return "indication"
	case KindFunctionError:
		return "function-error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is an MBIM command, completion or indication.
// It is filled once through a Builder (or by the parser) and read-only after that.
type Message struct {
	kind        Kind
	uuid        UUID
	cid         uint32
	commandType CommandType // KindCommand only
	status      Status      // KindCommandDone and KindFunctionError only

	frags   [][]byte // info buffer, possibly discontiguous
	infoLen uint32
	sealed  bool
}

// NewCommand creates an empty, unsealed command.
func NewCommand(uuid UUID, cid uint32, ct CommandType) *Message {
	return &Message{kind: KindCommand, uuid: uuid, cid: cid, commandType: ct}
}

// NewCommandDone creates an empty, unsealed completion.
func NewCommandDone(uuid UUID, cid uint32, status Status) *Message {
	return &Message{kind: KindCommandDone, uuid: uuid, cid: cid, status: status}
}

// NewIndication creates an empty, unsealed status indication.
func NewIndication(uuid UUID, cid uint32) *Message {
	return &Message{kind: KindIndication, uuid: uuid, cid: cid}
}

func (m *Message) Kind() Kind { return m.kind }
func (m *Message) UUID() UUID { return m.uuid }
func (m *Message) CID() uint32 { return m.cid }
func (m *Message) Sealed() bool { return m.sealed }

// CommandType is meaningful for commands only.
func (m *Message) CommandType() CommandType { return m.commandType }

// Status is meaningful for completions and function errors only.
func (m *Message) Status() Status { return m.status }

// Err returns the completion status as an error, nil on success or for
// messages that carry no status.
func (m *Message) Err() error {
	switch m.kind {
	case KindCommandDone, KindFunctionError:
		if m.status != StatusSuccess {
			return m.status
		}
	}
	return nil
}

// InfoLen is the total information buffer length.
func (m *Message) InfoLen() uint32 { return m.infoLen }

// InfoBuffer returns a contiguous copy of the information buffer.
func (m *Message) InfoBuffer() []byte {
	out := make([]byte, 0, m.infoLen)
	for _, f := range m.frags {
		out = append(out, f...)
	}
	return out
}

// Iter returns an iterator over the information buffer using sig.
func (m *Message) Iter(sig string) (*Iter, error) {
	if !m.sealed {
		return nil, ErrNotSealed
	}
	return newRootIter(m.frags, int(m.infoLen), sig), nil
}

// Arguments decodes the information buffer according to sig into out.
// A failed decode must be treated as no data at all.
func (m *Message) Arguments(sig string, out ...any) error {
	it, err := m.Iter(sig)
	if err != nil {
		return err
	}
	if !it.Next(out...) {
		if err := it.Err(); err != nil {
			return err
		}
		return errors.Wrapf(ErrMalformed, "no data for %q", sig)
	}
	return nil
}

// SetArguments encodes args according to sig and seals the message.
// On failure the message stays unsealed.
func (m *Message) SetArguments(sig string, args ...any) error {
	b, err := NewBuilder(m)
	if err != nil {
		return err
	}
	rest, err := b.appendArgs(sig, args)
	if err != nil {
		return errors.Wrapf(err, "set arguments %q", sig)
	}
	if len(rest) != 0 {
		return errors.Wrapf(ErrSignature, "%d unused arguments for %q", len(rest), sig)
	}
	return b.Finalize()
}

// seal installs the finished information buffer.
func (m *Message) seal(frags [][]byte) {
	m.frags = frags
	m.infoLen = uint32(fragsLen(frags))
	m.sealed = true
}

func (m *Message) String() string {
	switch m.kind {
	case KindFunctionError:
		return fmt.Sprintf("function-error(%s)", m.status)
	case KindCommandDone:
		return fmt.Sprintf("%s %s/%d status=%s len=%d", m.kind, m.uuid.ServiceName(), m.cid, m.status, m.infoLen)
	}
	return fmt.Sprintf("%s %s/%d len=%d", m.kind, m.uuid.ServiceName(), m.cid, m.infoLen)
}
