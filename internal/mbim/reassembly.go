// internal/mbim/reassembly.go
package mbim

import "github.com/pkg/errors"

type reassemblyNode struct {
	msgType MessageType
	total   uint32
	last    uint32
	frags   [][]byte
}

// Reassembler collects the fragments of multi-segment messages per
// transaction id. Fragments must arrive in order starting at 0; anything
// else drops the transaction.
type Reassembler struct {
	nodes map[uint32]*reassemblyNode
}

func NewReassembler() *Reassembler {
	return &Reassembler{nodes: make(map[uint32]*reassemblyNode)}
}

// Pending returns the number of transactions waiting for more fragments.
func (r *Reassembler) Pending() int { return len(r.nodes) }

// Reset drops every partial transaction.
func (r *Reassembler) Reset() {
	r.nodes = make(map[uint32]*reassemblyNode)
}

// Add feeds one segment. It returns the message once the transaction is
// complete, nil while more fragments are expected, and ErrFragment when the
// segment does not continue its transaction (the transaction is dropped).
func (r *Reassembler) Add(s *Segment) (*Message, error) {
	n, ok := r.nodes[s.TID]

	if s.Index == 0 {
		if ok {
			// A restart collides with a partial transaction; neither survives.
			delete(r.nodes, s.TID)
			return nil, errors.Wrapf(ErrFragment, "tid %d restarted", s.TID)
		}
		if s.Total == 1 {
			return parseMessage(s.Type, [][]byte{s.Payload})
		}
		r.nodes[s.TID] = &reassemblyNode{
			msgType: s.Type,
			total:   s.Total,
			frags:   [][]byte{s.Payload},
		}
		return nil, nil
	}

	if !ok {
		return nil, errors.Wrapf(ErrFragment, "tid %d fragment %d without start", s.TID, s.Index)
	}
	if s.Type != n.msgType || s.Total != n.total || s.Index != n.last+1 {
		delete(r.nodes, s.TID)
		return nil, errors.Wrapf(ErrFragment, "tid %d fragment %d/%d after %d/%d",
			s.TID, s.Index, s.Total, n.last, n.total)
	}

	n.last = s.Index
	n.frags = append(n.frags, s.Payload)
	if n.last+1 < n.total {
		return nil, nil
	}

	delete(r.nodes, s.TID)
	return parseMessage(n.msgType, n.frags)
}
