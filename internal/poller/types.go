// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/modem-hal/internal/mbim"
)

// Query describes one MBIM query.
// Addressing only: decoding is best effort.
type Query struct {
	Name    string
	Service mbim.UUID
	CID     uint32
}

// QueryResult is the raw result of a single query.
type QueryResult struct {
	Name    string
	Service mbim.UUID
	CID     uint32

	Info    []byte // information buffer, verbatim
	Decoded any    // typed Basic Connect value, nil when unknown
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	Device string
	At     time.Time

	// Status is copied verbatim from the device.
	// 0 means success; non-zero is the MBIM status of the failed query.
	Status mbim.Status

	Results []QueryResult
	Err     error // non-nil means the poll cycle failed
}
