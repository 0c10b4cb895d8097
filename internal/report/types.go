// internal/report/types.go
package report

import (
	"github.com/tamzrod/modem-hal/internal/poller"
	"github.com/tamzrod/modem-hal/internal/status"
)

// Writer delivers poll snapshots.
type Writer interface {
	Write(res poller.PollResult) error
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}
