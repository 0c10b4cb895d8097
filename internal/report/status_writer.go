// internal/report/status_writer.go
package report

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/modem-hal/internal/status"
)

type statusRecord struct {
	Type       string    `json:"type"`
	Device     string    `json:"device"`
	At         time.Time `json:"at"`
	Full       bool      `json:"full,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`

	Health         *status.Health `json:"health,omitempty"`
	LastErrorCode  *uint32        `json:"last_error_code,omitempty"`
	SecondsInError *uint16        `json:"seconds_in_error,omitempty"`
	Outstanding    *int           `json:"outstanding,omitempty"`
}

// deviceStatusWriter emits "status" records. The first record, and the first
// one after any failure, carries every field plus the device name; later
// records carry only what changed.
type deviceStatusWriter struct {
	sink       *Sink
	device     string
	deviceName string

	needFull bool
	last     status.Snapshot
}

func NewStatusWriter(sink *Sink, device, deviceName string) StatusWriter {
	return &deviceStatusWriter{
		sink:       sink,
		device:     device,
		deviceName: deviceName,
		needFull:   true, // full re-assert on first successful write
		last:       status.Snapshot{Health: status.HealthUnknown},
	}
}

// WriteStatus delivers a device status snapshot.
// On any write failure, the next successful call will re-assert the full record.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.sink == nil {
		return errors.New("status writer: disabled")
	}

	rec := statusRecord{
		Type:   "status",
		Device: sw.device,
		At:     sw.sink.now(),
	}

	// ------------------------------------------------------------
	// Full record (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		rec.Full = true
		rec.DeviceName = sw.deviceName
		rec.Health = &s.Health
		rec.LastErrorCode = &s.LastErrorCode
		rec.SecondsInError = &s.SecondsInError
		rec.Outstanding = &s.Outstanding

		if err := sw.sink.emit(rec); err != nil {
			return errors.Wrap(err, "status writer: full record")
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	if sw.last.Health != s.Health {
		rec.Health = &s.Health
	}
	if sw.last.LastErrorCode != s.LastErrorCode {
		rec.LastErrorCode = &s.LastErrorCode
	}
	if sw.last.SecondsInError != s.SecondsInError {
		rec.SecondsInError = &s.SecondsInError
	}
	if sw.last.Outstanding != s.Outstanding {
		rec.Outstanding = &s.Outstanding
	}
	if rec.Health == nil && rec.LastErrorCode == nil && rec.SecondsInError == nil && rec.Outstanding == nil {
		return nil
	}

	if err := sw.sink.emit(rec); err != nil {
		// Any failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.Wrap(err, "status writer")
	}
	sw.last = s
	return nil
}
