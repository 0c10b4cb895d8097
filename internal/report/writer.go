// internal/report/writer.go
package report

import (
	"encoding/hex"
	"time"

	"github.com/tamzrod/modem-hal/internal/poller"
)

type pollRecord struct {
	Type    string         `json:"type"`
	Device  string         `json:"device"`
	At      time.Time      `json:"at"`
	Status  string         `json:"status,omitempty"`
	Error   string         `json:"error,omitempty"`
	Results []resultRecord `json:"results,omitempty"`
}

type resultRecord struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	CID     uint32 `json:"cid"`
	Info    string `json:"info"` // hex
	Decoded any    `json:"decoded,omitempty"`
}

type pollWriter struct {
	sink *Sink
}

func NewWriter(sink *Sink) Writer {
	return &pollWriter{sink: sink}
}

// Write emits one "poll" record. A failed cycle carries the error and the
// device status, never partial results.
func (w *pollWriter) Write(res poller.PollResult) error {
	rec := pollRecord{
		Type:   "poll",
		Device: res.Device,
		At:     res.At,
	}

	if res.Err != nil {
		rec.Status = res.Status.String()
		rec.Error = res.Err.Error()
		return w.sink.emit(rec)
	}

	for _, r := range res.Results {
		rec.Results = append(rec.Results, resultRecord{
			Name:    r.Name,
			Service: r.Service.ServiceName(),
			CID:     r.CID,
			Info:    hex.EncodeToString(r.Info),
			Decoded: r.Decoded,
		})
	}
	return w.sink.emit(rec)
}
