// internal/report/indication.go
package report

import (
	"encoding/hex"
	"time"

	"github.com/tamzrod/modem-hal/internal/mbim"
)

type indicationRecord struct {
	Type    string    `json:"type"`
	Device  string    `json:"device"`
	At      time.Time `json:"at"`
	Service string    `json:"service"`
	CID     uint32    `json:"cid"`
	Info    string    `json:"info"`
	Decoded any       `json:"decoded,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// WriteIndication emits one "indication" record for an unsolicited message.
// A payload that fails to decode is still reported, with the decode error.
func (s *Sink) WriteIndication(device string, m *mbim.Message) error {
	rec := indicationRecord{
		Type:    "indication",
		Device:  device,
		At:      s.now(),
		Service: m.UUID().ServiceName(),
		CID:     m.CID(),
		Info:    hex.EncodeToString(m.InfoBuffer()),
	}
	v, err := mbim.Decode(m)
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Decoded = v
	}
	return s.emit(rec)
}
