// internal/ril/capability.go
package ril

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CapabilityVersion is the only RADIO_CAPABILITY layout we speak.
const CapabilityVersion = 1

// MaxLogicalModemUUID bounds the logical modem id, terminator included.
const MaxLogicalModemUUID = 64

// Phase of a capability switch.
type Phase int32

const (
	PhaseConfigured Phase = 0
	PhaseStart      Phase = 1
	PhaseApply      Phase = 2
	PhaseUnsolRsp   Phase = 3
	PhaseFinish     Phase = 4
)

func (p Phase) String() string {
	switch p {
	case PhaseConfigured:
		return "CONFIGURED"
	case PhaseStart:
		return "START"
	case PhaseApply:
		return "APPLY"
	case PhaseUnsolRsp:
		return "UNSOL_RSP"
	case PhaseFinish:
		return "FINISH"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// CapStatus is the per-request outcome carried inside a capability.
type CapStatus int32

const (
	CapStatusNone    CapStatus = 0
	CapStatusSuccess CapStatus = 1
	CapStatusFail    CapStatus = 2
)

func (s CapStatus) String() string {
	switch s {
	case CapStatusNone:
		return "NONE"
	case CapStatusSuccess:
		return "SUCCESS"
	case CapStatusFail:
		return "FAIL"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// RAF is a radio access family bitmask.
type RAF uint32

const (
	RAFUnknown RAF = 1 << 0
	RAFGPRS    RAF = 1 << 1
	RAFEDGE    RAF = 1 << 2
	RAFUMTS    RAF = 1 << 3
	RAFIS95A   RAF = 1 << 4
	RAFIS95B   RAF = 1 << 5
	RAF1xRTT   RAF = 1 << 6
	RAFEVDO0   RAF = 1 << 7
	RAFEVDOA   RAF = 1 << 8
	RAFHSDPA   RAF = 1 << 9
	RAFHSUPA   RAF = 1 << 10
	RAFHSPA    RAF = 1 << 11
	RAFEVDOB   RAF = 1 << 12
	RAFEHRPD   RAF = 1 << 13
	RAFLTE     RAF = 1 << 14
	RAFHSPAP   RAF = 1 << 15
	RAFGSM     RAF = 1 << 16
	RAFTDSCDMA RAF = 1 << 17
	RAFLTECA   RAF = 1 << 19
)

var rafNames = []struct {
	bit  RAF
	name string
}{
	{RAFUnknown, "unknown"}, {RAFGPRS, "gprs"}, {RAFEDGE, "edge"}, {RAFUMTS, "umts"},
	{RAFIS95A, "is95a"}, {RAFIS95B, "is95b"}, {RAF1xRTT, "1xrtt"}, {RAFEVDO0, "evdo0"},
	{RAFEVDOA, "evdoa"}, {RAFHSDPA, "hsdpa"}, {RAFHSUPA, "hsupa"}, {RAFHSPA, "hspa"},
	{RAFEVDOB, "evdob"}, {RAFEHRPD, "ehrpd"}, {RAFLTE, "lte"}, {RAFHSPAP, "hspap"},
	{RAFGSM, "gsm"}, {RAFTDSCDMA, "tdscdma"}, {RAFLTECA, "lteca"},
}

func (r RAF) String() string {
	var parts []string
	for _, n := range rafNames {
		if r&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseRAF accepts the names printed by RAF.String, joined with '|' or ','.
func ParseRAF(s string) (RAF, error) {
	var r RAF
	for _, f := range strings.FieldsFunc(s, func(c rune) bool { return c == '|' || c == ',' || c == ' ' }) {
		found := false
		for _, n := range rafNames {
			if strings.EqualFold(f, n.name) {
				r |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("ril: unknown radio access family %q", f)
		}
	}
	return r, nil
}

// Mode is an access mode bitmask.
type Mode uint32

const (
	ModeGSM  Mode = 1
	ModeUMTS Mode = 2
	ModeLTE  Mode = 4
)

const (
	rafGSM  = RAFGSM | RAFGPRS | RAFEDGE
	rafUMTS = RAFUMTS | RAFHSDPA | RAFHSUPA | RAFHSPA | RAFHSPAP | RAFTDSCDMA
	rafLTE  = RAFLTE | RAFLTECA
)

// Modes maps radio access families to access modes.
func (r RAF) Modes() Mode {
	var m Mode
	if r&rafGSM != 0 {
		m |= ModeGSM
	}
	if r&rafUMTS != 0 {
		m |= ModeUMTS
	}
	if r&rafLTE != 0 {
		m |= ModeLTE
	}
	return m
}

// Contains reports whether every mode in want is in m.
func (m Mode) Contains(want Mode) bool { return m&want == want }

func (m Mode) String() string {
	var parts []string
	if m&ModeGSM != 0 {
		parts = append(parts, "gsm")
	}
	if m&ModeUMTS != 0 {
		parts = append(parts, "umts")
	}
	if m&ModeLTE != 0 {
		parts = append(parts, "lte")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseMode accepts gsm, umts, lte joined with '|' or ','.
func ParseMode(s string) (Mode, error) {
	var m Mode
	for _, f := range strings.FieldsFunc(s, func(c rune) bool { return c == '|' || c == ',' || c == ' ' }) {
		switch strings.ToLower(f) {
		case "gsm", "2g":
			m |= ModeGSM
		case "umts", "3g":
			m |= ModeUMTS
		case "lte", "4g":
			m |= ModeLTE
		default:
			return 0, errors.Errorf("ril: unknown mode %q", f)
		}
	}
	return m, nil
}

// RadioCapability is one RAT capability offer.
type RadioCapability struct {
	Version          int32
	Session          int32
	Phase            Phase
	RAF              RAF
	LogicalModemUUID string
	Status           CapStatus
}

// Modes returns the access modes the capability supports.
func (c *RadioCapability) Modes() Mode {
	if c == nil {
		return 0
	}
	return c.RAF.Modes()
}

func (c RadioCapability) String() string {
	return fmt.Sprintf("{%d %d %s %s %q %s}", c.Version, c.Session, c.Phase, c.RAF, c.LogicalModemUUID, c.Status)
}

// Marshal encodes the capability as a GET/SET_RADIO_CAPABILITY parcel.
func (c RadioCapability) Marshal() []byte {
	var p Parcel
	p.PutInt32(c.Version)
	p.PutInt32(c.Session)
	p.PutInt32(int32(c.Phase))
	p.PutInt32(int32(c.RAF))
	p.PutString(c.LogicalModemUUID)
	p.PutInt32(int32(c.Status))
	return p.Bytes()
}

// UnmarshalCapability decodes a RADIO_CAPABILITY parcel.
func UnmarshalCapability(b []byte) (*RadioCapability, error) {
	r := NewParcelReader(b)
	c := &RadioCapability{
		Version: r.Int32(),
		Session: r.Int32(),
		Phase:   Phase(r.Int32()),
		RAF:     RAF(r.Int32()),
	}
	c.LogicalModemUUID = r.String()
	c.Status = CapStatus(r.Int32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if c.Version != CapabilityVersion {
		return nil, errors.Errorf("ril: unsupported radio capability version %d", c.Version)
	}
	if len(c.LogicalModemUUID) >= MaxLogicalModemUUID {
		return nil, errors.Errorf("ril: logical modem uuid too long (%d)", len(c.LogicalModemUUID))
	}
	return c, nil
}
