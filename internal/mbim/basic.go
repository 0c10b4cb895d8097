// internal/mbim/basic.go
package mbim

import "github.com/pkg/errors"

// Basic Connect information buffer layouts.
const (
	SigDeviceCaps            = "uuuuuuuussss"
	SigSubscriberReadyStatus = "ussuas"
	SigRadioState            = "uu"
	SigSetRadioState         = "u"
	SigSignalState           = "uuuuu"
	SigRegisterState         = "uuuuusssu"
)

// ---- QUERIES ----

// Query returns a sealed query command with an empty information buffer.
func Query(service UUID, cid uint32) *Message {
	m := NewCommand(service, cid, CommandTypeQuery)
	// an empty signature cannot fail
	_ = m.SetArguments("")
	return m
}

// SetRadioState returns a sealed RADIO_STATE set command.
func SetRadioState(on bool) *Message {
	var v uint32
	if on {
		v = 1
	}
	m := NewCommand(UUIDBasicConnect, CIDRadioState, CommandTypeSet)
	_ = m.SetArguments(SigSetRadioState, v)
	return m
}

// ---- DECODED TYPES ----

type DeviceCaps struct {
	DeviceType      uint32 `json:"device_type"`
	CellularClass   uint32 `json:"cellular_class"`
	VoiceClass      uint32 `json:"voice_class"`
	SIMClass        uint32 `json:"sim_class"`
	DataClass       uint32 `json:"data_class"`
	SMSCaps         uint32 `json:"sms_caps"`
	ControlCaps     uint32 `json:"control_caps"`
	MaxSessions     uint32 `json:"max_sessions"`
	CustomDataClass string `json:"custom_data_class,omitempty"`
	DeviceID        string `json:"device_id"`
	FirmwareInfo    string `json:"firmware_info"`
	HardwareInfo    string `json:"hardware_info"`
}

type SubscriberReadyStatus struct {
	ReadyState       uint32   `json:"ready_state"`
	SubscriberID     string   `json:"subscriber_id"`
	SIMICCID         string   `json:"sim_iccid"`
	ReadyInfo        uint32   `json:"ready_info"`
	TelephoneNumbers []string `json:"telephone_numbers"`
}

type RadioState struct {
	Hardware uint32 `json:"hw"`
	Software uint32 `json:"sw"`
}

// On reports whether both switches are on.
func (r RadioState) On() bool { return r.Hardware == 1 && r.Software == 1 }

type SignalState struct {
	RSSI                   uint32 `json:"rssi"`
	ErrorRate              uint32 `json:"error_rate"`
	SignalStrengthInterval uint32 `json:"signal_strength_interval"`
	RSSIThreshold          uint32 `json:"rssi_threshold"`
	ErrorRateThreshold     uint32 `json:"error_rate_threshold"`
}

// DBm converts the coded RSSI (0..31, 99 unknown) to dBm.
func (s SignalState) DBm() (int, bool) {
	if s.RSSI > 31 {
		return 0, false
	}
	return -113 + 2*int(s.RSSI), true
}

type RegisterState struct {
	NetworkError         uint32 `json:"nw_error"`
	RegisterState        uint32 `json:"register_state"`
	RegisterMode         uint32 `json:"register_mode"`
	AvailableDataClasses uint32 `json:"available_data_classes"`
	CurrentCellularClass uint32 `json:"current_cellular_class"`
	ProviderID           string `json:"provider_id"`
	ProviderName         string `json:"provider_name"`
	RoamingText          string `json:"roaming_text"`
	RegistrationFlag     uint32 `json:"registration_flag"`
}

// ---- DECODERS ----

// response checks that m carries cid of Basic Connect and completed successfully.
func response(m *Message, cid uint32) error {
	if m == nil {
		return errors.Wrap(ErrMalformed, "no response")
	}
	if err := m.Err(); err != nil {
		return err
	}
	if m.UUID() != UUIDBasicConnect || m.CID() != cid {
		return errors.Wrapf(ErrMalformed, "unexpected %s cid %d", m.UUID().ServiceName(), m.CID())
	}
	return nil
}

func ParseDeviceCaps(m *Message) (*DeviceCaps, error) {
	if err := response(m, CIDDeviceCaps); err != nil {
		return nil, err
	}
	var c DeviceCaps
	err := m.Arguments(SigDeviceCaps,
		&c.DeviceType, &c.CellularClass, &c.VoiceClass, &c.SIMClass,
		&c.DataClass, &c.SMSCaps, &c.ControlCaps, &c.MaxSessions,
		&c.CustomDataClass, &c.DeviceID, &c.FirmwareInfo, &c.HardwareInfo)
	if err != nil {
		return nil, errors.Wrap(err, "device caps")
	}
	return &c, nil
}

func ParseSubscriberReadyStatus(m *Message) (*SubscriberReadyStatus, error) {
	if err := response(m, CIDSubscriberReadyStatus); err != nil {
		return nil, err
	}
	var (
		s       SubscriberReadyStatus
		numbers Iter
	)
	if err := m.Arguments(SigSubscriberReadyStatus, &s.ReadyState, &s.SubscriberID, &s.SIMICCID, &s.ReadyInfo, &numbers); err != nil {
		return nil, errors.Wrap(err, "subscriber ready status")
	}
	s.TelephoneNumbers = make([]string, 0, numbers.Remaining())
	var n string
	for numbers.Next(&n) {
		s.TelephoneNumbers = append(s.TelephoneNumbers, n)
	}
	if err := numbers.Err(); err != nil {
		return nil, errors.Wrap(err, "telephone numbers")
	}
	return &s, nil
}

func ParseRadioState(m *Message) (*RadioState, error) {
	if err := response(m, CIDRadioState); err != nil {
		return nil, err
	}
	var r RadioState
	if err := m.Arguments(SigRadioState, &r.Hardware, &r.Software); err != nil {
		return nil, errors.Wrap(err, "radio state")
	}
	return &r, nil
}

func ParseSignalState(m *Message) (*SignalState, error) {
	if err := response(m, CIDSignalState); err != nil {
		return nil, err
	}
	var s SignalState
	err := m.Arguments(SigSignalState, &s.RSSI, &s.ErrorRate, &s.SignalStrengthInterval, &s.RSSIThreshold, &s.ErrorRateThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "signal state")
	}
	return &s, nil
}

func ParseRegisterState(m *Message) (*RegisterState, error) {
	if err := response(m, CIDRegisterState); err != nil {
		return nil, err
	}
	var r RegisterState
	err := m.Arguments(SigRegisterState,
		&r.NetworkError, &r.RegisterState, &r.RegisterMode, &r.AvailableDataClasses,
		&r.CurrentCellularClass, &r.ProviderID, &r.ProviderName, &r.RoamingText, &r.RegistrationFlag)
	if err != nil {
		return nil, errors.Wrap(err, "register state")
	}
	return &r, nil
}

// Decode picks the decoder for a Basic Connect response or indication.
// Unknown services and CIDs return nil without error.
func Decode(m *Message) (any, error) {
	if m == nil || m.UUID() != UUIDBasicConnect {
		return nil, nil
	}
	switch m.CID() {
	case CIDDeviceCaps:
		return decoded(ParseDeviceCaps(m))
	case CIDSubscriberReadyStatus:
		return decoded(ParseSubscriberReadyStatus(m))
	case CIDRadioState:
		return decoded(ParseRadioState(m))
	case CIDSignalState:
		return decoded(ParseSignalState(m))
	case CIDRegisterState:
		return decoded(ParseRegisterState(m))
	}
	return nil, nil
}

func decoded[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
