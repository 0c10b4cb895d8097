// internal/mbim/constants.go
package mbim

import "fmt"

// MessageType is the first header word of every MBIM control message.
type MessageType uint32

const (
	TypeOpen           MessageType = 0x00000001
	TypeClose          MessageType = 0x00000002
	TypeCommand        MessageType = 0x00000003
	TypeHostError      MessageType = 0x00000004
	TypeOpenDone       MessageType = 0x80000001
	TypeCloseDone      MessageType = 0x80000002
	TypeCommandDone    MessageType = 0x80000003
	TypeFunctionError  MessageType = 0x80000004
	TypeIndicateStatus MessageType = 0x80000007
)

func (t MessageType) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeClose:
		return "CLOSE"
	case TypeCommand:
		return "COMMAND"
	case TypeHostError:
		return "HOST_ERROR"
	case TypeOpenDone:
		return "OPEN_DONE"
	case TypeCloseDone:
		return "CLOSE_DONE"
	case TypeCommandDone:
		return "COMMAND_DONE"
	case TypeFunctionError:
		return "FUNCTION_ERROR"
	case TypeIndicateStatus:
		return "INDICATE_STATUS"
	}
	return fmt.Sprintf("0x%08x", uint32(t))
}

// CommandType selects query or set semantics of a COMMAND.
type CommandType uint32

const (
	CommandTypeQuery CommandType = 0
	CommandTypeSet   CommandType = 1
)

// Status is the completion status of a COMMAND_DONE or the error of a FUNCTION_ERROR.
type Status uint32

const (
	StatusSuccess              Status = 0
	StatusBusy                 Status = 1
	StatusFailure              Status = 2
	StatusSIMNotInserted       Status = 3
	StatusBadSIM               Status = 4
	StatusPINRequired          Status = 5
	StatusPINDisabled          Status = 6
	StatusNotRegistered        Status = 7
	StatusProvidersNotFound    Status = 8
	StatusNoDeviceSupport      Status = 9
	StatusProviderNotVisible   Status = 10
	StatusDataClassUnavailable Status = 11
	StatusPacketServiceDetach  Status = 12
	StatusMaxActivatedContexts Status = 13
	StatusNotInitialized       Status = 14
	StatusVoiceCallInProgress  Status = 15
	StatusContextNotActivated  Status = 16
	StatusServiceNotActivated  Status = 17
	StatusInvalidAccessString  Status = 18
	StatusInvalidUserNamePwd   Status = 19
	StatusRadioPowerOff        Status = 20
	StatusInvalidParameters    Status = 21
	StatusReadFailure          Status = 22
	StatusWriteFailure         Status = 23
	StatusOperationNotAllowed  Status = 28
)

var statusNames = map[Status]string{
	StatusSuccess:              "success",
	StatusBusy:                 "busy",
	StatusFailure:              "failure",
	StatusSIMNotInserted:       "sim-not-inserted",
	StatusBadSIM:               "bad-sim",
	StatusPINRequired:          "pin-required",
	StatusPINDisabled:          "pin-disabled",
	StatusNotRegistered:        "not-registered",
	StatusProvidersNotFound:    "providers-not-found",
	StatusNoDeviceSupport:      "no-device-support",
	StatusProviderNotVisible:   "provider-not-visible",
	StatusDataClassUnavailable: "data-class-not-available",
	StatusPacketServiceDetach:  "packet-service-detached",
	StatusMaxActivatedContexts: "max-activated-contexts",
	StatusNotInitialized:       "not-initialized",
	StatusVoiceCallInProgress:  "voice-call-in-progress",
	StatusContextNotActivated:  "context-not-activated",
	StatusServiceNotActivated:  "service-not-activated",
	StatusInvalidAccessString:  "invalid-access-string",
	StatusInvalidUserNamePwd:   "invalid-user-name-pwd",
	StatusRadioPowerOff:        "radio-power-off",
	StatusInvalidParameters:    "invalid-parameters",
	StatusReadFailure:          "read-failure",
	StatusWriteFailure:         "write-failure",
	StatusOperationNotAllowed:  "operation-not-allowed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status 0x%08x", uint32(s))
}

// Error makes a non-success Status usable as an error value.
func (s Status) Error() string { return "mbim: " + s.String() }

// Basic Connect service CIDs.
const (
	CIDDeviceCaps                 uint32 = 1
	CIDSubscriberReadyStatus      uint32 = 2
	CIDRadioState                 uint32 = 3
	CIDPIN                        uint32 = 4
	CIDPINList                    uint32 = 5
	CIDHomeProvider               uint32 = 6
	CIDPreferredProviders         uint32 = 7
	CIDVisibleProviders           uint32 = 8
	CIDRegisterState              uint32 = 9
	CIDPacketService              uint32 = 10
	CIDSignalState                uint32 = 11
	CIDConnect                    uint32 = 12
	CIDProvisionedContexts        uint32 = 13
	CIDServiceActivation          uint32 = 14
	CIDIPConfiguration            uint32 = 15
	CIDDeviceServices             uint32 = 16
	CIDDeviceServiceSubscribeList uint32 = 19
	CIDPacketStatistics           uint32 = 20
	CIDNetworkIdleHint            uint32 = 21
	CIDEmergencyMode              uint32 = 22
	CIDIPPacketFilters            uint32 = 23
	CIDMulticarrierProviders      uint32 = 24
)
