// internal/ril/constants.go
package ril

import "fmt"

// Request and unsolicited codes used by the radio capability logic.
const (
	RequestDeactivateDataCall uint32 = 41
	RequestAllowData          uint32 = 123
	RequestGetRadioCapability uint32 = 130
	RequestSetRadioCapability uint32 = 131
	UnsolRadioCapability      uint32 = 1042
)

// Errno is a RIL_E_* completion code.
type Errno int32

const (
	ESuccess             Errno = 0
	ERadioNotAvailable   Errno = 1
	EGenericFailure      Errno = 2
	ERequestNotSupported Errno = 6
	ECancelled           Errno = 7
	EOperationNotAllowed Errno = 54
)

func (e Errno) String() string {
	switch e {
	case ESuccess:
		return "SUCCESS"
	case ERadioNotAvailable:
		return "RADIO_NOT_AVAILABLE"
	case EGenericFailure:
		return "GENERIC_FAILURE"
	case ERequestNotSupported:
		return "REQUEST_NOT_SUPPORTED"
	case ECancelled:
		return "CANCELLED"
	case EOperationNotAllowed:
		return "OPERATION_NOT_ALLOWED"
	}
	return fmt.Sprintf("RIL_E_%d", int32(e))
}

func (e Errno) Error() string { return "ril: " + e.String() }
