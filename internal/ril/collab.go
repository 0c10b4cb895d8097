// internal/ril/collab.go
package ril

import "time"

// ResponseFunc receives a RIL completion. Transport failures (timeouts,
// channel errors) arrive as a non-success status with no data.
type ResponseFunc func(status Errno, data []byte)

// SendOptions qualify a request on its channel.
type SendOptions struct {
	Blocking bool // head of line within the channel queue
	Timeout  time.Duration
	Retries  int
}

// IO is one RIL request channel.
type IO interface {
	// Send queues a request; 0 means it was not queued.
	Send(code uint32, data []byte, opts SendOptions, cb ResponseFunc) uint32
	Cancel(id uint32)

	// TxStart asks for exclusive use of the channel and reports whether it
	// was granted right away. A queued transaction is granted later; owner
	// change handlers fire when that happens.
	TxStart() bool
	TxOwned() bool
	TxFinish()
	// Pending counts requests on the channel that do not belong to the
	// current transaction owner.
	Pending() int

	AddOwnerChangedHandler(fn func()) uint32
	AddPendingChangedHandler(fn func()) uint32
	AddUnsolHandler(code uint32, fn func(data []byte)) uint32
	RemoveHandler(id uint32)
}

// SimCard reports card presence and whether SIM I/O is in flight.
type SimCard interface {
	Present() bool
	IOActive() bool
	AddStateChangedHandler(fn func()) uint32
	AddIOActiveChangedHandler(fn func()) uint32
	RemoveHandler(id uint32)
}

// Radio reports the radio power state.
type Radio interface {
	Online() bool
	AddStateChangedHandler(fn func()) uint32
	RemoveHandler(id uint32)
}

// Watch follows the modem behind a slot.
type Watch interface {
	// Present reports whether the slot is enabled and its modem exists.
	Present() bool
	IMSI() string
	AddPresenceChangedHandler(fn func()) uint32
	AddIMSIChangedHandler(fn func()) uint32
	RemoveHandler(id uint32)
}

// Settings holds per-slot network preferences.
type Settings interface {
	PrefMode() Mode
	AddPrefModeChangedHandler(fn func()) uint32
	RemoveHandler(id uint32)
}

// Data is the per-slot data call state.
type Data interface {
	// ActiveCalls returns the context ids of active data calls.
	ActiveCalls() []int32
	PollCallState()
}

// DataManager re-evaluates which slot may carry data.
type DataManager interface {
	CheckData()
}
