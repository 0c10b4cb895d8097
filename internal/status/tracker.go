// internal/status/tracker.go
package status

// Tracker owns the health state of one device.
// Every method reports whether the snapshot changed.
// Not safe for concurrent use: the runner owns it.
type Tracker struct {
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe records the outcome of one poll cycle. code is the raw device
// status of a failed cycle.
func (t *Tracker) Observe(err error, code uint32) bool {
	if t.snap.Health == HealthDisabled {
		return false
	}
	changed := false

	if err == nil {
		// Recovery / OK
		if t.snap.Health != HealthOK {
			t.snap.Health = HealthOK
			changed = true
		}
		if t.snap.LastErrorCode != 0 {
			t.snap.LastErrorCode = 0
			changed = true
		}
		if t.snap.SecondsInError != 0 {
			t.snap.SecondsInError = 0
			changed = true
		}
		return changed
	}

	if t.snap.Health != HealthError {
		t.snap.Health = HealthError
		changed = true
	}
	if code == 0 {
		code = 1
	}
	if t.snap.LastErrorCode != code {
		t.snap.LastErrorCode = code
		changed = true
	}
	// seconds_in_error increments on Tick only
	return changed
}

// Tick advances SecondsInError once per second while not OK.
// It MUST NOT wrap.
func (t *Tracker) Tick() bool {
	if t.snap.Health == HealthOK || t.snap.SecondsInError >= MaxSecondsInError {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// Stale marks results as old without touching the error fields.
func (t *Tracker) Stale() bool {
	if t.snap.Health != HealthOK {
		return false
	}
	t.snap.Health = HealthStale
	return true
}

// Disconnected is terminal: later observations are ignored.
func (t *Tracker) Disconnected() bool {
	if t.snap.Health == HealthDisabled {
		return false
	}
	t.snap.Health = HealthDisabled
	return true
}

// SetOutstanding records the commands in flight on the device.
func (t *Tracker) SetOutstanding(n int) bool {
	if t.snap.Outstanding == n {
		return false
	}
	t.snap.Outstanding = n
	return true
}
