// internal/ril/request.go
package ril

import (
	"cmp"

	"golang.org/x/exp/slices"
)

// Role says why a slot wants a mode. Higher roles win.
type Role int

const (
	RoleInternet Role = iota + 1
	RoleMMS
)

func (r Role) String() string {
	switch r {
	case RoleInternet:
		return "internet"
	case RoleMMS:
		return "mms"
	}
	return "none"
}

// Request asks the manager to give a slot at least the given modes.
// Only the highest priority request is honoured at any time.
type Request struct {
	caps  *Caps
	mode  Mode
	role  Role
	freed bool
}

func RequestNew(c *Caps, mode Mode, role Role) *Request {
	r := &Request{caps: c, mode: mode, role: role}
	m := c.mgr
	m.requests = append(m.requests, r)
	m.updateRequests()
	return r
}

// Free withdraws the request.
func (r *Request) Free() {
	if r == nil || r.freed {
		return
	}
	r.freed = true
	m := r.caps.mgr
	if i := slices.Index(m.requests, r); i >= 0 {
		m.requests = slices.Delete(m.requests, i, i+1)
	}
	m.updateRequests()
}

func (m *Manager) updateRequests() {
	slices.SortStableFunc(m.requests, func(a, b *Request) int { return cmp.Compare(b.role, a.role) })

	var top *Request
	if len(m.requests) > 0 {
		top = m.requests[0]
	}

	changed := false
	for _, c := range m.agents {
		var want Mode
		if top != nil && top.caps == c {
			want = top.mode
		}
		if c.requestedModes != want {
			c.requestedModes = want
			changed = true
		}
	}
	if changed {
		m.log.Debug("requested modes changed")
		m.scheduleCheck()
	}
}
