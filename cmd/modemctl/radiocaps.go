// cmd/modemctl/radiocaps.go
package main

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/tamzrod/modem-hal/internal/config"
	"github.com/tamzrod/modem-hal/internal/ril"
)

type RadioCapsCmd struct {
	Plan RadioCapsPlanCmd `cmd:"" help:"Show the capability assignment the manager would pick for the configured slots"`
}

type RadioCapsPlanCmd struct{}

type planSlot struct {
	Slot      int    `json:"slot"`
	Usable    bool   `json:"usable"`
	Requested string `json:"requested,omitempty"`
	Current   string `json:"current"`
	Assigned  string `json:"assigned"`
	From      int    `json:"from"`
	UUID      string `json:"uuid,omitempty"`
}

type planOutput struct {
	Slots         []planSlot `json:"slots"`
	Score         int        `json:"score"`
	IdentityScore int        `json:"identity_score"`
	Switch        bool       `json:"switch"`
}

func (c *RadioCapsPlanCmd) Run(globals *CLI) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	out, err := plan(cfg.RadioCaps.Slots)
	if err != nil {
		return err
	}
	return printJSON(out)
}

// plan orders the slots by index and runs the assignment search over them.
func plan(slots []config.SlotConfig) (*planOutput, error) {
	if len(slots) == 0 {
		return nil, errors.New("radio-caps: no slots configured")
	}
	slots = slices.Clone(slots)
	slices.SortFunc(slots, func(a, b config.SlotConfig) int { return a.Slot - b.Slot })

	states := make([]ril.SlotState, len(slots))
	for i, s := range slots {
		raf, err := ril.ParseRAF(s.RAF)
		if err != nil {
			return nil, errors.Wrapf(err, "radio-caps: slot %d", s.Slot)
		}
		mode, err := ril.ParseMode(s.Requested)
		if err != nil {
			return nil, errors.Wrapf(err, "radio-caps: slot %d", s.Slot)
		}
		states[i] = ril.SlotState{
			Usable:    s.Online && s.SIM,
			Requested: mode,
			Cap:       ril.RadioCapability{RAF: raf, LogicalModemUUID: s.UUID},
		}
	}

	best := ril.BestAssignment(states)
	out := &planOutput{
		Score:         best.Score,
		IdentityScore: best.IdentityScore,
		Switch:        best.Better(),
	}
	for k, s := range slots {
		from := k
		if out.Switch {
			from = best.Perm[k]
		}
		ps := planSlot{
			Slot:     s.Slot,
			Usable:   states[k].Usable,
			Current:  states[k].Cap.RAF.String(),
			Assigned: states[from].Cap.RAF.String(),
			From:     slots[from].Slot,
			UUID:     states[from].Cap.LogicalModemUUID,
		}
		if states[k].Requested != 0 {
			ps.Requested = states[k].Requested.String()
		}
		out.Slots = append(out.Slots, ps)
	}
	return out, nil
}
