// cmd/modemctl/poll.go
package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/modem-hal/internal/poller"
	"github.com/tamzrod/modem-hal/internal/report"
	"github.com/tamzrod/modem-hal/internal/status"
)

type PollCmd struct {
	Count int `help:"Stop after this many poll cycles (0 = run until interrupted)"`
}

func (c *PollCmd) Run(globals *CLI) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Poll.Queries) == 0 {
		return errors.New("poll: no queries configured")
	}

	return globals.runSession(cfg, func(ctx context.Context, s *session) error {
		p, err := poller.Build(cfg, s.client)
		if err != nil {
			return err
		}

		w, err := report.Open(cfg.Report.Path)
		if err != nil {
			return err
		}
		defer w.Close()
		sink := report.NewSink(w)

		interval := time.Duration(cfg.Poll.IntervalMs) * time.Millisecond
		o := &orchestrator{
			log:         s.log,
			tracker:     status.NewTracker(),
			data:        report.NewWriter(sink),
			status:      report.NewStatusWriter(sink, cfg.Device.Name, cfg.Report.DeviceName),
			staleAfter:  2 * interval,
			outstanding: s.client.Outstanding,
			limit:       c.Count,
			now:         time.Now,
		}

		pctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := make(chan poller.PollResult)
		go p.Run(pctx, out)

		secTicker := time.NewTicker(time.Second)
		defer secTicker.Stop()

		err = o.run(pctx, out, s.client.Done(), secTicker.C)
		if errors.Is(err, errDeviceLost) {
			return errors.Wrap(s.client.Err(), "device lost")
		}
		return err
	})
}

var errDeviceLost = errors.New("device lost")

// orchestrator owns the device health state: poll results drive it, a 1 Hz
// ticker ages it, and every change is handed to the status writer.
type orchestrator struct {
	log     *logrus.Entry
	tracker *status.Tracker
	data    report.Writer
	status  report.StatusWriter

	staleAfter  time.Duration // 0 = never stale
	outstanding func() int    // optional
	limit       int           // 0 = unlimited
	now         func() time.Time
}

func (o *orchestrator) writeStatus(changed bool) {
	if !changed {
		return
	}
	if err := o.status.WriteStatus(o.tracker.Snapshot()); err != nil {
		o.log.WithError(err).Warn("status write failed")
	}
}

// run returns nil when ctx ends or limit cycles have been reported, and
// errDeviceLost once gone is closed.
func (o *orchestrator) run(ctx context.Context, in <-chan poller.PollResult, gone <-chan struct{}, tick <-chan time.Time) error {
	// Full record on start (identity re-assert).
	o.writeStatus(true)

	last := o.now()
	cycles := 0

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-gone:
			o.writeStatus(o.tracker.Disconnected())
			return errDeviceLost

		case res := <-in:
			last = o.now()

			// --- data delivery ---
			if err := o.data.Write(res); err != nil {
				o.log.WithError(err).Warn("report write failed")
			}
			if res.Err != nil {
				o.log.WithError(res.Err).WithField("status", res.Status).Debug("poll failed")
			}

			// --- status update (device-level truth) ---
			o.writeStatus(o.tracker.Observe(res.Err, uint32(res.Status)))

			cycles++
			if o.limit > 0 && cycles >= o.limit {
				return nil
			}

		case t := <-tick:
			// seconds_in_error advances here only
			changed := o.tracker.Tick()
			if o.staleAfter > 0 && t.Sub(last) > o.staleAfter && o.tracker.Stale() {
				changed = true
			}
			if o.outstanding != nil && o.tracker.SetOutstanding(o.outstanding()) {
				changed = true
			}
			o.writeStatus(changed)
		}
	}
}
