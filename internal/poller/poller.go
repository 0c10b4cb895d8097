// internal/poller/poller.go
package poller

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/modem-hal/internal/mbim"
)

// Client abstracts the device operation the poller needs.
type Client interface {
	Query(ctx context.Context, service mbim.UUID, cid uint32) (*mbim.Message, error)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Device   string
	Interval time.Duration
	Timeout  time.Duration // per query, 0 = none
	Queries  []Query
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg    Config
	client Client
}

// New creates a poller with immutable config.
func New(cfg Config, client Client) (*Poller, error) {
	if cfg.Device == "" {
		return nil, errors.New("poller: device name required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Queries) == 0 {
		return nil, errors.New("poller: at least one query required")
	}
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	return &Poller{cfg: cfg, client: client}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{
		Device: p.cfg.Device,
		At:     time.Now(),
	}

	var results []QueryResult

	for _, q := range p.cfg.Queries {
		m, err := p.query(ctx, q)
		if err != nil {
			res.Err = errors.Wrapf(err, "poller: %s", q.Name)
			var st mbim.Status
			if errors.As(err, &st) {
				res.Status = st
			} else {
				res.Status = mbim.StatusFailure
			}
			return res
		}

		r := QueryResult{
			Name:    q.Name,
			Service: q.Service,
			CID:     q.CID,
			Info:    m.InfoBuffer(),
		}
		// undecodable payloads are still delivered raw
		if v, err := mbim.Decode(m); err == nil {
			r.Decoded = v
		}
		results = append(results, r)
	}

	// Commit only if all queries succeeded
	res.Results = results
	return res
}

func (p *Poller) query(ctx context.Context, q Query) (*mbim.Message, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return p.client.Query(ctx, q.Service, q.CID)
}
