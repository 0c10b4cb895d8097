// internal/poller/builder.go
package poller

import (
	"time"

	"github.com/pkg/errors"

	cfg "github.com/tamzrod/modem-hal/internal/config"
	"github.com/tamzrod/modem-hal/internal/mbim"
)

// Build constructs a Poller from validated, normalized config.
// The client is owned by the caller; the poller never closes it.
func Build(c *cfg.Config, client Client) (*Poller, error) {
	queries := make([]Query, 0, len(c.Poll.Queries))
	for _, q := range c.Poll.Queries {
		service, err := mbim.LookupService(q.Service)
		if err != nil {
			return nil, errors.Wrapf(err, "poller: query %s", q.Name)
		}
		queries = append(queries, Query{
			Name:    q.Name,
			Service: service,
			CID:     q.CID,
		})
	}

	return New(
		Config{
			Device:   c.Device.Name,
			Interval: time.Duration(c.Poll.IntervalMs) * time.Millisecond,
			Timeout:  time.Duration(c.Poll.TimeoutMs) * time.Millisecond,
			Queries:  queries,
		},
		client,
	)
}
