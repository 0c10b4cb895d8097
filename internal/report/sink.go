// internal/report/sink.go
package report

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Sink serializes records as JSON lines. Safe for concurrent use.
type Sink struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

func NewSink(w io.Writer) *Sink {
	return &Sink{enc: json.NewEncoder(w), now: time.Now}
}

func (s *Sink) emit(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		return errors.Wrap(err, "report: write")
	}
	return nil
}

// Open returns the report destination: stdout for "" or "-", otherwise the
// file at path opened for appending.
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "report: open")
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
