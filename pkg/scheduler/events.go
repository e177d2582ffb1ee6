package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/shaneisley/collector/pkg/claim"
)

// EventKind identifies what an Event reports
type EventKind string

const (
	EventClaimed EventKind = "claimed"
	EventFailed  EventKind = "failed"
)

// Event is emitted to a Recorder on claim success and on every failure.
// Events are for observability only; the scheduler never reads them back.
type Event struct {
	Kind     EventKind
	Account  string
	CycleID  string
	Stage    State
	At       time.Time
	Result   *claim.Result // set for EventClaimed
	Err      error         // set for EventFailed
	NextWait time.Duration // wait chosen after the event
}

// ErrorKind returns the claim error kind of a failure event
func (e Event) ErrorKind() claim.Kind {
	return claim.KindOf(e.Err)
}

// Recorder receives scheduler events
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) error { return nil }

var errEmptyResponse = errors.New("empty response")
