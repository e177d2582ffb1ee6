package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/shaneisley/collector/pkg/scheduler"
	"github.com/sourcegraph/conc"
)

var (
	// ErrBacklogFull is returned when the writer queue has no room; the event is dropped
	ErrBacklogFull = errors.New("journal backlog full; event dropped")
	// ErrWriterClosed is returned for events recorded after Close
	ErrWriterClosed = errors.New("journal writer closed")
)

type queuedEvent struct {
	ctx context.Context
	ev  scheduler.Event
}

// Writer hands events to a single background goroutine. Record never waits
// on SQLite, so a slow or locked database cannot delay any claim loop.
type Writer struct {
	journal   *Journal
	queue     chan queuedEvent
	done      chan struct{}
	onError   func(error)
	wg        conc.WaitGroup
	closeOnce sync.Once
}

// Async starts a writer with room for buffer pending events. onError, if
// set, receives failed background writes.
func (j *Journal) Async(buffer int, onError func(err error)) *Writer {
	w := newWriter(j, buffer, onError)
	w.wg.Go(w.loop)
	return w
}

func newWriter(j *Journal, buffer int, onError func(err error)) *Writer {
	if buffer < 1 {
		buffer = 1
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Writer{
		journal: j,
		queue:   make(chan queuedEvent, buffer),
		done:    make(chan struct{}),
		onError: onError,
	}
}

// Record queues ev without blocking
func (w *Writer) Record(ctx context.Context, ev scheduler.Event) error {
	select {
	case <-w.done:
		return ErrWriterClosed
	default:
	}

	select {
	case w.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}:
		return nil
	default:
		return ErrBacklogFull
	}
}

func (w *Writer) loop() {
	for {
		select {
		case item := <-w.queue:
			w.write(item)
		case <-w.done:
			for {
				select {
				case item := <-w.queue:
					w.write(item)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(item queuedEvent) {
	if err := w.journal.Record(item.ctx, item.ev); err != nil {
		w.onError(err)
	}
}

// Close writes every queued event and stops the background goroutine. The
// journal itself stays open.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}
