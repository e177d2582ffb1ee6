// Package orchestrator runs one claim scheduler per configured account.
//
// Accounts never share a facade, credential or scheduler, and one account's
// failures (including panics) never stop or delay another. The process-wide
// context passed to Run is the only way to stop the loops; individual
// accounts cannot be cancelled.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shaneisley/collector/pkg/backoff"
	"github.com/shaneisley/collector/pkg/claim"
	"github.com/shaneisley/collector/pkg/config"
	"github.com/shaneisley/collector/pkg/logging"
	"github.com/shaneisley/collector/pkg/scheduler"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// FacadeFactory builds the facade an account's scheduler will own
type FacadeFactory func(account config.Account) (claim.Facade, error)

// Handle tracks one account's claim loop
type Handle struct {
	Account  string
	done     chan struct{}
	restarts atomic.Int64
	err      error
}

// Done is closed when the account's loop has stopped for good
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Restarts counts how many times the loop was restarted after a panic
func (h *Handle) Restarts() int {
	return int(h.restarts.Load())
}

// Err returns why the loop stopped; only valid after Done is closed
func (h *Handle) Err() error {
	return h.err
}

// Orchestrator fans out one scheduler per account
type Orchestrator struct {
	accounts  []config.Account
	newFacade FacadeFactory
	newClock  func() scheduler.Clock
	backoff   backoff.Strategy
	logger    *logging.Logger
	recorder  scheduler.Recorder
	handles   []*Handle
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the process logger
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClockFactory gives every account its own clock
func WithClockFactory(newClock func() scheduler.Clock) Option {
	return func(o *Orchestrator) {
		o.newClock = newClock
	}
}

// WithBackoff replaces backoff.NewPolicy() for schedulers and panic restarts
func WithBackoff(strategy backoff.Strategy) Option {
	return func(o *Orchestrator) {
		o.backoff = strategy
	}
}

// WithRecorder forwards scheduler events, e.g. to the claim journal
func WithRecorder(recorder scheduler.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// New creates an orchestrator for accounts
func New(accounts []config.Account, newFacade FacadeFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		accounts:  accounts,
		newFacade: newFacade,
		newClock:  scheduler.SystemClock,
		backoff:   backoff.NewPolicy(),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("orchestrator")

	return o
}

// Handles returns the handles of the accounts started by Run
func (o *Orchestrator) Handles() []*Handle {
	return o.handles
}

// Run starts every account and blocks until all loops have stopped, which
// under normal operation only happens when ctx is cancelled at shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	wg := conc.NewWaitGroup()
	started := 0

	for _, account := range o.accounts {
		facade, err := o.newFacade(account)
		if err != nil {
			o.logger.WithAccount(account.Name).LogError("create client", err)
			continue
		}

		h := &Handle{Account: account.Name, done: make(chan struct{})}
		o.handles = append(o.handles, h)
		started++

		o.logger.Info("spawning claim loop", "account", account.Name)
		wg.Go(func() {
			defer close(h.done)
			h.err = o.runAccount(ctx, h, facade)
		})
	}

	if started == 0 {
		return errors.New("no account could be started")
	}

	wg.Wait()
	return ctx.Err()
}

// runAccount runs one account's scheduler, restarting it after a panic
func (o *Orchestrator) runAccount(ctx context.Context, h *Handle, facade claim.Facade) error {
	logger := o.logger.WithAccount(h.Account)
	clock := o.newClock()

	for {
		s := scheduler.New(h.Account, facade,
			scheduler.WithClock(clock),
			scheduler.WithBackoff(o.backoff),
			scheduler.WithLogger(o.logger),
			scheduler.WithRecorder(o.recorder),
		)

		var runErr error
		var catcher panics.Catcher
		catcher.Try(func() {
			runErr = s.Run(ctx)
		})

		recovered := catcher.Recovered()
		if recovered == nil {
			return runErr
		}

		restarts := h.restarts.Add(1)
		delay := o.backoff.Delay(int(restarts))
		logger.Error("claim loop panicked; restarting",
			"panic", fmt.Sprint(recovered.Value),
			"state", s.State().String(),
			"restarts", restarts,
			"delay", delay.String(),
			"stack", string(recovered.Stack))

		if err := clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
