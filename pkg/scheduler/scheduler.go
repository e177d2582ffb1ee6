// Package scheduler drives one account through an endless claim cycle:
// check eligibility, wait if needed, claim, wait for the next window, repeat.
// Any failure leads to a flat backoff and a fresh eligibility check.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaneisley/collector/pkg/backoff"
	"github.com/shaneisley/collector/pkg/claim"
	"github.com/shaneisley/collector/pkg/logging"
	"github.com/shaneisley/collector/pkg/window"
)

// State is a claim loop state. There is no terminal state.
type State int

const (
	StateCheckingEligibility State = iota
	StateWaitingForWindow
	StateClaiming
	StateWaitingForNextCycle
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateCheckingEligibility:
		return "checking_eligibility"
	case StateWaitingForWindow:
		return "waiting_for_window"
	case StateClaiming:
		return "claiming"
	case StateWaitingForNextCycle:
		return "waiting_for_next_cycle"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Scheduler runs the claim loop for a single account. It is not safe for
// concurrent use; each account owns exactly one Scheduler.
type Scheduler struct {
	account  string
	facade   claim.Facade
	backoff  backoff.Strategy
	clock    Clock
	logger   *logging.Logger
	recorder Recorder

	state    State
	wait     time.Duration
	failures int
	cycleID  string
	cycleLog *logging.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithBackoff replaces backoff.NewPolicy()
func WithBackoff(strategy backoff.Strategy) Option {
	return func(s *Scheduler) {
		s.backoff = strategy
	}
}

// WithLogger sets the logger; it is bound to the account name
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRecorder receives claim and failure events
func WithRecorder(recorder Recorder) Option {
	return func(s *Scheduler) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// New creates a scheduler for account that talks to facade
func New(account string, facade claim.Facade, opts ...Option) *Scheduler {
	s := &Scheduler{
		account:  account,
		facade:   facade,
		backoff:  backoff.NewPolicy(),
		clock:    SystemClock(),
		logger:   logging.Discard(),
		recorder: nopRecorder{},
		state:    StateCheckingEligibility,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler").WithAccount(account)
	s.cycleLog = s.logger

	return s
}

// State returns the current state
func (s *Scheduler) State() State {
	return s.state
}

// PendingWait returns the wait computed for the current waiting state
func (s *Scheduler) PendingWait() time.Duration {
	return s.wait
}

// Failures returns the number of consecutive failed cycles
func (s *Scheduler) Failures() int {
	return s.failures
}

// Run executes the claim loop until ctx is done, which only happens at
// process shutdown. It returns the error that stopped the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("claim loop started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(ctx); err != nil {
			s.logger.Info("claim loop stopped", "state", s.state.String(), "reason", err.Error())
			return err
		}
	}
}

// Step performs exactly one state transition. Facade failures are handled
// internally; a non-nil error means the clock or ctx stopped the loop.
func (s *Scheduler) Step(ctx context.Context) error {
	switch s.state {
	case StateCheckingEligibility:
		return s.checkEligibility(ctx)
	case StateWaitingForWindow:
		return s.sleepThen(ctx, StateClaiming)
	case StateClaiming:
		return s.submitClaim(ctx)
	case StateWaitingForNextCycle, StateBackoff:
		if err := s.sleepThen(ctx, StateCheckingEligibility); err != nil {
			return err
		}
		s.endCycle()
		return nil
	default:
		s.state = StateCheckingEligibility
		return nil
	}
}

func (s *Scheduler) checkEligibility(ctx context.Context) error {
	if s.cycleID == "" {
		s.startCycle()
	}

	status, err := s.facade.FetchStatus(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil && status == nil {
		err = &claim.Error{Kind: claim.KindDecode, Op: "fetch status", Err: errEmptyResponse}
	}
	if err != nil {
		s.fail(ctx, err)
		return nil
	}

	if status.CanClaim {
		s.cycleLog.Debug("can claim")
		s.state = StateClaiming
		return nil
	}

	s.wait = window.EligibilityWait(status.TimeRemainingMs)
	s.cycleLog.Debug("cannot claim yet",
		"remaining", window.FormatWait(time.Duration(status.TimeRemainingMs)*time.Millisecond))
	s.state = StateWaitingForWindow
	return nil
}

func (s *Scheduler) submitClaim(ctx context.Context) error {
	result, err := s.facade.SubmitClaim(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil && result == nil {
		err = &claim.Error{Kind: claim.KindDecode, Op: "submit claim", Err: errEmptyResponse}
	}
	if err != nil {
		s.fail(ctx, err)
		return nil
	}

	s.failures = 0
	now := s.clock.Now()
	if result.Success {
		s.cycleLog.LogClaimSuccess(result.RewardAmount, result.NewBalance, result.LoginStreak)
	} else {
		s.cycleLog.Warn("server reported the claim as unsuccessful",
			"success", false,
			"reward", result.RewardAmount,
			"new_balance", result.NewBalance)
	}

	if !window.HasUsableReference(result.NextClaimTime, now) {
		s.cycleLog.Info("server did not report a usable next claim time; defaulting to ~12h")
	}
	s.wait = window.ComputeWait(result.NextClaimTime, now)
	s.state = StateWaitingForNextCycle

	s.record(ctx, Event{
		Kind:     EventClaimed,
		Stage:    StateClaiming,
		At:       now,
		Result:   result,
		NextWait: s.wait,
	})
	return nil
}

// fail routes any facade failure to the backoff state
func (s *Scheduler) fail(ctx context.Context, err error) {
	stage := s.state
	s.failures++

	kind := claim.KindOf(err)
	s.cycleLog.LogClaimFailure(stage.String(), kind.String(), failureHint(kind), err)

	s.wait = s.backoff.Delay(s.failures)
	if s.wait < 0 {
		s.wait = 0
	}
	s.cycleLog.LogBackoff(s.wait, s.failures)
	s.state = StateBackoff

	s.record(ctx, Event{
		Kind:     EventFailed,
		Stage:    stage,
		At:       s.clock.Now(),
		Err:      err,
		NextWait: s.wait,
	})
}

// failureHint describes a failure kind for operators. Every kind is retried
// the same way, including auth failures, which retry forever.
func failureHint(kind claim.Kind) string {
	switch kind {
	case claim.KindTransport:
		return "remote API unreachable or returned an error status"
	case claim.KindAuth:
		return "credentials rejected; check api_key and cookie"
	case claim.KindDecode:
		return "response did not match the expected shape"
	default:
		return "unknown failure"
	}
}

func (s *Scheduler) sleepThen(ctx context.Context, next State) error {
	s.cycleLog.LogWait(s.state.String(), s.wait, window.FormatWait(s.wait))
	if err := s.clock.Sleep(ctx, s.wait); err != nil {
		return err
	}
	s.wait = 0
	s.state = next
	return nil
}

func (s *Scheduler) record(ctx context.Context, ev Event) {
	ev.Account = s.account
	ev.CycleID = s.cycleID
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.cycleLog.LogError("record event", err, "event", string(ev.Kind))
	}
}

func (s *Scheduler) startCycle() {
	s.cycleID = uuid.NewString()
	s.cycleLog = s.logger.WithCycle(s.cycleID)
}

func (s *Scheduler) endCycle() {
	s.cycleID = ""
	s.cycleLog = s.logger
}
