// Package fallback implements the recording-strategy fallback state machine.
//
// The controller is engaged after the primary instrumented build failed or
// produced an empty compilation record:
//
//	Primary → Retrying → {Recovered, Exhausted}
//	Primary → Exhausted (no alternative strategy configured)
//
// The retry budget is fixed at one. The two strategies are different
// mechanisms, so there is no backoff and no second retry.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/build, internal/pipeline
package fallback

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// ValidTransitions defines all allowed state transitions.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.FallbackState][]constants.FallbackState{
	constants.FallbackStatePrimary:  {constants.FallbackStateRetrying, constants.FallbackStateExhausted},
	constants.FallbackStateRetrying: {constants.FallbackStateRecovered, constants.FallbackStateExhausted},
}

// IsValidTransition checks if a transition is allowed.
func IsValidTransition(from, to constants.FallbackState) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// IsTerminal reports whether no further transition is possible from state.
func IsTerminal(state constants.FallbackState) bool {
	_, ok := ValidTransitions[state]
	return !ok
}

// RetryFunc re-runs the instrumented build with the given strategy.
type RetryFunc func(ctx context.Context, strategy constants.RecordingStrategy) (*domain.BuildAttempt, error)

// Controller tracks one fallback sequence. It is safe for concurrent reads.
type Controller struct {
	mu          sync.Mutex
	state       constants.FallbackState
	retries     int
	maxRetries  int
	alternative constants.RecordingStrategy
	transitions []domain.FallbackTransition
	clock       clock.Clock
}

// NewController creates a controller in the Primary state. An empty
// alternative means no secondary strategy is configured.
func NewController(alternative constants.RecordingStrategy, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Controller{
		state:       constants.FallbackStatePrimary,
		maxRetries:  constants.MaxFallbackRetries,
		alternative: alternative,
		clock:       clk,
	}
}

// State returns the current state.
func (c *Controller) State() constants.FallbackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Retries returns the number of retries performed.
func (c *Controller) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Transitions returns a copy of the transition history.
func (c *Controller) Transitions() []domain.FallbackTransition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transitions)
}

// Transition moves the machine to a new state.
func (c *Controller) Transition(to constants.FallbackState, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(to, reason)
}

func (c *Controller) transitionLocked(to constants.FallbackState, reason string) error {
	if !IsValidTransition(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", scribeerrors.ErrInvalidTransition, c.state, to)
	}
	c.transitions = append(c.transitions, domain.FallbackTransition{
		From:      c.state,
		To:        to,
		Timestamp: c.clock.Now().UTC(),
		Reason:    reason,
	})
	c.state = to
	return nil
}

// BeginRetry consumes the retry budget and enters Retrying. It returns the
// strategy to retry with. Without budget or alternative the machine moves to
// Exhausted and ErrRetryBudgetExhausted is returned.
func (c *Controller) BeginRetry(reason string) (constants.RecordingStrategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != constants.FallbackStatePrimary {
		return "", fmt.Errorf("%w: retry requested in state %s", scribeerrors.ErrInvalidTransition, c.state)
	}

	if c.alternative == "" || c.retries >= c.maxRetries {
		if err := c.transitionLocked(constants.FallbackStateExhausted, "no alternative strategy available"); err != nil {
			return "", err
		}
		return "", scribeerrors.ErrRetryBudgetExhausted
	}

	if err := c.transitionLocked(constants.FallbackStateRetrying, reason); err != nil {
		return "", err
	}
	c.retries++
	return c.alternative, nil
}

// Resolve ends the retry: Recovered when the retry produced a record,
// Exhausted otherwise.
func (c *Controller) Resolve(produced bool, reason string) error {
	to := constants.FallbackStateExhausted
	if produced {
		to = constants.FallbackStateRecovered
	}
	return c.Transition(to, reason)
}

// Recover drives the whole sequence after a failed primary attempt. It
// returns the retry attempt (nil if none ran) and ErrInstrumentation when
// the machine ends Exhausted.
func (c *Controller) Recover(ctx context.Context, primaryFailure string, retry RetryFunc) (*domain.BuildAttempt, error) {
	log := zerolog.Ctx(ctx)

	strategy, err := c.BeginRetry(primaryFailure)
	if err != nil {
		log.Error().Err(err).Str("state", c.State().String()).Msg("fallback exhausted without retry")
		return nil, fmt.Errorf("%w: primary: %s: %w", scribeerrors.ErrInstrumentation, primaryFailure, err)
	}

	log.Warn().
		Str("reason", primaryFailure).
		Str("strategy", strategy.String()).
		Msg("primary recording failed, retrying with alternative strategy")

	attempt, retryErr := retry(ctx, strategy)
	if attempt.ProducedRecord() {
		if err := c.Resolve(true, fmt.Sprintf("%s produced %d entries", strategy, attempt.RecordEntries)); err != nil {
			return attempt, err
		}
		log.Info().Str("strategy", strategy.String()).Msg("fallback recovered")
		return attempt, nil
	}

	reason := retryReason(attempt, retryErr)
	if err := c.Resolve(false, reason); err != nil {
		return attempt, err
	}

	log.Error().Str("reason", reason).Msg("fallback exhausted")
	if ctx.Err() != nil {
		return attempt, ctx.Err()
	}
	return attempt, fmt.Errorf("%w: primary: %s; %s: %s", scribeerrors.ErrInstrumentation, primaryFailure, strategy, reason)
}

func retryReason(attempt *domain.BuildAttempt, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case attempt == nil:
		return "no attempt"
	case attempt.Error != "":
		return attempt.Error
	default:
		return "empty compilation record"
	}
}
