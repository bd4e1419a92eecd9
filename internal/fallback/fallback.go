// Package fallback runs alternative resolution strategies until one succeeds.
//
// It is the only place allowed to swallow intermediate failures: every
// failed attempt except the last is logged and dropped, and the caller sees
// the last strategy's error.
package fallback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"hoplink/internal/failure"
)

// Strategy is one independent way of producing a T.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// State is the orchestrator's position in Idle → Attempting → Succeeded|Exhausted.
type State int

const (
	Idle State = iota
	Attempting
	Succeeded
	Exhausted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Mode selects how strategies are scheduled.
type Mode int

const (
	// Sequential tries strategies in order, one at a time.
	Sequential Mode = iota
	// Race starts every strategy at once; the first success wins.
	Race
)

// Orchestrator holds the scheduling policy. The zero value runs
// sequentially with one attempt per strategy and a 15s timeout.
type Orchestrator struct {
	Timeout  time.Duration // per attempt
	Attempts uint          // tries per strategy, retrying only retryable failures
	Mode     Mode
	Log      *logrus.Entry

	// OnTransition observes state changes; index is the strategy index for
	// Attempting and -1 otherwise. Calls may come from several goroutines in
	// Race mode.
	OnTransition func(state State, index int)
}

const defaultTimeout = 15 * time.Second

func (o *Orchestrator) transition(s State, i int) {
	if o.OnTransition != nil {
		o.OnTransition(s, i)
	}
}

func (o *Orchestrator) log() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Run executes strategies per the orchestrator's mode and returns the first
// success. When all fail, it returns the error of the last strategy in list
// order.
func Run[T any](ctx context.Context, o *Orchestrator, strategies []Strategy[T]) (T, error) {
	var zero T
	if o == nil {
		o = &Orchestrator{}
	}
	o.transition(Idle, -1)
	if len(strategies) == 0 {
		o.transition(Exhausted, -1)
		return zero, failure.New(failure.ExtractionEmpty, "no resolution strategies available")
	}
	if o.Mode == Race && len(strategies) > 1 {
		return race(ctx, o, strategies)
	}
	return sequential(ctx, o, strategies)
}

func sequential[T any](ctx context.Context, o *Orchestrator, strategies []Strategy[T]) (T, error) {
	var zero T
	var lastErr error

	for i, s := range strategies {
		o.transition(Attempting, i)
		v, err := attempt(ctx, o, s)
		if err == nil {
			o.transition(Succeeded, -1)
			return v, nil
		}
		lastErr = err
		if i < len(strategies)-1 {
			o.log().WithFields(logrus.Fields{
				"strategy": s.Name,
				"kind":     failure.KindOf(err).String(),
			}).WithError(err).Warn("strategy failed, trying next")
		}
		if ctx.Err() != nil {
			// The caller gave up; remaining strategies would fail the same way.
			break
		}
	}

	o.transition(Exhausted, -1)
	return zero, lastErr
}

func race[T any](ctx context.Context, o *Orchestrator, strategies []Strategy[T]) (T, error) {
	var zero T
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(strategies))
	var (
		once   sync.Once
		winner T
		won    bool
	)

	p := pool.New().WithMaxGoroutines(len(strategies))
	for i, s := range strategies {
		p.Go(func() {
			o.transition(Attempting, i)
			v, err := attempt(ctx, o, s)
			if err != nil {
				errs[i] = err
				return
			}
			once.Do(func() {
				winner, won = v, true
				cancel()
			})
		})
	}
	p.Wait()

	if won {
		o.transition(Succeeded, -1)
		return winner, nil
	}

	last := len(strategies) - 1
	for i, err := range errs[:last] {
		o.log().WithField("strategy", strategies[i].Name).WithError(err).Warn("strategy failed")
	}
	o.transition(Exhausted, -1)
	return zero, errs[last]
}

// attempt runs one strategy under its own timeout, retrying when configured.
func attempt[T any](ctx context.Context, o *Orchestrator, s Strategy[T]) (T, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tries := o.Attempts
	if tries == 0 {
		tries = 1
	}

	once := func() (T, error) {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		v, err := s.Run(actx)
		if err != nil && actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			var fe *failure.Error
			if !errors.As(err, &fe) || fe.Kind != failure.UpstreamTimeout {
				err = failure.Wrap(failure.UpstreamTimeout, err, s.Name+" timed out")
			}
		}
		return v, err
	}

	if tries == 1 {
		return once()
	}

	return retry.DoWithData(once,
		retry.Context(ctx),
		retry.Attempts(tries),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return failure.Retryable(failure.KindOf(err))
		}),
		retry.OnRetry(func(n uint, err error) {
			o.log().WithFields(logrus.Fields{
				"strategy": s.Name,
				"attempt":  n + 1,
			}).WithError(err).Debug("retrying strategy")
		}),
	)
}
