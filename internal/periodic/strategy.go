package periodic

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
)

// Built-in strategy names accepted by Config.Strategy.
const (
	StrategyLastStarted        = "last_started"
	StrategyLastStartedJitter  = "last_started_jitter"
	StrategyLastFinished       = "last_finished"
	StrategyLastFinishedJitter = "last_finished_jitter"
)

// recurringFunc computes the next due time for a callback after a
// completed run, given the observed start/finish timestamps and a
// snapshot of the callback's metrics.
type recurringFunc func(cb *Callback, startedAt, finishedAt time.Time, m Metrics) time.Time

// initialFunc computes the first due time for a callback that has never
// run, at registration time.
type initialFunc func(cb *Callback, now time.Time) time.Time

// strategy pairs the recurring and initial scheduling functions resolved
// once at worker construction.
type strategy struct {
	name      string
	recurring recurringFunc
	initial   initialFunc
}

func lastStarted(cb *Callback, startedAt, _ time.Time, _ Metrics) time.Time {
	return startedAt.Add(cb.Spacing)
}

func lastFinished(cb *Callback, _, finishedAt time.Time, _ Metrics) time.Time {
	return finishedAt.Add(cb.Spacing)
}

func nowPlusSpacing(cb *Callback, now time.Time) time.Time {
	return now.Add(cb.Spacing)
}

// withJitter wraps a recurring function, adding a uniformly random
// offset in [0, spacing*maxFraction) so callbacks sharing a spacing do
// not fire in lockstep.
func withJitter(fn recurringFunc, maxFraction float64) recurringFunc {
	return func(cb *Callback, startedAt, finishedAt time.Time, m Metrics) time.Time {
		next := fn(cb, startedAt, finishedAt, m)
		jitter := time.Duration(float64(cb.Spacing) * rand.Float64() * maxFraction)
		return next.Add(jitter)
	}
}

// resolveStrategy looks up a built-in strategy by name, binding the
// configured jitter fraction into the jittered variants. The fraction
// must lie in [0, 1].
func resolveStrategy(name string, maxJitterFraction float64) (strategy, error) {
	if maxJitterFraction < 0 || maxJitterFraction > 1 {
		return strategy{}, fmt.Errorf(
			"max jitter fraction must be between 0.0 and 1.0, got %v", maxJitterFraction)
	}

	builtin := map[string]recurringFunc{
		StrategyLastStarted:        lastStarted,
		StrategyLastStartedJitter:  withJitter(lastStarted, maxJitterFraction),
		StrategyLastFinished:       lastFinished,
		StrategyLastFinishedJitter: withJitter(lastFinished, maxJitterFraction),
	}

	recurring, ok := builtin[name]
	if !ok {
		valid := make([]string, 0, len(builtin))
		for n := range builtin {
			valid = append(valid, n)
		}
		sort.Strings(valid)
		return strategy{}, fmt.Errorf("unknown scheduling strategy %q, must be one of: %s",
			name, strings.Join(valid, ", "))
	}

	return strategy{name: name, recurring: recurring, initial: nowPlusSpacing}, nil
}
