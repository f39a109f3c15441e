package llm

import (
	"errors"
	"time"

	"backend/internal/model"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type verdictBreaker = gobreaker.CircuitBreaker[model.Verdict]

// newVerdictBreaker trips after a run of consecutive failures so a dead model
// endpoint fails fast instead of stalling every request in the pipeline. Open
// breaker errors surface to the evaluator like any other collaborator failure.
func newVerdictBreaker(name string, log *zap.Logger) *verdictBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("llm circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			}
		},
	}
	return gobreaker.NewCircuitBreaker[model.Verdict](settings)
}

// IsCircuitOpen reports whether err came from an open or overloaded breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
