package common

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type Analysis struct {
	allowed bool          // If the request is allowed
	wait    time.Duration // The minimal time to wait before the request is allowed
}

// RateLimiter decides whether best-effort outbound requests may go out.
// It never blocks or queues: audit traffic is expendable, so a request
// that does not fit inside the restrictions is simply dropped. After the
// remote side reports a rate limit, everything is dropped until a
// cooldown stopwatch runs out
type RateLimiter struct {
	restrictions []Restriction // Restrictions to consider
	history      []time.Time   // History of allowed requests
	duration     time.Duration // Min duration to wait for all restrictions to be lifted
	cooldown     Stopwatch
}

func NewRateLimiter(restrictions []Restriction, cooldown time.Duration) RateLimiter {
	rl := RateLimiter{}
	rl.restrictions = append(rl.restrictions, restrictions...)
	// Duration
	for _, restriction := range restrictions {
		if restriction.Duration > rl.duration {
			rl.duration = restriction.Duration
		}
	}
	// Cooldown after the remote side pushes back
	rl.cooldown = NewStopwatch(cooldown)

	return rl
}

// TryAllow decides if a request may be performed right now.
// An allowed request is recorded in the history
func (rl *RateLimiter) TryAllow() bool {

	// Respect the cooldown after a remote rate limit
	if stopped, _ := rl.cooldown.Stopped(); !stopped {
		log.Warn().Msg("Rejecting request during rate limit cooldown")
		return false
	}
	rl.cooldown.Stop()

	// Trim history first
	rl.trim()
	// Check if the restrictions allow this request
	analysis := rl.analyse()
	if !analysis.allowed {
		log.Warn().Msg(fmt.Sprintf("Rejecting request, next slot in %s", analysis.wait))
		return false
	}
	rl.history = append(rl.history, time.Now())
	return true
}

// ReceivedRateLimit starts the cooldown after the remote side answered 429
func (rl *RateLimiter) ReceivedRateLimit() {
	rl.cooldown.Start()
}

// Trim the current history, leaving only the requests
// that are young enough to be affected by at least one restriction
func (rl *RateLimiter) trim() {
	currentTime := time.Now()
	// Find the index from which we need to keep the history.
	// Start searching at the end of the slice.
	// Times are stored in chronological order
	index := 0
	for i := len(rl.history) - 1; i >= 0; i-- {
		if currentTime.Sub(rl.history[i]) > rl.duration {
			index = i + 1
			break
		}
	}
	rl.history = rl.history[index:]
}

func (rl *RateLimiter) analyse() Analysis {

	// Perform an analysis for each of the restrictions
	analyses := make([]Analysis, 0)
	for _, restriction := range rl.restrictions {
		analyses = append(analyses, restriction.Analyse(rl.history))
	}

	// Merge the analyses and return
	var wait time.Duration = 0
	allowed := true
	for _, analysis := range analyses {
		allowed = allowed && analysis.allowed
		if analysis.wait > wait {
			wait = analysis.wait
		}
	}
	return Analysis{allowed, wait}
}
