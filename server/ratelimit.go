package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// teamLimiter holds one token bucket per team. Buckets are only created for
// teams that resolved to an installation, so the map is bounded by installs.
type teamLimiter struct {
	rps      rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	lock     sync.Mutex
}

// newTeamLimiter returns nil, meaning unlimited, when rps is not positive.
func newTeamLimiter(rps float64, burst int) *teamLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &teamLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (tl *teamLimiter) Allow(teamID string) bool {
	if tl == nil {
		return true
	}
	tl.lock.Lock()
	l, ok := tl.limiters[teamID]
	if !ok {
		l = rate.NewLimiter(tl.rps, tl.burst)
		tl.limiters[teamID] = l
	}
	tl.lock.Unlock()
	return l.Allow()
}
