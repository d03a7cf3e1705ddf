package proxycore

import (
	"math/rand"
	"sync"
	"time"
)

// LoadBalancer selects which upstream a new client connection should be
// dispatched to, given the full set of configured upstreams. Implementations
// must be safe for concurrent use.
type LoadBalancer interface {
	Next(upstreams []*Upstream) *Upstream
}

// NewLoadBalancer constructs the LoadBalancer named by policy: one of
// "round-robin", "uniform-random", or "least-used".
func NewLoadBalancer(policy string) (LoadBalancer, error) {
	switch policy {
	case "round-robin":
		return &RoundRobinLoadBalancer{}, nil
	case "uniform-random":
		return &UniformRandomLoadBalancer{}, nil
	case "least-used":
		return &LeastUsedLoadBalancer{}, nil
	default:
		return nil, &unknownPolicyError{policy}
	}
}

type unknownPolicyError struct{ policy string }

func (e *unknownPolicyError) Error() string {
	return "unknown load balancer policy: " + e.policy
}

// RoundRobinLoadBalancer dispatches to upstreams in cyclic order. The
// cursor is incremented before each selection, so the first upstream
// returned is index 1 (not 0) when there is more than one upstream; this
// matches the original implementation's off-by-one cycling behavior, which
// callers must not "fix" since it is an observable part of the rotation.
type RoundRobinLoadBalancer struct {
	mu     sync.Mutex
	cursor int
}

// Next returns the next upstream in rotation.
func (lb *RoundRobinLoadBalancer) Next(upstreams []*Upstream) *Upstream {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.cursor = (lb.cursor + 1) % len(upstreams)
	return upstreams[lb.cursor]
}

// UniformRandomLoadBalancer dispatches to a uniformly random upstream. A
// fresh PRNG seeded from the current time is used on every call, rather
// than a single shared generator; this is a deliberately preserved quirk
// of the original rather than an attempt at a statistically ideal source
// of randomness.
type UniformRandomLoadBalancer struct{}

// Next returns a uniformly random upstream.
func (lb *UniformRandomLoadBalancer) Next(upstreams []*Upstream) *Upstream {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return upstreams[rng.Intn(len(upstreams))]
}

// LeastUsedLoadBalancer dispatches to whichever upstream has transferred
// the fewest bytes in the last minute, among upstreams that have not
// failed a connection attempt in the last second. Ties are broken by
// first-seen (list) order. If every upstream has failed within the last
// second, selection falls back to uniform random across the full set.
type LeastUsedLoadBalancer struct {
	fallback UniformRandomLoadBalancer
}

// Next returns the least-recently-busy upstream among those with no failure
// in the last second, or a random upstream if none currently qualify.
func (lb *LeastUsedLoadBalancer) Next(upstreams []*Upstream) *Upstream {
	var best *Upstream
	var bestRate uint64
	for _, u := range upstreams {
		if u.failed.GetLastSecondCount() != 0 {
			continue
		}
		rate := u.byteRate.GetLastMinuteCount()
		if best == nil || rate < bestRate {
			best = u
			bestRate = rate
		}
	}
	if best == nil {
		return lb.fallback.Next(upstreams)
	}
	return best
}
