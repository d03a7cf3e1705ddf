package proxycore

import (
	"net"
)

// Upstream is a single replica that the load balancer can dispatch client
// connections to. It tracks per-upstream rate counters for bytes
// transferred, connections opened/closed, and failed connection attempts,
// and optionally owns a TunnelSupervisor when the upstream is reached
// through an SSH jump host rather than dialed directly.
type Upstream struct {
	logger Logger

	// endpoint is where a tunnel is actually dialed: either the upstream's
	// real address, or "localhost:localPort" when a jump host is in play.
	endpoint Endpoint

	byteRate *RateCounter
	opened   *RateCounter
	closed   *RateCounter
	failed   *RateCounter

	supervisor *TunnelSupervisor
}

// NewUpstream creates an Upstream that is dialed directly at endpoint.
func NewUpstream(logger Logger, endpoint Endpoint) *Upstream {
	name := endpoint.String()
	return &Upstream{
		logger:   logger.Fork("upstream:%s", name),
		endpoint: endpoint,
		byteRate: NewRateCounter(name + ".bytes"),
		opened:   NewRateCounter(name + ".opened"),
		closed:   NewRateCounter(name + ".closed"),
		failed:   NewRateCounter(name + ".failed"),
	}
}

// NewJumpHostUpstream creates an Upstream that is reached via an SSH
// local-forward on localPort, supervised for the lifetime of the Upstream.
// The supervisor is started immediately.
func NewJumpHostUpstream(logger Logger, jumpHost *JumpHostConfig, localPort int32) *Upstream {
	name := jumpHost.TargetServer.String()
	u := &Upstream{
		logger:   logger.Fork("upstream:%s", name),
		endpoint: NewEndpoint("localhost", localPort),
		byteRate: NewRateCounter(name + ".bytes"),
		opened:   NewRateCounter(name + ".opened"),
		closed:   NewRateCounter(name + ".closed"),
		failed:   NewRateCounter(name + ".failed"),
	}
	u.supervisor = NewTunnelSupervisor(u.logger, jumpHost, localPort)
	u.supervisor.Start()
	return u
}

// String renders the upstream's dial endpoint.
func (u *Upstream) String() string {
	return u.endpoint.String()
}

// Endpoint returns the address this upstream is dialed at.
func (u *Upstream) Endpoint() Endpoint {
	return u.endpoint
}

// establishTunnel opens a fresh TCP connection to this upstream and, on
// success, constructs a BidirectionalTunnel over (client, the new
// connection) and launches it in its own goroutine without waiting for it
// to finish. On connect failure it returns the error and touches no
// counters; per the caller-driven failure bookkeeping convention, the
// dispatcher is responsible for calling incrementFailedConn and deciding
// whether to retry.
func (u *Upstream) establishTunnel(client net.Conn) error {
	upConn, err := net.Dial("tcp", u.endpoint.Address())
	if err != nil {
		return err
	}
	tunnel := NewBidirectionalTunnel(u.logger, client, u, upConn)
	go tunnel.Run()
	return nil
}

func (u *Upstream) incrementFailedConn() {
	u.failed.IncrementBy(1)
}

func (u *Upstream) incrementOpenedConn() {
	u.opened.IncrementBy(1)
}

func (u *Upstream) incrementClosedConn() {
	u.closed.IncrementBy(1)
}

func (u *Upstream) incrementByteRateBy(n uint64) {
	u.byteRate.IncrementBy(n)
}

// isHealthy reports whether this upstream counts as healthy on the status
// surface (/admin and /stats); LeastUsed does not consult it and filters on
// last-second failures instead. Per the original convention, an upstream that
// has never had a connection opened is healthy by default (it simply
// hasn't been tried), and an upstream is otherwise healthy as long as it
// has had no failed connection attempts in the last minute.
func (u *Upstream) isHealthy() bool {
	return u.opened.GetTotalCount() == 0 || u.failed.GetLastMinuteCount() == 0
}

// close shuts down this upstream's tunnel supervisor, if any. It does not
// forcibly close tunnels already in flight; those run to completion on
// their own.
func (u *Upstream) close() {
	if u.supervisor != nil {
		u.supervisor.StartShutdown(nil)
	}
}

// Summary renders a one-line human-readable status of this upstream and
// its counters.
func (u *Upstream) Summary() string {
	healthy := "healthy"
	if !u.isHealthy() {
		healthy = "unhealthy"
	}
	return u.String() + " [" + healthy + "] " +
		u.opened.Summary() + " " + u.closed.Summary() + " " +
		u.failed.Summary() + " " + u.byteRate.Summary()
}

// IsHealthy is the exported form of isHealthy, for use by the status
// HTTP surface.
func (u *Upstream) IsHealthy() bool {
	return u.isHealthy()
}

// UpstreamStats is a point-in-time, read-only snapshot of one upstream's
// counters, suitable for rendering on the status page without holding any
// of the upstream's internal locks while doing so.
type UpstreamStats struct {
	Endpoint Endpoint
	Healthy  bool

	OpenedTotal uint64
	ClosedTotal uint64
	FailedTotal uint64

	ByteRateLastSecond uint64
	ByteRateLastMinute uint64
	ByteRateLastHour   uint64
	ByteRateTotal      uint64
}

// Stats takes a snapshot of this upstream's current counters.
func (u *Upstream) Stats() UpstreamStats {
	return UpstreamStats{
		Endpoint:           u.endpoint,
		Healthy:            u.isHealthy(),
		OpenedTotal:        u.opened.GetTotalCount(),
		ClosedTotal:        u.closed.GetTotalCount(),
		FailedTotal:        u.failed.GetTotalCount(),
		ByteRateLastSecond: u.byteRate.GetLastSecondCount(),
		ByteRateLastMinute: u.byteRate.GetLastMinuteCount(),
		ByteRateLastHour:   u.byteRate.GetLastHourCount(),
		ByteRateTotal:      u.byteRate.GetTotalCount(),
	}
}
