package proxycore

// ProxyConfiguration is the fully-resolved, validated configuration for one
// proxy process: where it listens, where its status surface listens, the
// fixed set of upstreams to balance across, which load-balancer policy to
// use, and an optional jump-host configuration shared by every upstream.
type ProxyConfiguration struct {
	ListenPort   int32
	StatusPort   int32
	Upstreams    []Endpoint
	LoadBalancer string
	JumpHost     *JumpHostConfig
}

// Proxy wires a ProxyConfiguration into a running Dispatcher: it builds the
// Upstream set (spawning jump-host tunnel supervisors if configured),
// constructs the selected LoadBalancer, and owns the Dispatcher's
// lifecycle.
type Proxy struct {
	logger     Logger
	config     ProxyConfiguration
	upstreams  []*Upstream
	dispatcher *Dispatcher
}

// NewProxy builds a Proxy from a validated configuration. It binds no
// sockets (the listener is opened by the Dispatcher's Run), but with a jump
// host configured each upstream's tunnel supervisor is started here.
func NewProxy(logger Logger, config ProxyConfiguration) (*Proxy, error) {
	lb, err := NewLoadBalancer(config.LoadBalancer)
	if err != nil {
		return nil, err
	}

	upstreams := make([]*Upstream, 0, len(config.Upstreams))
	for i, ep := range config.Upstreams {
		var u *Upstream
		if config.JumpHost != nil {
			u = NewJumpHostUpstream(logger, jumpHostConfigFor(config.JumpHost, ep), basePortFor(config, i))
		} else {
			u = NewUpstream(logger, ep)
		}
		upstreams = append(upstreams, u)
	}

	p := &Proxy{
		logger:    logger.Fork("proxy"),
		config:    config,
		upstreams: upstreams,
	}
	p.dispatcher = NewDispatcher(p.logger, NewEndpoint("", config.ListenPort), upstreams, lb)
	return p, nil
}

// jumpHostConfigFor derives a per-upstream JumpHostConfig: the shared jump
// host settings, but targeting this particular upstream endpoint.
func jumpHostConfigFor(shared *JumpHostConfig, target Endpoint) *JumpHostConfig {
	cfg := *shared
	cfg.TargetServer = target
	return &cfg
}

// basePortFor picks the local forwarded port for the i'th upstream when a
// jump host is in play: listenPort+1000+i, kept out of the way of the status
// port and listen port ranges used elsewhere in this process.
func basePortFor(config ProxyConfiguration, i int) int32 {
	return config.ListenPort + 1000 + int32(i)
}

// Upstreams exposes the live upstream set, for the status HTTP surface.
func (p *Proxy) Upstreams() []*Upstream {
	return p.upstreams
}

// Dispatcher exposes the underlying Dispatcher, for lifecycle wiring.
func (p *Proxy) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// HealthyUpstreamCount returns how many configured upstreams currently
// satisfy isHealthy.
func (p *Proxy) HealthyUpstreamCount() int {
	n := 0
	for _, u := range p.upstreams {
		if u.isHealthy() {
			n++
		}
	}
	return n
}
