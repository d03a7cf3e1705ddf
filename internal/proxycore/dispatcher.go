package proxycore

import (
	"context"
	"net"
)

// retryMax is the total number of upstream connect attempts made for a
// single client connection before giving up, per spec.
const retryMax = 3

// Dispatcher accepts client TCP connections on a bind address and, for
// each one, selects an upstream via its LoadBalancer and establishes a
// BidirectionalTunnel to it. After a dial failure it asks the LoadBalancer
// again (which may return the same upstream), making at most retryMax
// attempts in all.
type Dispatcher struct {
	ShutdownHelper

	bind      Endpoint
	upstreams []*Upstream
	lb        LoadBalancer

	listener net.Listener
}

// NewDispatcher creates a Dispatcher that will listen on bind and balance
// across upstreams using lb. The Dispatcher does not take ownership of
// upstreams' lifecycle beyond closing them on shutdown.
func NewDispatcher(logger Logger, bind Endpoint, upstreams []*Upstream, lb LoadBalancer) *Dispatcher {
	d := &Dispatcher{
		bind:      bind,
		upstreams: upstreams,
		lb:        lb,
	}
	d.InitShutdownHelper(logger.Fork("dispatcher:%s", bind), d)
	return d
}

// Addr returns the address the dispatcher is bound to. It is only valid
// after Run has started listening (see IsActivated).
func (d *Dispatcher) Addr() net.Addr {
	return d.listener.Addr()
}

// HandleOnceShutdown closes the listener and every configured upstream.
func (d *Dispatcher) HandleOnceShutdown(completionErr error) error {
	if d.listener != nil {
		if err := d.listener.Close(); err != nil {
			d.DLogf("listener close failed, ignoring: %s", err)
		}
	}
	for _, u := range d.upstreams {
		u.close()
	}
	return completionErr
}

// Run opens the listener and accepts connections until ctx is cancelled
// or Shutdown is called, blocking until fully shut down.
func (d *Dispatcher) Run(ctx context.Context) error {
	err := d.DoOnceActivate(func() error {
		d.ShutdownOnContext(ctx)
		l, err := net.Listen("tcp", d.bind.Address())
		if err != nil {
			return d.DLogErrorf("listen on %s failed: %s", d.bind, err)
		}
		d.listener = l
		d.ILogf("listening on %s with %d upstream(s)", d.bind, len(d.upstreams))
		go d.acceptLoop()
		return nil
	}, true)
	if err == nil {
		err = d.WaitShutdown()
	}
	return err
}

func (d *Dispatcher) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if d.IsStartedShutdown() {
				return
			}
			d.WLogf("accept failed: %s", err)
			continue
		}
		go d.handleConn(conn)
	}
}

// handleConn implements setupTunnel: it tries up to retryMax upstream
// selections, incrementing each failed upstream's counter itself, before
// giving up and closing the client connection.
func (d *Dispatcher) handleConn(client net.Conn) {
	for attempt := 1; attempt <= retryMax; attempt++ {
		upstream := d.lb.Next(d.upstreams)
		err := upstream.establishTunnel(client)
		if err == nil {
			return
		}
		upstream.incrementFailedConn()
		d.DLogf("connect to %s failed (attempt %d/%d): %s", upstream, attempt, retryMax, err)
	}
	d.WLogf("exhausted %d retries for client %s, closing", retryMax, client.RemoteAddr())
	_ = client.Close()
}
