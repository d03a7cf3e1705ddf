package proxycore

import (
	"io"
	"net"
	"sync"
)

// tunnelBufferSize is the size of the copy buffer used by each half-tunnel.
const tunnelBufferSize = 8192

// BidirectionalTunnel pumps bytes between a client socket and an upstream
// socket until either side closes or errors. It is built from two
// independent half-tunnels, each of which copies one direction and is
// accounted for separately: a single established BidirectionalTunnel
// therefore contributes two counts to an Upstream's opened/closed
// RateCounters, one per direction, matching the original TcpTunnel's
// per-half-tunnel accounting.
type BidirectionalTunnel struct {
	logger   Logger
	client   net.Conn
	upstream *Upstream
	upConn   net.Conn

	closeOnce sync.Once
}

// NewBidirectionalTunnel creates a tunnel between an already-accepted
// client connection and an already-dialed upstream connection.
func NewBidirectionalTunnel(logger Logger, client net.Conn, upstream *Upstream, upConn net.Conn) *BidirectionalTunnel {
	return &BidirectionalTunnel{
		logger:   logger.Fork("tunnel:%s<->%s", client.RemoteAddr(), upstream),
		client:   client,
		upstream: upstream,
		upConn:   upConn,
	}
}

// Run blocks until both halves of the tunnel have finished, then closes
// both sockets. It is safe to call exactly once.
func (t *BidirectionalTunnel) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go t.pump(&wg, t.client, t.upConn, "client->upstream")
	go t.pump(&wg, t.upConn, t.client, "upstream->client")
	wg.Wait()
	t.close()
}

// pump copies from src to dst until EOF or error, accounting bytes to the
// upstream's byteRate counter and tracking this half-tunnel's own
// opened/closed lifecycle. On read EOF it attempts a graceful half-close
// of dst's write side before the tunnel as a whole is fully closed.
func (t *BidirectionalTunnel) pump(wg *sync.WaitGroup, src, dst net.Conn, direction string) {
	defer wg.Done()

	t.upstream.incrementOpenedConn()
	defer t.upstream.incrementClosedConn()

	buf := make([]byte, tunnelBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			t.upstream.incrementByteRateBy(uint64(n))
			if _, werr := dst.Write(buf[:n]); werr != nil {
				t.logger.DLogf("%s: write error: %s", direction, werr)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				t.logger.DLogf("%s: read error: %s", direction, err)
			}
			break
		}
	}

	if wc, ok := dst.(WriteHalfCloser); ok {
		if cerr := wc.CloseWrite(); cerr != nil {
			t.logger.TLogf("%s: CloseWrite failed, ignoring: %s", direction, cerr)
		}
	}
}

// close shuts down both sockets. It is idempotent: calling it more than
// once, or concurrently from both half-tunnels' completion paths, has no
// additional effect.
func (t *BidirectionalTunnel) close() {
	t.closeOnce.Do(func() {
		_ = t.client.Close()
		_ = t.upConn.Close()
	})
}
