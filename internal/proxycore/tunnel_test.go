package proxycore

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestBidirectionalTunnelRelaysBothDirections(t *testing.T) {
	clientNear, clientFar := net.Pipe()
	upstreamNear, upstreamFar := net.Pipe()

	upstream := NewUpstream(testLogger(), NewEndpoint("upstream", 0))
	tunnel := NewBidirectionalTunnel(testLogger(), clientNear, upstream, upstreamNear)

	runDone := make(chan struct{})
	go func() {
		tunnel.Run()
		close(runDone)
	}()

	go func() {
		buf := make([]byte, 64)
		n, _ := upstreamFar.Read(buf)
		upstreamFar.Write(buf[:n])
	}()

	clientFar.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := clientFar.Write([]byte("PING")); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(clientFar, buf); err != nil {
		t.Fatalf("read failed: %s", err)
	}
	if string(buf) != "PING" {
		t.Fatalf("got %q, want %q", buf, "PING")
	}

	clientFar.Close()
	upstreamFar.Close()
	<-runDone

	stats := upstream.Stats()
	if stats.OpenedTotal != 2 {
		t.Fatalf("OpenedTotal = %d, want 2 (one per half-tunnel)", stats.OpenedTotal)
	}
	if stats.ClosedTotal != 2 {
		t.Fatalf("ClosedTotal = %d, want 2 (one per half-tunnel)", stats.ClosedTotal)
	}
}

func TestBidirectionalTunnelCloseIsIdempotent(t *testing.T) {
	clientNear, clientFar := net.Pipe()
	upstreamNear, upstreamFar := net.Pipe()
	defer clientFar.Close()
	defer upstreamFar.Close()

	upstream := NewUpstream(testLogger(), NewEndpoint("upstream", 0))
	tunnel := NewBidirectionalTunnel(testLogger(), clientNear, upstream, upstreamNear)

	tunnel.close()
	tunnel.close()
}
