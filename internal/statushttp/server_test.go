package statushttp

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/altiscale/transferaccelerator/internal/proxycore"
)

func testLogger() proxycore.Logger {
	return proxycore.NewLogger("test", proxycore.LogLevelError)
}

func newTestProxy(t *testing.T, upstreams []proxycore.Endpoint) *proxycore.Proxy {
	t.Helper()
	config := proxycore.ProxyConfiguration{
		ListenPort:   0,
		StatusPort:   0,
		Upstreams:    upstreams,
		LoadBalancer: "round-robin",
	}
	proxy, err := proxycore.NewProxy(testLogger(), config)
	if err != nil {
		t.Fatalf("NewProxy failed: %s", err)
	}
	return proxy
}

func TestAdminReturns200WhenHealthy(t *testing.T) {
	proxy := newTestProxy(t, []proxycore.Endpoint{proxycore.NewEndpoint("127.0.0.1", 9999)})
	s := NewServer(testLogger(), proxy, "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "1.2.3") {
		t.Fatalf("body %q does not contain version", rec.Body.String())
	}
}

// TestAdminReturns500WhenAllUnhealthy drives one successful connection
// through a real echo upstream (so opened.total > 0, defeating the
// never-attempted-is-healthy short circuit), then kills the echo server
// and forces a failed connect, which should flip the upstream unhealthy.
func TestAdminReturns500WhenAllUnhealthy(t *testing.T) {
	echoAddr, stopEcho := startEchoServer(t)

	proxy := newTestProxy(t, []proxycore.Endpoint{echoAddr})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go proxy.Dispatcher().Run(ctx)
	waitUntil(t, proxy.Dispatcher().IsActivated)
	dialAddr := loopbackAddr(t, proxy.Dispatcher().Addr())

	// One clean round trip establishes opened.total > 0.
	conn, err := net.Dial("tcp", dialAddr)
	if err != nil {
		t.Fatalf("dial failed: %s", err)
	}
	conn.Write([]byte("x"))
	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	conn.Read(buf)
	conn.Close()
	waitUntil(t, func() bool { return proxy.Upstreams()[0].Stats().OpenedTotal > 0 })

	// Now the backend is gone: every subsequent connect attempt fails,
	// and the retry loop records one failure per attempt.
	stopEcho()
	conn2, err := net.Dial("tcp", dialAddr)
	if err == nil {
		conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
		b := make([]byte, 1)
		conn2.Read(b)
		conn2.Close()
	}
	waitUntil(t, func() bool { return proxy.Upstreams()[0].Stats().FailedTotal > 0 })

	s := NewServer(testLogger(), proxy, "1.2.3")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func startEchoServer(t *testing.T) (proxycore.Endpoint, func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %s", err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						if _, werr := c.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	addr := l.Addr().(*net.TCPAddr)
	return proxycore.NewEndpoint("127.0.0.1", int32(addr.Port)), func() { l.Close() }
}

func loopbackAddr(t *testing.T, addr net.Addr) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("SplitHostPort(%q) failed: %s", addr.String(), err)
	}
	return net.JoinHostPort("127.0.0.1", port)
}

func waitUntil(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestStatsPageListsEachUpstream(t *testing.T) {
	proxy := newTestProxy(t, []proxycore.Endpoint{
		proxycore.NewEndpoint("127.0.0.1", 1111),
		proxycore.NewEndpoint("127.0.0.1", 2222),
	})
	s := NewServer(testLogger(), proxy, "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "127.0.0.1:1111") || !strings.Contains(body, "127.0.0.1:2222") {
		t.Fatalf("body missing an upstream address: %s", body)
	}
	if !strings.Contains(body, `meta http-equiv="refresh" content="5"`) {
		t.Fatal("body missing auto-refresh meta tag")
	}
}
