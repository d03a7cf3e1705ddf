package proxycore

// WriteHalfCloser is implemented by connections that support shutting
// down their write half independently of the read half (net.TCPConn does,
// via CloseWrite). A half-tunnel uses it to propagate EOF to the peer
// without severing the other direction, which is still draining.
type WriteHalfCloser interface {
	// CloseWrite shuts down the writing half of a bidirectional stream.
	// No further writes are possible after this call, but the read half
	// remains active.
	CloseWrite() error
}
