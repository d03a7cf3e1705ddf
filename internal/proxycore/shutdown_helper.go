package proxycore

import (
	"context"
	"sync"
)

// OnceActivateHandler is a function that is called exactly once with shutdown paused
// to activate the object that supports shutdown.
// If it returns nil, the object will be activated. If it returns an error, the object will not be activated,
// and shutdown will be immediately started.
// If shutdown has already started before DoOnceActivate is called, this function will not be invoked.
type OnceActivateHandler func() error

// OnceShutdownHandler is an interface that must be implemented by the object managed by ShutdownHelper.
type OnceShutdownHandler interface {
	// HandleOnceShutdown will be called exactly once, in its own goroutine. It should take
	// completionError as an advisory completion value, actually shut down, then return the
	// real completion value. This method will never be called while shutdown is paused.
	HandleOnceShutdown(completionError error) error
}

// ShutdownHelper is a base that manages clean asynchronous object shutdown for an
// object that implements OnceShutdownHandler. Dispatcher, HTTPServer, and
// TunnelSupervisor all embed one.
type ShutdownHelper struct {
	// Logger is the Logger that will be used for log output from this helper.
	Logger

	// Lock is a general-purpose fine-grained mutex for this helper; it may be used
	// as a general-purpose lock by derived objects as well.
	Lock sync.Mutex

	// shutdownHandler is the object that is called exactly once to perform
	// synchronous shutdown.
	shutdownHandler OnceShutdownHandler

	// shutdownPauseCount is the number of times resumeShutdown() must be called before
	// shutdown can commence; DoOnceActivate holds one pause token while its
	// activation callback runs, so shutdown can never race with activation.
	shutdownPauseCount int

	// isActivated is set to true when Activate is called.
	isActivated bool

	// isScheduledShutdown is set to true when StartShutdown is called.
	isScheduledShutdown bool

	// isStartedShutdown is set to true when we begin shutting down.
	isStartedShutdown bool

	// shutdownErr contains the final completion status after shutdownDoneChan is closed.
	shutdownErr error

	// shutdownStartedChan is a chan that is closed when shutdown is started.
	shutdownStartedChan chan struct{}

	// shutdownDoneChan is a chan that is closed when shutdown is completely done.
	shutdownDoneChan chan struct{}

	// wg lets HandleOnceShutdown hand off cleanup work that must finish
	// before shutdown is considered complete.
	wg sync.WaitGroup
}

// InitShutdownHelper initializes a new ShutdownHelper in place.
func (h *ShutdownHelper) InitShutdownHelper(
	logger Logger,
	shutdownHandler OnceShutdownHandler,
) {
	h.Logger = logger
	h.shutdownHandler = shutdownHandler
	h.shutdownStartedChan = make(chan struct{})
	h.shutdownDoneChan = make(chan struct{})
}

// asyncDoStartedShutdown starts background processing of shutdown *after*
// h.isStartedShutdown has already been set to true and h.shutdownErr has been set
// to the advisory completion error.
func (h *ShutdownHelper) asyncDoStartedShutdown() {
	h.DLogf("->shutdownStarted")
	close(h.shutdownStartedChan)
	go func() {
		h.shutdownErr = h.shutdownHandler.HandleOnceShutdown(h.shutdownErr)
		h.DLogf("->shutdownHandlerDone")
		h.wg.Wait()
		h.DLogf("->shutdownDone")
		close(h.shutdownDoneChan)
	}()
}

// IsActivated returns true if this helper has been activated.
func (h *ShutdownHelper) IsActivated() bool {
	return h.isActivated
}

// Activate sets the "activated" flag for this helper. Does nothing
// if already activated. Fails if shutdown has already been started.
func (h *ShutdownHelper) Activate() error {
	h.Lock.Lock()
	defer h.Lock.Unlock()

	if !h.isActivated {
		if h.isStartedShutdown {
			return h.Errorf("Cannot activate; shutdown already initiated")
		}
		h.isActivated = true
	}

	return nil
}

// DoOnceActivate takes steps to activate the object:
//
//	if already activated, returns nil
//	if not activated and already started shutting down:
//	   if waitOnFail is true, waits for shutdown to complete
//	   returns an error
//	if not activated and not shutting down:
//	   pauses shutdown
//	   invokes the OnceActivateHandler
//	   resumes shutdown
//	   if handler returns nil:
//	      activates the object
//	      if activation succeeds, returns nil
//	   if handler or activation returns an error:
//	      starts shutting down with that error
//	      if waitOnFail is true, waits for shutdown to complete
//	      returns an error
func (h *ShutdownHelper) DoOnceActivate(onceActivateHandler OnceActivateHandler, waitOnFail bool) error {
	var err error
	h.Lock.Lock()
	if h.isActivated {
		h.Lock.Unlock()
		return nil
	}
	if h.isStartedShutdown {
		h.Lock.Unlock()
		if waitOnFail {
			err = h.WaitShutdown()
		}
		if err == nil {
			err = h.Errorf("Shutdown already started; cannot Activate")
		}
		return err
	}
	h.shutdownPauseCount++
	h.Lock.Unlock()
	err = onceActivateHandler()
	if err == nil {
		err = h.Activate()
	}
	if err != nil {
		h.StartShutdown(err)
	}
	h.resumeShutdown()
	if err != nil && waitOnFail {
		h.WaitShutdown()
	}
	return err
}

// resumeShutdown decrements the shutdown pause count, and if it becomes
// zero, allows a previously scheduled shutdown to start.
func (h *ShutdownHelper) resumeShutdown() {
	h.Lock.Lock()
	if h.shutdownPauseCount < 1 {
		h.Lock.Unlock()
		h.Panic("resumeShutdown before a matching pause")
		return
	}
	h.shutdownPauseCount--
	doShutdownNow := h.shutdownPauseCount == 0 && h.isScheduledShutdown && !h.isStartedShutdown
	if doShutdownNow {
		h.isStartedShutdown = true
	}
	h.Lock.Unlock()

	if doShutdownNow {
		h.asyncDoStartedShutdown()
	}
}

// ShutdownOnContext begins background monitoring of a context.Context, and
// will begin asynchronously shutting down this helper with the context's error
// if the context is completed. This method does not block, it just
// constrains the lifetime of this object to a context.
func (h *ShutdownHelper) ShutdownOnContext(ctx context.Context) {
	go func() {
		select {
		case <-h.shutdownStartedChan:
		case <-ctx.Done():
			h.StartShutdown(ctx.Err())
		}
	}()
}

// IsStartedShutdown returns true if shutdown has begun. It continues to return true after shutdown
// is complete.
func (h *ShutdownHelper) IsStartedShutdown() bool {
	return h.isStartedShutdown
}

// ShutdownStartedChan returns a channel that is closed once shutdown is
// complete (it is shutdownDoneChan, not shutdownStartedChan). TunnelSupervisor
// uses it to abort an in-progress respawn backoff once shutdown has finished.
func (h *ShutdownHelper) ShutdownStartedChan() <-chan struct{} {
	return h.shutdownDoneChan
}

// WaitShutdown waits for the shutdown to complete, then returns the shutdown status.
// It does not initiate shutdown, so it can be used to wait on an object that
// will shut down at an unspecified point in the future.
func (h *ShutdownHelper) WaitShutdown() error {
	<-h.shutdownDoneChan
	return h.shutdownErr
}

// Shutdown performs a synchronous shutdown. It initiates shutdown if it has
// not already started, waits for the shutdown to complete, then returns
// the final shutdown status.
func (h *ShutdownHelper) Shutdown(completionError error) error {
	h.StartShutdown(completionError)
	return h.WaitShutdown()
}

// StartShutdown schedules asynchronous shutdown of the object. If the object
// has already been scheduled for shutdown, it has no effect. If shutting down has
// been paused, actual starting of the shutdown process is deferred.
// completionErr is an advisory error (or nil) to use as the completion status
// from WaitShutdown(). The implementation may use this value or decide to return
// something else.
func (h *ShutdownHelper) StartShutdown(completionErr error) {
	var doShutdownNow bool
	h.Lock.Lock()
	if !h.isScheduledShutdown {
		if h.isStartedShutdown {
			h.Lock.Unlock()
			h.Panic("shutdown started before scheduled")
			return
		}
		h.shutdownErr = completionErr
		h.isScheduledShutdown = true
		doShutdownNow = h.shutdownPauseCount == 0
		h.isStartedShutdown = doShutdownNow
	}
	h.Lock.Unlock()

	if doShutdownNow {
		h.asyncDoStartedShutdown()
	}
}

// Close is a default implementation of io.Closer, which simply shuts down
// with an advisory completion status of nil, and returns the final
// completion status.
func (h *ShutdownHelper) Close() error {
	h.DLogf("Close()")
	return h.Shutdown(nil)
}
