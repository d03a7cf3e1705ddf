package proxycore

import (
	"bufio"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// SupervisorState is the lifecycle state of a TunnelSupervisor's child
// process.
type SupervisorState int

const (
	// StateIdle means start() has not yet been called.
	StateIdle SupervisorState = iota
	// StateStarting means the child process is being spawned.
	StateStarting
	// StateRunning means the child process is alive.
	StateRunning
	// StateExited means the child process exited and a respawn is pending.
	StateExited
	// StateStopped is terminal: shutdown() has been called, no further
	// respawns will happen.
	StateStopped
)

const minRespawnBackoff = 1 * time.Second
const maxRespawnBackoff = 30 * time.Second

// TunnelSupervisor owns an external `ssh` child process that maintains a
// local-forward tunnel from localPort to the jump host's target, via the
// jump host's sshd. It restarts the child whenever it exits, backing off
// exponentially (capped) between respawns, until Shutdown is called.
type TunnelSupervisor struct {
	ShutdownHelper

	config    *JumpHostConfig
	localPort int32

	mu    sync.Mutex
	state SupervisorState
	cmd   *exec.Cmd
}

// NewTunnelSupervisor creates a TunnelSupervisor for the local-forward
// described by config and localPort. The child process is not started
// until Start is called.
func NewTunnelSupervisor(logger Logger, config *JumpHostConfig, localPort int32) *TunnelSupervisor {
	s := &TunnelSupervisor{
		config:    config,
		localPort: localPort,
	}
	s.InitShutdownHelper(logger.Fork("tunnel:%d", localPort), s)
	return s
}

// HandleOnceShutdown will be called exactly once, in its own goroutine, to
// kill the child process (if any) and move to the terminal Stopped state.
func (s *TunnelSupervisor) HandleOnceShutdown(completionErr error) error {
	s.mu.Lock()
	s.state = StateStopped
	cmd := s.cmd
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		s.DLogf("killing ssh child process")
		_ = cmd.Process.Kill()
	}
	return completionErr
}

// Start spawns the child ssh process in the background and begins the
// restart-on-exit loop. It does not block waiting for the tunnel to become
// usable; the dispatcher's bounded retry absorbs the startup race.
func (s *TunnelSupervisor) Start() {
	err := s.DoOnceActivate(func() error {
		go s.superviseLoop()
		return nil
	}, false)
	if err != nil {
		s.WLogf("could not activate tunnel supervisor: %s", err)
	}
}

func (s *TunnelSupervisor) superviseLoop() {
	b := &backoff.Backoff{
		Min:    minRespawnBackoff,
		Max:    maxRespawnBackoff,
		Factor: 2,
		Jitter: true,
	}
	for {
		if s.IsStartedShutdown() {
			return
		}
		s.setState(StateStarting)
		cmd, stdout, stderr, err := s.spawn()
		if err != nil {
			s.ELogf("failed to start ssh child: %s", err)
			s.setState(StateExited)
		} else {
			s.mu.Lock()
			s.cmd = cmd
			s.mu.Unlock()
			s.setState(StateRunning)
			s.ILogf("ssh tunnel on localhost:%d started, pid %d", s.localPort, cmd.Process.Pid)
			go s.logLines(stdout, "stdout")
			go s.logLines(stderr, "stderr")
			startedAt := time.Now()
			waitErr := cmd.Wait()
			s.setState(StateExited)
			if s.IsStartedShutdown() {
				return
			}
			s.WLogf("ssh tunnel on localhost:%d exited: %v", s.localPort, waitErr)
			// Only a child that stayed up for a while starts the backoff
			// over; one that keeps exiting quickly backs off exponentially.
			if time.Since(startedAt) >= maxRespawnBackoff {
				b.Reset()
			}
		}

		delay := b.Duration()
		select {
		case <-time.After(delay):
		case <-s.ShutdownStartedChan():
			return
		}
	}
}

func (s *TunnelSupervisor) spawn() (*exec.Cmd, io.ReadCloser, io.ReadCloser, error) {
	args := s.config.buildSSHArgs(s.localPort)
	cmd := exec.Command(s.config.sshBinaryOrDefault(), args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdout, stderr, nil
}

func (s *TunnelSupervisor) logLines(r io.Reader, streamName string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.DLogf("ssh[%s:%d] %s: %s", streamName, s.localPort, streamName, scanner.Text())
	}
}

func (s *TunnelSupervisor) setState(state SupervisorState) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.state = state
	}
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *TunnelSupervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
