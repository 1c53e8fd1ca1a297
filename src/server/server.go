// Package server runs one analysis server process and multiplexes editor
// requests over its stdio, scheduling them through the priority queues.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"analysis-broker/src/config"
	"analysis-broker/internal/common"
	"analysis-broker/internal/constants"
	"analysis-broker/internal/errors"
	"analysis-broker/src/server/process"
	"analysis-broker/src/server/protocol"
	"analysis-broker/src/server/queue"
	"analysis-broker/src/server/telemetry"
)

// State is the lifecycle state of the server connection
type State int

const (
	StateStopped State = iota
	StateStarting
	StateStarted
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Server brokers requests to a single analysis server process
type Server struct {
	config         *config.Config
	processManager process.ProcessManager

	// mu guards everything below it, including every call into requests
	mu          sync.Mutex
	state       State
	processInfo *process.ProcessInfo
	requests    *queue.Collection
	seq         int
	group       *errgroup.Group

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	delays *telemetry.DelayTracker
}

// NewServer creates a server for the given configuration using OS processes
func NewServer(cfg *config.Config) *Server {
	return NewServerWithProcessManager(cfg, process.NewServerProcessManager(cfg.ShutdownTimeout))
}

// NewServerWithProcessManager creates a server with a custom process manager
func NewServerWithProcessManager(cfg *config.Config, pm process.ProcessManager) *Server {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	s := &Server{
		config:         cfg,
		processManager: pm,
		handlers:       make(map[string][]EventHandler),
		delays:         telemetry.NewDelayTracker(),
	}
	s.requests = queue.NewCollection(cfg.Concurrency, s.dispatch, NewLogSink(common.QueueLogger))
	return s
}

// Start launches the analysis server and its reader goroutines
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return errors.ErrAlreadyRunning
	}
	s.state = StateStarting
	s.mu.Unlock()

	info, err := s.processManager.StartProcess(s.config.Server)
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("failed to start analysis server: %w", err)
	}

	// processInfo is published before any goroutine can observe an exit,
	// so a process that dies during launch is still torn down
	s.mu.Lock()
	if s.state != StateStarting {
		// Stop ran while the process was launching
		s.mu.Unlock()
		s.processManager.StopProcess(info)
		return errors.ErrServerStopped
	}
	s.processInfo = info
	s.mu.Unlock()

	readerDone := make(chan struct{})
	group := new(errgroup.Group)
	group.Go(func() error {
		defer close(readerDone)
		// Read to EOF so responses written just before an exit are still delivered
		err := protocol.HandlePackets(info.Stdout, s, nil)
		if err != nil && !info.IntentionalStop() && !isClosedPipe(err) {
			return errors.NewProcessError(s.config.Server.Path, "communication", err)
		}
		return nil
	})
	group.Go(func() error {
		s.logStderr(info.Stderr)
		return nil
	})
	group.Go(func() error {
		s.processManager.MonitorProcess(info, func(exitErr error) {
			if info.IntentionalStop() {
				return
			}
			select {
			case <-readerDone:
			case <-time.After(constants.ReaderDrainTimeout):
				common.ServerLogger.Warn("Server output still open %v after exit", constants.ReaderDrainTimeout)
			}
			s.teardown(info)
		})
		return nil
	})

	s.mu.Lock()
	if s.state != StateStarting || s.processInfo != info {
		// Stop ran, or the process exited, while the goroutines were starting
		stoppedByCaller := s.state == StateStopping || info.IntentionalStop()
		s.mu.Unlock()
		s.processManager.StopProcess(info)
		group.Wait()
		if stoppedByCaller {
			return errors.ErrServerStopped
		}
		return errors.NewProcessError(s.config.Server.Path, "start", fmt.Errorf("analysis server exited during startup: %w", info.ExitErr))
	}
	s.group = group
	s.seq = 0
	s.state = StateStarted
	s.mu.Unlock()

	common.ServerLogger.Info("Analysis server started (concurrency %d)", s.config.Concurrency)

	// Anything queued before the process existed can go now
	s.drain()
	return nil
}

// Stop shuts the server down and fails every outstanding request
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state != StateStarted && s.state != StateStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	info := s.processInfo
	group := s.group
	s.mu.Unlock()

	var stopErr error
	if info != nil {
		stopErr = s.processManager.StopProcess(info)
	}

	if group != nil {
		if err := group.Wait(); err != nil {
			common.ServerLogger.Debug("Server goroutines ended with: %v", err)
		}
	}

	s.teardown(info)
	common.ServerLogger.Info("Analysis server stopped")
	return stopErr
}

// Wait blocks until the server goroutines exit and returns the first error
func (s *Server) Wait() error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// teardown fails every pending and waiting request. The connection is gone,
// so no response will ever arrive for them.
func (s *Server) teardown(info *process.ProcessInfo) {
	s.mu.Lock()
	if info != nil && s.processInfo != info {
		s.mu.Unlock()
		return
	}
	orphaned := s.requests.Clear()
	s.processInfo = nil
	s.state = StateStopped
	s.mu.Unlock()

	if len(orphaned) > 0 {
		common.ServerLogger.Warn("Failing %d outstanding requests: server stopped", len(orphaned))
	}
	for _, r := range orphaned {
		r.Fail(errors.ErrServerStopped)
	}
}

func (s *Server) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the current lifecycle state
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether requests are accepted
func (s *Server) IsRunning() bool {
	return s.State() == StateStarted
}

type requestResult struct {
	body json.RawMessage
	err  error
}

// MakeRequest queues a command and waits for its response.
// When ctx ends first, a still-pending request is cancelled; a dispatched
// one is abandoned and its late response is dropped.
func (s *Server) MakeRequest(ctx context.Context, command string, data interface{}) (json.RawMessage, error) {
	results := make(chan requestResult, 1)
	request := queue.NewRequest(command, data,
		func(body json.RawMessage) { results <- requestResult{body: body} },
		func(err error) { results <- requestResult{err: err} },
	)

	s.mu.Lock()
	if s.state != StateStarted {
		s.mu.Unlock()
		return nil, errors.ErrServerNotRunning
	}
	err := s.requests.Enqueue(request)
	s.mu.Unlock()

	// The failed dispatch may belong to another request; ours reports through its callback
	if err != nil {
		common.ServerLogger.Warn("Dispatch failed while queuing %s: %s", command, common.SanitizeErrorForLogging(err))
	}

	select {
	case res := <-results:
		return res.body, res.err
	case <-ctx.Done():
	}

	s.mu.Lock()
	cancelled := s.requests.Cancel(request)
	s.mu.Unlock()

	if cancelled {
		res := <-results
		return nil, fmt.Errorf("%w: %w", ctx.Err(), res.err)
	}

	select {
	case res := <-results:
		return res.body, res.err
	default:
		common.ServerLogger.Debug("Abandoning dispatched request %s: %v", command, ctx.Err())
		return nil, ctx.Err()
	}
}

// dispatch is the queue's transport binding; it runs with s.mu held
func (s *Server) dispatch(r *queue.Request) (int, error) {
	if s.processInfo == nil {
		return 0, errors.ErrServerNotRunning
	}

	s.seq++
	seq := s.seq

	packet := protocol.NewRequestPacket(seq, r.Command, r.Data)
	if err := protocol.WritePacket(s.processInfo.Stdin, packet); err != nil {
		return 0, errors.NewProcessError(r.Command, "communication", err)
	}

	common.ServerLogger.Debug("Sent %s (seq %d)", r.Command, seq)
	return seq, nil
}

func (s *Server) drain() {
	s.mu.Lock()
	err := s.requests.Drain()
	s.mu.Unlock()
	if err != nil {
		common.ServerLogger.Error("Failed to dispatch queued request: %s", common.SanitizeErrorForLogging(err))
	}
}

// HandleResponse completes the waiting request a response answers
func (s *Server) HandleResponse(packet *protocol.ResponsePacket) error {
	s.mu.Lock()
	request := s.requests.Dequeue(packet.Command, packet.RequestSeq)
	s.mu.Unlock()

	if request == nil {
		common.ServerLogger.Warn("Received response for %s but could not find request.", packet.Command)
		return nil
	}

	request.EndTime = time.Now()
	s.delays.Record(request.Command, queue.Classify(request.Command), request.Elapsed())

	if packet.Success {
		request.Succeed(packet.Body)
	} else {
		message := packet.FailureMessage()
		common.ServerLogger.Debug("Request %s failed: %s", packet.Command, common.SanitizeErrorForLogging(message))
		request.Fail(errors.NewServerError(packet.Command, message))
	}

	s.drain()
	return nil
}

// HandleOutput logs stdout lines that are not packets
func (s *Server) HandleOutput(line string) {
	common.ServerLogger.Info("%s", line)
}

func (s *Server) logStderr(stderr io.Reader) {
	if stderr == nil {
		return
	}
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			common.ServerLogger.Warn("stderr: %s", line)
		}
	}
}

func isClosedPipe(err error) bool {
	return stderrors.Is(err, io.ErrClosedPipe) || stderrors.Is(err, os.ErrClosed)
}

// Stats returns a snapshot of every priority class
func (s *Server) Stats() []queue.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests.Stats()
}

// Delays returns the per-command dispatch-to-response histogram
func (s *Server) Delays() []telemetry.CommandDelay {
	return s.delays.Snapshot()
}
