package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"analysis-broker/src/config"
	"analysis-broker/internal/common"
	"analysis-broker/internal/constants"
	"analysis-broker/internal/errors"
)

// ProcessInfo holds information about a running analysis server process
type ProcessInfo struct {
	Cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
	StopCh chan struct{}

	// Exited is closed once the process has been reaped; ExitErr is valid after that
	Exited  chan struct{}
	ExitErr error

	intentionalStop atomic.Bool
	stopOnce        sync.Once
	exitOnce        sync.Once
}

// NewProcessInfo wires pipes into a ProcessInfo without an OS process behind it
func NewProcessInfo(stdin io.WriteCloser, stdout, stderr io.ReadCloser) *ProcessInfo {
	return &ProcessInfo{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		StopCh: make(chan struct{}),
		Exited: make(chan struct{}),
	}
}

// MarkExited records the exit status and releases everything waiting on Exited
func (info *ProcessInfo) MarkExited(err error) {
	info.exitOnce.Do(func() {
		info.ExitErr = err
		close(info.Exited)
	})
}

// HasExited reports whether the process has been reaped
func (info *ProcessInfo) HasExited() bool {
	select {
	case <-info.Exited:
		return true
	default:
		return false
	}
}

// IntentionalStop reports whether StopProcess was called
func (info *ProcessInfo) IntentionalStop() bool {
	return info.intentionalStop.Load()
}

// SignalStop closes StopCh once and marks the stop as intentional
func (info *ProcessInfo) SignalStop() {
	info.intentionalStop.Store(true)
	info.stopOnce.Do(func() { close(info.StopCh) })
}

// Pid returns the OS process id, or 0 when there is none
func (info *ProcessInfo) Pid() int {
	if info.Cmd == nil || info.Cmd.Process == nil {
		return 0
	}
	return info.Cmd.Process.Pid
}

// ProcessManager interface for analysis server process lifecycle management
type ProcessManager interface {
	StartProcess(cfg config.ServerConfig) (*ProcessInfo, error)
	StopProcess(info *ProcessInfo) error
	MonitorProcess(info *ProcessInfo, onExit func(error))
	CleanupProcess(info *ProcessInfo)
}

// ServerProcessManager implements ProcessManager for OS processes
type ServerProcessManager struct {
	shutdownTimeout time.Duration
}

// NewServerProcessManager creates a new process manager; a zero timeout
// selects the platform default.
func NewServerProcessManager(shutdownTimeout time.Duration) *ServerProcessManager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = constants.GetProcessShutdownTimeout()
	}
	return &ServerProcessManager{shutdownTimeout: shutdownTimeout}
}

// StartProcess starts the analysis server with stdio pipes
func (pm *ServerProcessManager) StartProcess(cfg config.ServerConfig) (*ProcessInfo, error) {
	path, err := common.ResolveServerExecutable(cfg.Path)
	if err != nil {
		return nil, errors.NewProcessError(cfg.Path, "start", err)
	}

	cmd := exec.Command(path, cfg.Args...)

	// Use configured working directory, else the current one
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	} else if wd, err := os.Getwd(); err == nil {
		cmd.Dir = wd
	}

	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	configureProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	// os.Pipe instead of StdoutPipe: Wait must not close the read ends
	// before the reader has drained the last packets.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	info := NewProcessInfo(stdin, stdout, stderr)
	info.Cmd = cmd

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		pm.CleanupProcess(info)
		return nil, errors.NewProcessError(path, "start", err)
	}

	// Single reaper; everyone else waits on info.Exited
	go func() {
		info.MarkExited(cmd.Wait())
	}()

	common.ServerLogger.Info("Started analysis server process %s: PID %d", path, cmd.Process.Pid)
	return info, nil
}

// MonitorProcess blocks until the process exits and reports it
func (pm *ServerProcessManager) MonitorProcess(info *ProcessInfo, onExit func(error)) {
	if info == nil {
		common.ServerLogger.Error("MonitorProcess called with nil process info")
		if onExit != nil {
			onExit(fmt.Errorf("invalid process info"))
		}
		return
	}

	<-info.Exited
	err := info.ExitErr

	if info.IntentionalStop() {
		common.ServerLogger.Debug("Analysis server stopped: %v", err)
	} else if err != nil {
		common.ServerLogger.Error("Analysis server crashed unexpectedly: %v", err)
	} else {
		common.ServerLogger.Warn("Analysis server exited on its own")
	}

	// Signal stop to other goroutines without marking it intentional
	info.stopOnce.Do(func() { close(info.StopCh) })

	if onExit != nil {
		onExit(err)
	}
}

// CleanupProcess closes all pipes
func (pm *ServerProcessManager) CleanupProcess(info *ProcessInfo) {
	if info == nil {
		return
	}

	if info.Stdin != nil {
		info.Stdin.Close()
	}
	if info.Stdout != nil {
		info.Stdout.Close()
	}
	if info.Stderr != nil {
		info.Stderr.Close()
	}
}
