//go:build !windows
// +build !windows

package process

import (
	stderrors "errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"analysis-broker/internal/common"
)

func configureProcAttr(cmd *exec.Cmd) {
	// Own process group so an editor's Ctrl-C does not reach the server first
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// StopProcess asks the server to exit by closing stdin, then escalates to
// SIGTERM and finally SIGKILL.
func (pm *ServerProcessManager) StopProcess(info *ProcessInfo) error {
	if info == nil {
		return nil
	}

	info.SignalStop()

	if info.Stdin != nil {
		info.Stdin.Close()
	}

	if info.Cmd != nil && info.Cmd.Process != nil && !info.HasExited() {
		grace := pm.shutdownTimeout

		select {
		case <-info.Exited:
		case <-time.After(grace / 2):
			common.ServerLogger.Debug("Analysis server did not exit after stdin closed, sending SIGTERM")
			if err := info.Cmd.Process.Signal(syscall.SIGTERM); err != nil && !isExpectedKillError(err) {
				common.ServerLogger.Debug("SIGTERM failed: %v", err)
			}

			select {
			case <-info.Exited:
			case <-time.After(grace / 2):
				common.ServerLogger.Debug("Analysis server did not exit within %v, force killing", grace)
				if err := info.Cmd.Process.Kill(); err != nil && !isExpectedKillError(err) {
					common.ServerLogger.Debug("Failed to kill analysis server: %v", err)
				}
				<-info.Exited
			}
		}
	}

	pm.CleanupProcess(info)
	return nil
}

// isExpectedKillError ignores errors for processes that are already gone
func isExpectedKillError(err error) bool {
	if stderrors.Is(err, os.ErrProcessDone) {
		return true
	}
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		return errno == syscall.ESRCH || errno == syscall.ECHILD
	}
	return false
}
