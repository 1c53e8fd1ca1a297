//go:build windows
// +build windows

package process

import (
	"os/exec"
	"time"

	"analysis-broker/internal/common"
)

func configureProcAttr(cmd *exec.Cmd) {}

// StopProcess closes stdin and waits briefly; Windows cannot deliver a
// graceful signal to another console process, so it then kills.
func (pm *ServerProcessManager) StopProcess(info *ProcessInfo) error {
	if info == nil {
		return nil
	}

	info.SignalStop()

	if info.Stdin != nil {
		info.Stdin.Close()
	}

	if info.Cmd != nil && info.Cmd.Process != nil && !info.HasExited() {
		select {
		case <-info.Exited:
		case <-time.After(pm.shutdownTimeout / 4):
			if err := info.Cmd.Process.Kill(); err != nil {
				common.ServerLogger.Debug("Process kill returned: %v", err)
			}
			select {
			case <-info.Exited:
			case <-time.After(2 * time.Second):
				common.ServerLogger.Debug("Analysis server process did not terminate after kill")
			}
		}
	}

	pm.CleanupProcess(info)
	return nil
}
