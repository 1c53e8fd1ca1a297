package constants

import (
	"runtime"
	"time"
)

// GetProcessShutdownTimeout returns how long a stopping server gets before it is killed.
// Windows .NET hosts take noticeably longer to unwind after stdin closes.
func GetProcessShutdownTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 2 * ProcessShutdownTimeout
	}
	return ProcessShutdownTimeout
}

// DefaultServerExecutableNames lists the names probed when no server path is configured
func DefaultServerExecutableNames() []string {
	if runtime.GOOS == "windows" {
		return []string{"OmniSharp.exe", "omnisharp.cmd"}
	}
	return []string{"OmniSharp", "omnisharp", "run"}
}
