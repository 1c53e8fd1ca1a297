package constants

import "time"

// Scheduling constants
const (
	// DefaultConcurrency is the Normal class in-flight cap when none is configured
	DefaultConcurrency = 8

	// PriorityConcurrency is fixed: one priority request at a time, nothing interleaved
	PriorityConcurrency = 1

	// MinDeferredConcurrency is the floor of the Deferred class cap
	MinDeferredConcurrency = 2

	// DeferredConcurrencyDivisor scales the Deferred cap down from the Normal cap
	DeferredConcurrencyDivisor = 4
)

// Process management timeouts
const (
	ProcessShutdownTimeout = 5 * time.Second

	// ReaderDrainTimeout bounds how long teardown waits for buffered output after an unexpected exit
	ReaderDrainTimeout = 2 * time.Second
)

// Transport constants
const (
	// ServerOutputBufferSize bounds a single packet line read from the server.
	// Solution-wide responses (code check, find symbols) can be several megabytes.
	ServerOutputBufferSize = 16 * 1024 * 1024

	// ServerOutputInitialBuffer is the scanner's starting buffer
	ServerOutputInitialBuffer = 64 * 1024
)

// File watching constants
const (
	// Debounce delay for file watching
	FileWatchDebounceDelay = 500 * time.Millisecond
)

// DefaultWatchExtensions are the file types whose changes are forwarded to the server
var DefaultWatchExtensions = []string{".cs", ".csx", ".cake", ".csproj", ".sln", ".props", ".targets"}

// Directories to skip during file watching
var SkipDirectories = map[string]bool{
	"node_modules": true,
	"bin":          true,
	"obj":          true,
	".git":         true,
	".svn":         true,
	".hg":          true,
	".idea":        true,
	".vs":          true,
	".vscode":      true,
}

// DeferredConcurrency derives the Deferred class cap from the configured concurrency
func DeferredConcurrency(concurrency int) int {
	n := concurrency / DeferredConcurrencyDivisor
	if n < MinDeferredConcurrency {
		return MinDeferredConcurrency
	}
	return n
}
