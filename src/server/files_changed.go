package server

import (
	"context"
	"fmt"
	"strings"

	"analysis-broker/internal/common"
	"analysis-broker/src/server/protocol"
	"analysis-broker/src/server/watcher"
)

// NotifyFilesChanged forwards a batch of file changes to the server
func (s *Server) NotifyFilesChanged(ctx context.Context, events []watcher.FileChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	_, err := s.MakeRequest(ctx, protocol.FilesChanged, watcher.ToFilesChanged(events))
	return err
}

// WatchFiles starts a watcher over root that reports changes to the server
// until the returned stop function is called.
func (s *Server) WatchFiles(root string) (func() error, error) {
	fw, err := watcher.NewFileWatcher(s.config.Watch.Extensions, func(events []watcher.FileChangeEvent) {
		ctx, cancel := common.CreateContext(s.config.ShutdownTimeout)
		defer cancel()
		if err := s.NotifyFilesChanged(ctx, events); err != nil {
			common.WatcherLogger.Warn("Failed to report %d changed files: %v", len(events), err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if s.config.Watch.Debounce > 0 {
		fw.SetDebounceDelay(s.config.Watch.Debounce)
	}

	if err := fw.AddPath(root); err != nil {
		fw.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	fw.Start()
	common.WatcherLogger.Info("Watching %s for %v changes", strings.Join(fw.WatchPaths(), ", "), s.config.Watch.Extensions)
	return fw.Stop, nil
}
