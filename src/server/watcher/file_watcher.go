package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"analysis-broker/internal/common"
	"analysis-broker/internal/constants"
	"analysis-broker/src/server/requests"
)

// FileChangeEvent represents a debounced change to one file
type FileChangeEvent struct {
	Path       string
	ChangeType requests.FileChangeType
	Timestamp  time.Time
}

// FileWatcher watches a workspace and reports batches of changed files
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	watchPaths    []string
	extensions    map[string]bool
	onChange      func([]FileChangeEvent)
	debounceDelay time.Duration

	// Debouncing
	pendingEvents map[string]FileChangeEvent
	eventMutex    sync.Mutex
	debounceTimer *time.Timer

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewFileWatcher creates a watcher for files with the given extensions
func NewFileWatcher(extensions []string, onChange func([]FileChangeEvent)) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	return &FileWatcher{
		watcher:       watcher,
		extensions:    exts,
		onChange:      onChange,
		debounceDelay: constants.FileWatchDebounceDelay,
		pendingEvents: make(map[string]FileChangeEvent),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}, nil
}

// AddPath watches a file, or a directory tree
func (fw *FileWatcher) AddPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if err := fw.watcher.Add(absPath); err != nil {
		return err
	}

	fw.watchPaths = append(fw.watchPaths, absPath)
	common.WatcherLogger.Debug("Added watch path: %s", absPath)

	if err := fw.addSubdirectories(absPath); err != nil {
		common.WatcherLogger.Warn("Failed to add subdirectories for %s: %v", absPath, err)
	}

	return nil
}

func skipDirectory(name string) bool {
	return constants.SkipDirectories[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// addSubdirectories recursively adds subdirectories to watch
func (fw *FileWatcher) addSubdirectories(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if skipDirectory(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			common.WatcherLogger.Warn("Failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}

// Start begins watching for file changes
func (fw *FileWatcher) Start() {
	fw.eventMutex.Lock()
	fw.started = true
	fw.eventMutex.Unlock()
	go fw.watchLoop()
}

func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.shouldProcess(event) {
				continue
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			common.WatcherLogger.Error("fsnotify error: %v", err)
		}
	}
}

// shouldProcess filters by extension and picks up newly created directories
func (fw *FileWatcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirectory(filepath.Base(event.Name)) {
				if err := fw.watcher.Add(event.Name); err != nil {
					common.WatcherLogger.Warn("Failed to watch new directory %s: %v", event.Name, err)
				}
				if err := fw.addSubdirectories(event.Name); err != nil {
					common.WatcherLogger.Warn("Failed to add new directory %s: %v", event.Name, err)
				}
			}
			return false
		}
	}

	return fw.extensions[strings.ToLower(filepath.Ext(event.Name))]
}

func changeTypeFor(op fsnotify.Op) (requests.FileChangeType, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return requests.FileChangeCreate, true
	case op&fsnotify.Write != 0:
		return requests.FileChangeChange, true
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// a rename reports the old name; the new name arrives as Create
		return requests.FileChangeDelete, true
	default:
		return "", false
	}
}

// handleEvent records the event and restarts the debounce timer
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	changeType, ok := changeTypeFor(event.Op)
	if !ok {
		return
	}

	fw.eventMutex.Lock()
	defer fw.eventMutex.Unlock()

	// A create followed by writes in the same window is still a create
	if prev, exists := fw.pendingEvents[event.Name]; exists &&
		prev.ChangeType == requests.FileChangeCreate && changeType == requests.FileChangeChange {
		changeType = requests.FileChangeCreate
	}

	fw.pendingEvents[event.Name] = FileChangeEvent{
		Path:       event.Name,
		ChangeType: changeType,
		Timestamp:  time.Now(),
	}

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, fw.flushEvents)
}

// flushEvents sends all pending events to the callback, sorted by path
func (fw *FileWatcher) flushEvents() {
	fw.eventMutex.Lock()
	if len(fw.pendingEvents) == 0 {
		fw.eventMutex.Unlock()
		return
	}

	events := make([]FileChangeEvent, 0, len(fw.pendingEvents))
	for _, event := range fw.pendingEvents {
		events = append(events, event)
	}
	fw.pendingEvents = make(map[string]FileChangeEvent)
	fw.eventMutex.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	if fw.onChange != nil {
		common.WatcherLogger.Debug("Flushing %d file change events", len(events))
		fw.onChange(events)
	}
}

// Stop stops the watcher, delivering any events still being debounced
func (fw *FileWatcher) Stop() error {
	fw.cancel()

	fw.eventMutex.Lock()
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	started := fw.started
	fw.eventMutex.Unlock()

	fw.flushEvents()

	err := fw.watcher.Close()

	if started {
		<-fw.done
	}
	return err
}

// SetDebounceDelay sets the debounce delay for file events
func (fw *FileWatcher) SetDebounceDelay(delay time.Duration) {
	fw.eventMutex.Lock()
	fw.debounceDelay = delay
	fw.eventMutex.Unlock()
}

// WatchPaths returns the roots passed to AddPath
func (fw *FileWatcher) WatchPaths() []string {
	return append([]string(nil), fw.watchPaths...)
}

// ToFilesChanged converts a batch to the /filesChanged payload
func ToFilesChanged(events []FileChangeEvent) []requests.FilesChangedRequest {
	out := make([]requests.FilesChangedRequest, 0, len(events))
	for _, e := range events {
		out = append(out, requests.FilesChangedRequest{FileName: e.Path, ChangeType: e.ChangeType})
	}
	return out
}
