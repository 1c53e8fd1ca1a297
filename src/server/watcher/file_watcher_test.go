package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analysis-broker/src/server/requests"
)

type batchCollector struct {
	mu      sync.Mutex
	batches [][]FileChangeEvent
	ch      chan struct{}
}

func newBatchCollector() *batchCollector {
	return &batchCollector{ch: make(chan struct{}, 16)}
}

func (c *batchCollector) onChange(events []FileChangeEvent) {
	c.mu.Lock()
	c.batches = append(c.batches, events)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *batchCollector) all() []FileChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []FileChangeEvent
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func TestFileWatcherReportsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	collector := newBatchCollector()

	fw, err := NewFileWatcher([]string{".cs"}, collector.onChange)
	require.NoError(t, err)
	fw.SetDebounceDelay(50 * time.Millisecond)
	require.NoError(t, fw.AddPath(dir))
	fw.Start()
	defer fw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Program.cs"), []byte("class P {}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	select {
	case <-collector.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	events := collector.all()
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, ".cs", filepath.Ext(e.Path))
	}
	assert.Equal(t, requests.FileChangeCreate, events[0].ChangeType)
}

func TestFileWatcherSkipsBuildOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "obj", "Debug"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))

	fw, err := NewFileWatcher([]string{".cs"}, nil)
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.AddPath(dir))

	watched := fw.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(dir, "src"))
	assert.NotContains(t, watched, filepath.Join(dir, "obj"))
	assert.NotContains(t, watched, filepath.Join(dir, "obj", "Debug"))
}

func TestHandleEventDebouncesAndKeepsCreate(t *testing.T) {
	collector := newBatchCollector()
	fw, err := NewFileWatcher([]string{".cs"}, collector.onChange)
	require.NoError(t, err)
	fw.SetDebounceDelay(time.Hour)

	fw.handleEvent(fsnotify.Event{Name: "/w/B.cs", Op: fsnotify.Create})
	fw.handleEvent(fsnotify.Event{Name: "/w/B.cs", Op: fsnotify.Write})
	fw.handleEvent(fsnotify.Event{Name: "/w/A.cs", Op: fsnotify.Remove})
	fw.handleEvent(fsnotify.Event{Name: "/w/C.cs", Op: fsnotify.Chmod})

	// Stop flushes whatever is still waiting on the timer
	require.NoError(t, fw.Stop())

	events := collector.all()
	require.Len(t, events, 2)
	assert.Equal(t, "/w/A.cs", events[0].Path)
	assert.Equal(t, requests.FileChangeDelete, events[0].ChangeType)
	assert.Equal(t, "/w/B.cs", events[1].Path)
	assert.Equal(t, requests.FileChangeCreate, events[1].ChangeType)
}

func TestToFilesChanged(t *testing.T) {
	payload := ToFilesChanged([]FileChangeEvent{
		{Path: "/w/A.cs", ChangeType: requests.FileChangeChange},
	})

	assert.Equal(t, []requests.FilesChangedRequest{
		{FileName: "/w/A.cs", ChangeType: requests.FileChangeChange},
	}, payload)
}
