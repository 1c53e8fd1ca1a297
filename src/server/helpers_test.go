package server

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"analysis-broker/src/config"
	"analysis-broker/src/server/process"
	"analysis-broker/src/server/protocol"
)

// fakeAnalysisServer plays the external process over in-memory pipes
type fakeAnalysisServer struct {
	info     *process.ProcessInfo
	stdoutW  *io.PipeWriter
	stderrW  *io.PipeWriter
	writeMu  sync.Mutex
	received chan protocol.RequestPacket
	eventSeq int
}

func (f *fakeAnalysisServer) readRequests(stdin io.Reader) {
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		var packet protocol.RequestPacket
		if err := json.Unmarshal(scanner.Bytes(), &packet); err == nil {
			f.received <- packet
		}
	}
	// stdin closed: exit cleanly
	f.exit(nil)
}

func (f *fakeAnalysisServer) exit(err error) {
	f.stdoutW.Close()
	f.stderrW.Close()
	f.info.MarkExited(err)
}

func (f *fakeAnalysisServer) write(t *testing.T, packet interface{}) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	require.NoError(t, protocol.WritePacket(f.stdoutW, packet))
}

func (f *fakeAnalysisServer) respond(t *testing.T, request protocol.RequestPacket, body string) {
	f.write(t, protocol.ResponsePacket{
		Type:       protocol.TypeResponse,
		Seq:        request.Seq + 1000,
		Command:    request.Command,
		RequestSeq: request.Seq,
		Running:    true,
		Success:    true,
		Body:       json.RawMessage(body),
	})
}

func (f *fakeAnalysisServer) fail(t *testing.T, request protocol.RequestPacket, message string) {
	f.write(t, protocol.ResponsePacket{
		Type:       protocol.TypeResponse,
		Command:    request.Command,
		RequestSeq: request.Seq,
		Running:    true,
		Success:    false,
		Message:    message,
	})
}

func (f *fakeAnalysisServer) emit(t *testing.T, event string, body string) {
	f.eventSeq++
	f.write(t, protocol.EventPacket{
		Type:  protocol.TypeEvent,
		Seq:   f.eventSeq,
		Event: event,
		Body:  json.RawMessage(body),
	})
}

func (f *fakeAnalysisServer) expectRequest(t *testing.T) protocol.RequestPacket {
	t.Helper()
	select {
	case packet := <-f.received:
		return packet
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a request packet")
		return protocol.RequestPacket{}
	}
}

func (f *fakeAnalysisServer) expectNoRequest(t *testing.T) {
	t.Helper()
	select {
	case packet := <-f.received:
		t.Fatalf("unexpected request %s (seq %d)", packet.Command, packet.Seq)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeProcessManager hands out fakeAnalysisServers instead of OS processes
type fakeProcessManager struct {
	mu       sync.Mutex
	current  *fakeAnalysisServer
	startErr error

	// exitOnStart makes every process die before StartProcess returns
	exitOnStart error
}

func (pm *fakeProcessManager) StartProcess(cfg config.ServerConfig) (*process.ProcessInfo, error) {
	if pm.startErr != nil {
		return nil, pm.startErr
	}
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	fake := &fakeAnalysisServer{
		info:     process.NewProcessInfo(stdinW, stdoutR, stderrR),
		stdoutW:  stdoutW,
		stderrW:  stderrW,
		received: make(chan protocol.RequestPacket, 100),
	}
	go fake.readRequests(stdinR)
	if pm.exitOnStart != nil {
		fake.exit(pm.exitOnStart)
	}

	pm.mu.Lock()
	pm.current = fake
	pm.mu.Unlock()
	return fake.info, nil
}

func (pm *fakeProcessManager) StopProcess(info *process.ProcessInfo) error {
	info.SignalStop()
	info.Stdin.Close()
	<-info.Exited
	return nil
}

func (pm *fakeProcessManager) MonitorProcess(info *process.ProcessInfo, onExit func(error)) {
	<-info.Exited
	onExit(info.ExitErr)
}

func (pm *fakeProcessManager) CleanupProcess(info *process.ProcessInfo) {
	info.Stdin.Close()
	info.Stdout.Close()
	info.Stderr.Close()
}

func (pm *fakeProcessManager) server() *fakeAnalysisServer {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.current
}

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.ShutdownTimeout = time.Second
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

var errCrashed = stderrors.New("exit status 134")

type callResult struct {
	body json.RawMessage
	err  error
}
