package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"analysis-broker/internal/common"
	"analysis-broker/internal/constants"
	"analysis-broker/internal/errors"
	"analysis-broker/src/server"
	"analysis-broker/src/server/requests"
)

// Requester sends one command to the analysis server and waits for its body
type Requester interface {
	MakeRequest(ctx context.Context, command string, data interface{}) (json.RawMessage, error)
}

// BridgeRequest is one stdin line of `run`. It names either a server command
// with raw arguments or an LSP method with LSP params.
type BridgeRequest struct {
	Seq       int             `json:"seq,omitempty"`
	Command   string          `json:"command,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// BridgeResponse is one stdout line of `run`
type BridgeResponse struct {
	Command  string          `json:"command"`
	Method   string          `json:"method,omitempty"`
	Seq      int             `json:"seq"`
	Success  bool            `json:"success"`
	Body     json.RawMessage `json:"body,omitempty"`
	Error    string          `json:"error,omitempty"`
	Category string          `json:"category,omitempty"`
}

// RunBroker starts the analysis server and bridges stdin requests to it until
// stdin closes or a shutdown signal arrives.
func RunBroker(configPath, watchRoot string, in io.Reader, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	srv := server.NewServer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return errors.WrapWithContext("start analysis server", err)
	}

	stopWatching := func() error { return nil }
	if watchRoot != "" || cfg.Watch.Enabled {
		root := watchRoot
		if root == "" {
			root = cfg.Server.WorkingDir
		}
		if root == "" {
			root, _ = os.Getwd()
		}
		if stopFn, err := srv.WatchFiles(root); err != nil {
			common.CLILogger.Warn("File watching disabled: %v", err)
		} else {
			stopWatching = stopFn
		}
	}

	bridgeErr := Bridge(ctx, srv, in, out)
	if ctx.Err() != nil {
		common.CLILogger.Info("Received shutdown signal, stopping analysis server...")
	}

	if err := stopWatching(); err != nil {
		common.CLILogger.Warn("Failed to stop file watcher: %v", err)
	}
	stopErr := stopWithTimeout(srv, cfg.ShutdownTimeout)

	printDelayReport(os.Stderr, srv.Delays())

	if bridgeErr != nil {
		return bridgeErr
	}
	return stopErr
}

// stopWithTimeout gives Stop twice the process grace period before giving up
func stopWithTimeout(srv *server.Server, timeout time.Duration) error {
	ctx, cancel := common.CreateContext(2*timeout + time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Stop()
	}()

	select {
	case err := <-done:
		if err != nil {
			common.CLILogger.Warn("Analysis server stopped with error: %v", err)
		}
		return err
	case <-ctx.Done():
		common.CLILogger.Warn("Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}

// Bridge reads BridgeRequests from in, runs each concurrently through r and
// writes a BridgeResponse per request to out as it completes.
func Bridge(ctx context.Context, r Requester, in io.Reader, out io.Writer) error {
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
		encoder = json.NewEncoder(out)
	)

	emit := func(resp BridgeResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := encoder.Encode(resp); err != nil {
			common.CLILogger.Error("Failed to write response for %s: %v", resp.Command, err)
		}
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, constants.ServerOutputInitialBuffer), constants.ServerOutputBufferSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	lineNo := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lineNo++

			var req BridgeRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil || (req.Command == "" && req.Method == "") {
				if err == nil {
					err = fmt.Errorf("missing command or method")
				}
				emit(BridgeResponse{Seq: lineNo, Error: fmt.Sprintf("invalid request: %v", err)})
				continue
			}
			if req.Seq == 0 {
				req.Seq = lineNo
			}

			wg.Add(1)
			go func(req BridgeRequest) {
				defer wg.Done()
				emit(execute(ctx, r, req))
			}(req)
		}
	}

	wg.Wait()

	select {
	case err := <-scanErr:
		if err != nil {
			return fmt.Errorf("failed to read requests: %w", err)
		}
	default:
	}
	return nil
}

func execute(ctx context.Context, r Requester, req BridgeRequest) BridgeResponse {
	resp := BridgeResponse{Command: req.Command, Method: req.Method, Seq: req.Seq}
	fail := func(err error) BridgeResponse {
		resp.Error = err.Error()
		resp.Category = errors.GetErrorCategory(err)
		return resp
	}

	var (
		args        interface{}
		translation *requests.Translation
	)
	if req.Method != "" {
		t, err := requests.FromLSP(req.Method, req.Params)
		if err != nil {
			return fail(errors.WrapWithContext(req.Method, err))
		}
		translation = t
		resp.Command = t.Command
		args = t.Payload
	} else if len(req.Arguments) > 0 {
		args = req.Arguments
	}

	body, err := r.MakeRequest(ctx, resp.Command, args)
	if err != nil {
		return fail(err)
	}

	if translation != nil {
		if body, err = translation.Result(body); err != nil {
			return fail(errors.WrapWithContext(req.Method, err))
		}
	}
	resp.Success = true
	resp.Body = body
	return resp
}
