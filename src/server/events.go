package server

import (
	"encoding/json"
	"strings"

	"analysis-broker/internal/common"
	"analysis-broker/src/server/protocol"
	"analysis-broker/src/server/queue"
)

// EventHandler receives server events
type EventHandler func(event *protocol.EventPacket)

// OnEvent registers a handler for an event name; protocol.EventWildcard receives all events
func (s *Server) OnEvent(name string, handler EventHandler) {
	s.handlersMu.Lock()
	s.handlers[name] = append(s.handlers[name], handler)
	s.handlersMu.Unlock()
}

// HandleEvent logs server log events and fans every event out to its handlers
func (s *Server) HandleEvent(packet *protocol.EventPacket) error {
	switch packet.Event {
	case protocol.EventLog:
		s.logServerMessage(packet.Body)
	case protocol.EventStarted:
		common.ServerLogger.Info("Analysis server reported started")
	}

	s.handlersMu.RLock()
	handlers := append([]EventHandler(nil), s.handlers[packet.Event]...)
	handlers = append(handlers, s.handlers[protocol.EventWildcard]...)
	s.handlersMu.RUnlock()

	for _, h := range handlers {
		h(packet)
	}
	return nil
}

func (s *Server) logServerMessage(body json.RawMessage) {
	var entry protocol.LogBody
	if err := json.Unmarshal(body, &entry); err != nil {
		common.ServerLogger.Debug("Unreadable log event: %v", err)
		return
	}

	switch strings.ToUpper(entry.LogLevel) {
	case "TRACE", "DEBUG":
		common.ServerLogger.Debug("[%s] %s", entry.Name, entry.Message)
	case "WARNING", "WARN":
		common.ServerLogger.Warn("[%s] %s", entry.Name, entry.Message)
	case "ERROR", "CRITICAL":
		common.ServerLogger.Error("[%s] %s", entry.Name, common.SanitizeErrorForLogging(entry.Message))
	default:
		common.ServerLogger.Info("[%s] %s", entry.Name, entry.Message)
	}
}

// LogSink writes queue events to a logger at debug level
type LogSink struct {
	logger *common.SafeLogger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *common.SafeLogger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements queue.EventSink
func (l *LogSink) Emit(event queue.Event) {
	if l.logger.Level() > common.LogDebug {
		return
	}
	switch event.Kind {
	case queue.EventEnqueue:
		l.logger.Debug("Enqueue %s request for %s.", event.Queue, event.Command)
	case queue.EventDequeue:
		l.logger.Debug("Dequeue %s request for %s (%d).", event.Queue, event.Command, event.ID)
	case queue.EventDrainStart:
		l.logger.Debug("Draining %s queue.", event.Queue)
	case queue.EventDrainComplete:
		l.logger.Debug("Finished draining %s queue.", event.Queue)
	}
}
