package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"analysis-broker/internal/common"
	"analysis-broker/internal/constants"
)

// Packet type discriminators
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// RequestPacket is written to the server's stdin, one per line
type RequestPacket struct {
	Type      string      `json:"Type"`
	Seq       int         `json:"Seq"`
	Command   string      `json:"Command"`
	Arguments interface{} `json:"Arguments,omitempty"`
}

// ResponsePacket answers the request whose Seq equals RequestSeq
type ResponsePacket struct {
	Type       string          `json:"Type"`
	Seq        int             `json:"Seq"`
	Command    string          `json:"Command"`
	RequestSeq int             `json:"Request_seq"`
	Running    bool            `json:"Running"`
	Success    bool            `json:"Success"`
	Message    string          `json:"Message,omitempty"`
	Body       json.RawMessage `json:"Body,omitempty"`
}

// EventPacket is an unsolicited server notification
type EventPacket struct {
	Type  string          `json:"Type"`
	Seq   int             `json:"Seq"`
	Event string          `json:"Event"`
	Body  json.RawMessage `json:"Body,omitempty"`
}

// LogBody is the body of a "log" event
type LogBody struct {
	LogLevel string `json:"LogLevel"`
	Name     string `json:"Name"`
	Message  string `json:"Message"`
}

// PacketHandler receives decoded server output
type PacketHandler interface {
	HandleResponse(packet *ResponsePacket) error
	HandleEvent(packet *EventPacket) error
	// HandleOutput receives stdout lines that are not packets
	HandleOutput(line string)
}

// NewRequestPacket creates a request packet for the given sequence id
func NewRequestPacket(seq int, command string, arguments interface{}) RequestPacket {
	return RequestPacket{
		Type:      TypeRequest,
		Seq:       seq,
		Command:   command,
		Arguments: arguments,
	}
}

// WritePacket sends a packet as a single newline-terminated JSON line
func WritePacket(writer io.Writer, packet interface{}) error {
	data, err := json.Marshal(packet)
	if err != nil {
		return fmt.Errorf("failed to marshal packet: %w", err)
	}

	data = append(data, '\n')
	_, err = writer.Write(data)
	return err
}

// HandlePackets reads server stdout until EOF or stopCh closes, routing each line.
// A nil stopCh reads to EOF.
func HandlePackets(reader io.Reader, handler PacketHandler, stopCh <-chan struct{}) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, constants.ServerOutputInitialBuffer), constants.ServerOutputBufferSize)

	for scanner.Scan() {
		select {
		case <-stopCh:
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := HandleLine(line, handler); err != nil {
			common.ServerLogger.Error("Error handling server packet: %v", err)
		}
	}

	// Scanner returns nil on EOF, which is expected during shutdown
	return scanner.Err()
}

// HandleLine decodes one line of server output and routes it to the handler
func HandleLine(line string, handler PacketHandler) error {
	if !strings.HasPrefix(line, "{") {
		handler.HandleOutput(line)
		return nil
	}

	var probe struct {
		Type string `json:"Type"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		common.ServerLogger.Warn("Failed to parse server packet: %v", err)
		return fmt.Errorf("malformed packet: %w", err)
	}

	switch probe.Type {
	case TypeResponse:
		var packet ResponsePacket
		if err := json.Unmarshal([]byte(line), &packet); err != nil {
			return fmt.Errorf("malformed response packet: %w", err)
		}
		return handler.HandleResponse(&packet)
	case TypeEvent:
		var packet EventPacket
		if err := json.Unmarshal([]byte(line), &packet); err != nil {
			return fmt.Errorf("malformed event packet: %w", err)
		}
		return handler.HandleEvent(&packet)
	default:
		common.ServerLogger.Warn("Unknown packet type %q from server", probe.Type)
		return fmt.Errorf("unknown packet type %q", probe.Type)
	}
}

// FailureMessage extracts the best error text from an unsuccessful response
func (p *ResponsePacket) FailureMessage() string {
	if p.Message != "" {
		return p.Message
	}
	if len(p.Body) > 0 && string(p.Body) != "null" {
		var text string
		if err := json.Unmarshal(p.Body, &text); err == nil {
			return text
		}
		return string(p.Body)
	}
	return ""
}
