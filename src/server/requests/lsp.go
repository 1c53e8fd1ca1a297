package requests

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.lsp.dev/protocol"

	packets "analysis-broker/src/server/protocol"
)

// ErrUnsupportedMethod is returned for editor methods with no server command
var ErrUnsupportedMethod = errors.New("unsupported method")

// Translation is an editor request rewritten as a server command
type Translation struct {
	Method  string
	Command string
	Payload interface{}

	// result converts the server body back to the editor's result shape;
	// nil passes the body through unchanged
	result func(body json.RawMessage) (interface{}, error)
}

// FromLSP maps an LSP method and its params onto the server command that serves it
func FromLSP(method string, params json.RawMessage) (*Translation, error) {
	t := &Translation{Method: method}

	switch method {
	case protocol.MethodTextDocumentDidOpen:
		var p protocol.DidOpenTextDocumentParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t.Command = packets.UpdateBuffer
		t.Payload = NewUpdateBufferRequest(protocol.TextDocumentIdentifier{URI: p.TextDocument.URI}, p.TextDocument.Text)
		t.result = func(json.RawMessage) (interface{}, error) { return nil, nil }

	case protocol.MethodTextDocumentDefinition:
		var p protocol.DefinitionParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t.Command = packets.GoToDefinition
		t.Payload = NewRequest(p.TextDocument, p.Position)
		t.result = definitionResult

	case protocol.MethodTextDocumentImplementation:
		var p protocol.TextDocumentPositionParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t.Command = packets.FindImplementations
		t.Payload = NewRequest(p.TextDocument, p.Position)
		t.result = quickFixResult

	case protocol.MethodTextDocumentReferences:
		var p protocol.ReferenceParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t.Command = packets.FindUsages
		t.Payload = NewFindUsagesRequest(p)
		t.result = quickFixResult

	case protocol.MethodTextDocumentRangeFormatting:
		var p protocol.DocumentRangeFormattingParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		t.Command = packets.FormatRange
		t.Payload = NewFormatRangeRequest(p.TextDocument, p.Range)
		t.result = formatRangeResult

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	return t, nil
}

// Result converts a server response body to the JSON result the editor expects
func (t *Translation) Result(body json.RawMessage) (json.RawMessage, error) {
	if t.result == nil {
		return body, nil
	}
	value, err := t.result(body)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s response: %w", t.Command, err)
	}
	return json.Marshal(value)
}

func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// definitionResult returns null when the server found nothing
func definitionResult(body json.RawMessage) (interface{}, error) {
	var fix QuickFix
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &fix); err != nil {
			return nil, err
		}
	}
	if fix.FileName == "" {
		return nil, nil
	}
	return []protocol.Location{fix.Location()}, nil
}

func quickFixResult(body json.RawMessage) (interface{}, error) {
	var resp QuickFixResponse
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
	}
	return resp.Locations(), nil
}

// FormatRangeResponse is the body of /formatRange
type FormatRangeResponse struct {
	Changes []LinePositionSpanTextChange `json:"Changes"`
}

func formatRangeResult(body json.RawMessage) (interface{}, error) {
	var resp FormatRangeResponse
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
	}
	edits := make([]protocol.TextEdit, 0, len(resp.Changes))
	for _, c := range resp.Changes {
		edits = append(edits, c.ToEdit())
	}
	return edits, nil
}
