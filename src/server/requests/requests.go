// Package requests defines the JSON payloads sent to the analysis server and
// converts between editor (LSP, 0-based) positions and server (1-based) ones.
package requests

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Request is the common payload of position-based commands
type Request struct {
	FileName             string                       `json:"FileName,omitempty"`
	Line                 int                          `json:"Line"`
	Column               int                          `json:"Column"`
	Buffer               *string                      `json:"Buffer,omitempty"`
	Changes              []LinePositionSpanTextChange `json:"Changes,omitempty"`
	ApplyChangesTogether bool                         `json:"ApplyChangesTogether,omitempty"`
}

// LinePositionSpanTextChange is a 1-based text edit
type LinePositionSpanTextChange struct {
	NewText     string `json:"NewText"`
	StartLine   int    `json:"StartLine"`
	StartColumn int    `json:"StartColumn"`
	EndLine     int    `json:"EndLine"`
	EndColumn   int    `json:"EndColumn"`
}

// UpdateBufferRequest replaces the server's copy of a file
type UpdateBufferRequest struct {
	Request
	FromDisk bool `json:"FromDisk,omitempty"`
}

// ChangeBufferRequest applies one ranged edit to the server's copy of a file
type ChangeBufferRequest struct {
	FileName    string `json:"FileName"`
	StartLine   int    `json:"StartLine"`
	StartColumn int    `json:"StartColumn"`
	EndLine     int    `json:"EndLine"`
	EndColumn   int    `json:"EndColumn"`
	NewText     string `json:"NewText"`
}

// FindUsagesRequest is the payload of /findusages
type FindUsagesRequest struct {
	Request
	OnlyThisFile      bool `json:"OnlyThisFile"`
	ExcludeDefinition bool `json:"ExcludeDefinition"`
}

// FormatRangeRequest is the payload of /formatRange
type FormatRangeRequest struct {
	Request
	EndLine   int `json:"EndLine"`
	EndColumn int `json:"EndColumn"`
}

// FormatAfterKeystrokeRequest is the payload of /formatAfterKeystroke
type FormatAfterKeystrokeRequest struct {
	Request
	Character string `json:"Character"`
}

// FileChangeType is how a watched file changed
type FileChangeType string

const (
	FileChangeCreate FileChangeType = "Create"
	FileChangeChange FileChangeType = "Change"
	FileChangeDelete FileChangeType = "Delete"
)

// FilesChangedRequest is one element of the /filesChanged payload
type FilesChangedRequest struct {
	FileName   string         `json:"FileName"`
	ChangeType FileChangeType `json:"ChangeType"`
}

// QuickFix is a 1-based location the server reports for usages, symbols and diagnostics
type QuickFix struct {
	FileName  string   `json:"FileName"`
	Line      int      `json:"Line"`
	Column    int      `json:"Column"`
	EndLine   int      `json:"EndLine"`
	EndColumn int      `json:"EndColumn"`
	Text      string   `json:"Text"`
	Projects  []string `json:"Projects,omitempty"`
}

// QuickFixResponse is the body of /findusages, /findsymbols and /findimplementations
type QuickFixResponse struct {
	QuickFixes []QuickFix `json:"QuickFixes"`
}

// FileName converts a document URI to the path the server expects
func FileName(documentURI protocol.DocumentURI) string {
	return uri.URI(documentURI).Filename()
}

// NewRequest builds a position request from an editor position
func NewRequest(document protocol.TextDocumentIdentifier, position protocol.Position) Request {
	return Request{
		FileName: FileName(document.URI),
		Line:     int(position.Line) + 1,
		Column:   int(position.Character) + 1,
	}
}

// NewUpdateBufferRequest sends the full document text
func NewUpdateBufferRequest(document protocol.TextDocumentIdentifier, text string) UpdateBufferRequest {
	return UpdateBufferRequest{
		Request: Request{
			FileName: FileName(document.URI),
			Buffer:   &text,
		},
	}
}

// NewChangeBufferRequest sends a single ranged edit
func NewChangeBufferRequest(document protocol.TextDocumentIdentifier, rng protocol.Range, newText string) ChangeBufferRequest {
	return ChangeBufferRequest{
		FileName:    FileName(document.URI),
		StartLine:   int(rng.Start.Line) + 1,
		StartColumn: int(rng.Start.Character) + 1,
		EndLine:     int(rng.End.Line) + 1,
		EndColumn:   int(rng.End.Character) + 1,
		NewText:     newText,
	}
}

// NewFormatRangeRequest formats the given editor range
func NewFormatRangeRequest(document protocol.TextDocumentIdentifier, rng protocol.Range) FormatRangeRequest {
	return FormatRangeRequest{
		Request:   NewRequest(document, rng.Start),
		EndLine:   int(rng.End.Line) + 1,
		EndColumn: int(rng.End.Character) + 1,
	}
}

// NewFindUsagesRequest looks up references to the symbol at position
func NewFindUsagesRequest(params protocol.ReferenceParams) FindUsagesRequest {
	return FindUsagesRequest{
		Request:           NewRequest(params.TextDocument, params.Position),
		ExcludeDefinition: !params.Context.IncludeDeclaration,
	}
}

// ToEdit converts a server edit to an editor edit
func (c LinePositionSpanTextChange) ToEdit() protocol.TextEdit {
	return protocol.TextEdit{
		Range:   toRange(c.StartLine, c.StartColumn, c.EndLine, c.EndColumn),
		NewText: c.NewText,
	}
}

// Location converts a server quick fix to an editor location
func (q QuickFix) Location() protocol.Location {
	endLine, endColumn := q.EndLine, q.EndColumn
	if endLine == 0 {
		endLine, endColumn = q.Line, q.Column
	}
	return protocol.Location{
		URI:   protocol.DocumentURI(uri.File(q.FileName)),
		Range: toRange(q.Line, q.Column, endLine, endColumn),
	}
}

// Locations converts every quick fix in the response
func (r QuickFixResponse) Locations() []protocol.Location {
	out := make([]protocol.Location, 0, len(r.QuickFixes))
	for _, q := range r.QuickFixes {
		out = append(out, q.Location())
	}
	return out
}

func toRange(startLine, startColumn, endLine, endColumn int) protocol.Range {
	return protocol.Range{
		Start: toPosition(startLine, startColumn),
		End:   toPosition(endLine, endColumn),
	}
}

func toPosition(line, column int) protocol.Position {
	return protocol.Position{
		Line:      zeroBased(line),
		Character: zeroBased(column),
	}
}

func zeroBased(n int) uint32 {
	if n < 1 {
		return 0
	}
	return uint32(n - 1)
}
