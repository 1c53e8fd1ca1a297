package requests

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func testDocument(t *testing.T) (protocol.TextDocumentIdentifier, string) {
	path := filepath.Join(t.TempDir(), "Program.cs")
	return protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri.File(path))}, path
}

func TestNewRequestConvertsToOneBased(t *testing.T) {
	doc, path := testDocument(t)

	req := NewRequest(doc, protocol.Position{Line: 0, Character: 4})

	assert.Equal(t, path, req.FileName)
	assert.Equal(t, 1, req.Line)
	assert.Equal(t, 5, req.Column)
}

func TestNewChangeBufferRequest(t *testing.T) {
	doc, _ := testDocument(t)
	rng := protocol.Range{
		Start: protocol.Position{Line: 2, Character: 0},
		End:   protocol.Position{Line: 2, Character: 3},
	}

	req := NewChangeBufferRequest(doc, rng, "var")

	assert.Equal(t, 3, req.StartLine)
	assert.Equal(t, 1, req.StartColumn)
	assert.Equal(t, 3, req.EndLine)
	assert.Equal(t, 4, req.EndColumn)
	assert.Equal(t, "var", req.NewText)
}

func TestUpdateBufferRequestJSON(t *testing.T) {
	doc, path := testDocument(t)

	data, err := json.Marshal(NewUpdateBufferRequest(doc, "class C {}"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, path, decoded["FileName"])
	assert.Equal(t, "class C {}", decoded["Buffer"])
	_, hasFromDisk := decoded["FromDisk"]
	assert.False(t, hasFromDisk)
}

func TestNewFindUsagesRequest(t *testing.T) {
	doc, _ := testDocument(t)
	params := protocol.ReferenceParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: doc,
			Position:     protocol.Position{Line: 9, Character: 12},
		},
		Context: protocol.ReferenceContext{IncludeDeclaration: false},
	}

	req := NewFindUsagesRequest(params)

	assert.Equal(t, 10, req.Line)
	assert.Equal(t, 13, req.Column)
	assert.True(t, req.ExcludeDefinition)
}

func TestQuickFixResponseLocations(t *testing.T) {
	_, path := testDocument(t)
	body := `{"QuickFixes":[
		{"FileName":` + mustJSON(t, path) + `,"Line":3,"Column":5,"EndLine":3,"EndColumn":9,"Text":"Foo"},
		{"FileName":` + mustJSON(t, path) + `,"Line":7,"Column":1,"Text":"Bar"}
	]}`

	var resp QuickFixResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	locations := resp.Locations()
	require.Len(t, locations, 2)

	assert.Equal(t, path, uri.URI(locations[0].URI).Filename())
	assert.Equal(t, protocol.Position{Line: 2, Character: 4}, locations[0].Range.Start)
	assert.Equal(t, protocol.Position{Line: 2, Character: 8}, locations[0].Range.End)

	// missing end collapses to the start position
	assert.Equal(t, locations[1].Range.Start, locations[1].Range.End)
}

func TestTextChangeToEdit(t *testing.T) {
	edit := LinePositionSpanTextChange{NewText: "x", StartLine: 1, StartColumn: 1, EndLine: 0, EndColumn: 0}.ToEdit()

	assert.Equal(t, "x", edit.NewText)
	assert.Equal(t, protocol.Position{}, edit.Range.Start)
	assert.Equal(t, protocol.Position{}, edit.Range.End, "out-of-range values clamp at zero")
}

func mustJSON(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
