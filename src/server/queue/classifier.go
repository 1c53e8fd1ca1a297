package queue

import "analysis-broker/src/server/protocol"

// Class is a request's priority class
type Class int

const (
	Priority Class = iota
	Normal
	Deferred
)

// Classes lists every class in drain precedence order
var Classes = []Class{Priority, Normal, Deferred}

// String returns the class name used in logs and events
func (c Class) String() string {
	switch c {
	case Priority:
		return "Priority"
	case Normal:
		return "Normal"
	case Deferred:
		return "Deferred"
	default:
		return "Unknown"
	}
}

// Buffer edits and keystroke formatting must never wait behind anything else.
var priorityCommands = map[string]struct{}{
	protocol.ChangeBuffer:         {},
	protocol.FormatAfterKeystroke: {},
	protocol.FormatRange:          {},
	protocol.UpdateBuffer:         {},
}

var normalCommands = map[string]struct{}{
	protocol.AutoComplete:      {},
	protocol.Completion:        {},
	protocol.CompletionResolve: {},
	protocol.FilesChanged:      {},
	protocol.FindSymbols:       {},
	protocol.FindUsages:        {},
	protocol.GetCodeActions:    {},
	protocol.GoToDefinition:    {},
	protocol.Highlight:         {},
	protocol.QuickInfo:         {},
	protocol.RunCodeAction:     {},
	protocol.SignatureHelp:     {},
	protocol.TypeLookup:        {},
	protocol.V2GetCodeActions:  {},
	protocol.V2RunCodeAction:   {},
}

// Classify maps a command to its class. Unlisted commands are Deferred.
func Classify(command string) Class {
	if _, ok := priorityCommands[command]; ok {
		return Priority
	}
	if _, ok := normalCommands[command]; ok {
		return Normal
	}
	return Deferred
}
