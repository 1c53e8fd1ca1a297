package protocol

// Request command names understood by the analysis server
const (
	AutoComplete         = "/autocomplete"
	ChangeBuffer         = "/changebuffer"
	CodeCheck            = "/codecheck"
	CodeFormat           = "/codeformat"
	Completion           = "/completion"
	CompletionResolve    = "/completion/resolve"
	FilesChanged         = "/filesChanged"
	FindImplementations  = "/findimplementations"
	FindSymbols          = "/findsymbols"
	FindUsages           = "/findusages"
	FormatAfterKeystroke = "/formatAfterKeystroke"
	FormatRange          = "/formatRange"
	GetCodeActions       = "/getcodeactions"
	GoToDefinition       = "/gotodefinition"
	Highlight            = "/highlight"
	MembersFlat          = "/currentfilemembersasflat"
	MembersTree          = "/currentfilemembersastree"
	Metadata             = "/metadata"
	Projects             = "/projects"
	QuickInfo            = "/quickinfo"
	Rename               = "/rename"
	RunCodeAction        = "/runcodeaction"
	SignatureHelp        = "/signatureHelp"
	TypeLookup           = "/typelookup"
	UpdateBuffer         = "/updatebuffer"

	V2GetCodeActions = "/v2/getcodeactions"
	V2RunCodeAction  = "/v2/runcodeaction"
)

// Event names the server publishes
const (
	EventLog                        = "log"
	EventStarted                    = "started"
	EventError                      = "Error"
	EventDiagnostic                 = "Diagnostic"
	EventProjectAdded               = "ProjectAdded"
	EventProjectChanged             = "ProjectChanged"
	EventProjectRemoved             = "ProjectRemoved"
	EventMsBuildProjectDiagnostics  = "MsBuildProjectDiagnostics"
	EventBackgroundDiagnosticStatus = "BackgroundDiagnosticStatus"
	EventPackageRestoreStarted      = "PackageRestoreStarted"
	EventPackageRestoreFinished     = "PackageRestoreFinished"
	EventUnresolvedDependencies     = "UnresolvedDependencies"

	// EventWildcard subscribes a handler to every event
	EventWildcard = "*"
)
