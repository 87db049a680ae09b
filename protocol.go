package langclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DocumentURI represents a URI as used in LSP.
// It is typically a file:// URI.
type DocumentURI string

// Scheme returns the URI scheme, or "" if the URI has none.
func (u DocumentURI) Scheme() string {
	if i := strings.Index(string(u), ":"); i > 0 {
		return string(u)[:i]
	}
	return ""
}

// Path returns the path portion of the URI, with the scheme and
// authority stripped. A URI without a scheme is returned unchanged.
func (u DocumentURI) Path() string {
	s := string(u)
	i := strings.Index(s, "://")
	if i < 0 {
		return s
	}
	rest := s[i+3:]
	if j := strings.Index(rest, "/"); j >= 0 {
		return rest[j:]
	}
	return "/"
}

// Position in a text document expressed as zero-based line and character offset.
// Character offset is measured in UTF-16 code units per the LSP specification.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document expressed as start and end positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a location inside a resource.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// --- Diagnostics ---

// Diagnostic represents a diagnostic (error, warning, info, hint).
type Diagnostic struct {
	Range              Range                          `json:"range"`
	Severity           DiagnosticSeverity             `json:"severity,omitempty"`
	Code               any                            `json:"code,omitempty"` // string or number
	CodeDescription    *CodeDescription               `json:"codeDescription,omitempty"`
	Source             string                         `json:"source,omitempty"`
	Message            string                         `json:"message"`
	Tags               []DiagnosticTag                `json:"tags,omitempty"`
	RelatedInformation []DiagnosticRelatedInformation `json:"relatedInformation,omitempty"`
	Data               any                            `json:"data,omitempty"`
}

// DiagnosticSeverity represents the severity of a diagnostic.
type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// DiagnosticTag represents additional metadata about a diagnostic.
type DiagnosticTag int

const (
	DiagnosticTagUnnecessary DiagnosticTag = 1
	DiagnosticTagDeprecated  DiagnosticTag = 2
)

// CodeDescription describes a code.
type CodeDescription struct {
	Href string `json:"href"`
}

// DiagnosticRelatedInformation represents related diagnostic information.
type DiagnosticRelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// --- Document selectors ---

// DocumentFilter denotes a document through properties like language,
// scheme, or a glob pattern on its path.
type DocumentFilter struct {
	Language string `json:"language,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// DocumentSelector is the combination of one or more document filters.
type DocumentSelector []DocumentFilter

// --- Dynamic registration ---

// Registration is a general parameter to register a capability.
type Registration struct {
	ID              string          `json:"id"`
	Method          string          `json:"method"`
	RegisterOptions json.RawMessage `json:"registerOptions,omitempty"`
}

// RegistrationParams are the parameters of a client/registerCapability request.
type RegistrationParams struct {
	Registrations []Registration `json:"registrations"`
}

// Unregistration is a general parameter to unregister a capability.
type Unregistration struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

// UnregistrationParams are the parameters of a client/unregisterCapability
// request. The field name keeps the misspelling mandated by the protocol.
type UnregistrationParams struct {
	Unregisterations []Unregistration `json:"unregisterations"`
}

// --- Diagnostic pulling ---

// DiagnosticOptions are the server-declared options for diagnostic pulling.
type DiagnosticOptions struct {
	Identifier            string `json:"identifier,omitempty"`
	InterFileDependencies bool   `json:"interFileDependencies"`
	WorkspaceDiagnostics  bool   `json:"workspaceDiagnostics"`
}

// DiagnosticRegistrationOptions scope DiagnosticOptions to a document selector.
type DiagnosticRegistrationOptions struct {
	DocumentSelector *DocumentSelector `json:"documentSelector"`
	ID               string            `json:"id,omitempty"`
	DiagnosticOptions
}

// DocumentDiagnosticParams are parameters for textDocument/diagnostic.
type DocumentDiagnosticParams struct {
	TextDocument       TextDocumentIdentifier `json:"textDocument"`
	Identifier         string                 `json:"identifier,omitempty"`
	PreviousResultID   string                 `json:"previousResultId,omitempty"`
	PartialResultToken string                 `json:"partialResultToken,omitempty"`
}

// DocumentDiagnosticReportKind discriminates full and unchanged reports.
type DocumentDiagnosticReportKind string

const (
	// DiagnosticReportFull carries a complete diagnostic list.
	DiagnosticReportFull DocumentDiagnosticReportKind = "full"
	// DiagnosticReportUnchanged carries only a result id, meaning the
	// previously delivered list is still valid.
	DiagnosticReportUnchanged DocumentDiagnosticReportKind = "unchanged"
)

// DocumentDiagnosticReport is the result of a document diagnostic pull.
// Kind discriminates the union: a full report carries Items, an unchanged
// report carries only ResultID.
type DocumentDiagnosticReport struct {
	Kind     DocumentDiagnosticReportKind `json:"kind"`
	ResultID string                       `json:"resultId,omitempty"`
	Items    []Diagnostic                 `json:"items,omitempty"`
}

// UnmarshalJSON validates the report kind so a malformed union member is
// rejected at the wire boundary instead of silently treated as full.
func (r *DocumentDiagnosticReport) UnmarshalJSON(data []byte) error {
	type alias DocumentDiagnosticReport
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Kind {
	case DiagnosticReportFull, DiagnosticReportUnchanged:
	case "":
		a.Kind = DiagnosticReportFull
	default:
		return fmt.Errorf("unknown diagnostic report kind %q", a.Kind)
	}
	if a.Kind == DiagnosticReportUnchanged && a.Items != nil {
		return fmt.Errorf("unchanged diagnostic report must not carry items")
	}
	*r = DocumentDiagnosticReport(a)
	return nil
}

// PreviousResultID associates a result id with the document it was
// reported for, used to seed workspace pulls.
type PreviousResultID struct {
	URI   DocumentURI `json:"uri"`
	Value string      `json:"value"`
}

// WorkspaceDiagnosticParams are parameters for workspace/diagnostic.
type WorkspaceDiagnosticParams struct {
	Identifier         string             `json:"identifier,omitempty"`
	PreviousResultIDs  []PreviousResultID `json:"previousResultIds"`
	PartialResultToken string             `json:"partialResultToken,omitempty"`
}

// WorkspaceDocumentDiagnosticReport is one document's report inside a
// workspace diagnostic result. Version is nil for documents the server
// knows only by URI.
type WorkspaceDocumentDiagnosticReport struct {
	URI      DocumentURI                  `json:"uri"`
	Version  *int                         `json:"version"`
	Kind     DocumentDiagnosticReportKind `json:"kind"`
	ResultID string                       `json:"resultId,omitempty"`
	Items    []Diagnostic                 `json:"items,omitempty"`
}

// WorkspaceDiagnosticReport is a (possibly partial) workspace diagnostic result.
type WorkspaceDiagnosticReport struct {
	Items []WorkspaceDocumentDiagnosticReport `json:"items"`
}

// DiagnosticServerCancellationData is attached by the server to a
// cancellation error to control whether the client should retrigger.
type DiagnosticServerCancellationData struct {
	RetriggerRequest bool `json:"retriggerRequest"`
}

// --- Client capabilities (pull subsystem slice) ---

// DiagnosticClientCapabilities advertise pull-diagnostic support.
type DiagnosticClientCapabilities struct {
	DynamicRegistration    bool `json:"dynamicRegistration,omitempty"`
	RelatedDocumentSupport bool `json:"relatedDocumentSupport,omitempty"`
}

// DiagnosticWorkspaceClientCapabilities advertise workspace-level
// diagnostic support.
type DiagnosticWorkspaceClientCapabilities struct {
	RefreshSupport bool `json:"refreshSupport,omitempty"`
}

// --- Methods ---

// LSP method names used by this package.
const (
	MethodDocumentDiagnostic    = "textDocument/diagnostic"
	MethodWorkspaceDiagnostic   = "workspace/diagnostic"
	MethodDiagnosticRefresh     = "workspace/diagnostic/refresh"
	MethodRegisterCapability    = "client/registerCapability"
	MethodUnregisterCapability  = "client/unregisterCapability"
	MethodProgress              = "$/progress"
	MethodPublishDiagnostics    = "textDocument/publishDiagnostics"
	MethodDidOpenTextDocument   = "textDocument/didOpen"
	MethodDidChangeTextDocument = "textDocument/didChange"
	MethodDidSaveTextDocument   = "textDocument/didSave"
	MethodDidCloseTextDocument  = "textDocument/didClose"
)
