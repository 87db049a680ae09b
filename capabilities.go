package langclient

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ServerCapabilities wraps the raw capabilities JSON from the initialize
// result. Features probe it by dotted path instead of decoding the whole
// structure, so unknown or experimental shapes pass through untouched.
type ServerCapabilities struct {
	raw []byte
}

// NewServerCapabilities wraps a raw capabilities object.
func NewServerCapabilities(raw json.RawMessage) ServerCapabilities {
	return ServerCapabilities{raw: raw}
}

// Has reports whether the dotted path exists, e.g.
// "diagnosticProvider.workspaceDiagnostics".
func (c ServerCapabilities) Has(path string) bool {
	return gjson.GetBytes(c.raw, path).Exists()
}

// Bool returns the boolean at the dotted path, false if absent or not a bool.
func (c ServerCapabilities) Bool(path string) bool {
	v := gjson.GetBytes(c.raw, path)
	return v.Type == gjson.True
}

// String returns the string at the dotted path, "" if absent.
func (c ServerCapabilities) String(path string) string {
	v := gjson.GetBytes(c.raw, path)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

// Raw returns the raw JSON at the dotted path, nil if absent.
func (c ServerCapabilities) Raw(path string) json.RawMessage {
	v := gjson.GetBytes(c.raw, path)
	if !v.Exists() {
		return nil
	}
	return json.RawMessage(v.Raw)
}

// ClientCapabilities is the slice of client capabilities this runtime
// contributes to the initialize request.
type ClientCapabilities struct {
	TextDocument struct {
		Diagnostic *DiagnosticClientCapabilities `json:"diagnostic,omitempty"`
	} `json:"textDocument"`
	Workspace struct {
		Diagnostics *DiagnosticWorkspaceClientCapabilities `json:"diagnostics,omitempty"`
	} `json:"workspace"`
}

// PullClientCapabilities returns the capabilities advertising dynamic
// registration and workspace refresh support for diagnostic pulling.
func PullClientCapabilities() ClientCapabilities {
	var caps ClientCapabilities
	caps.TextDocument.Diagnostic = &DiagnosticClientCapabilities{
		DynamicRegistration:    true,
		RelatedDocumentSupport: false,
	}
	caps.Workspace.Diagnostics = &DiagnosticWorkspaceClientCapabilities{
		RefreshSupport: true,
	}
	return caps
}
