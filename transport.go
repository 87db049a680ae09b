package langclient

import (
	"context"
	"encoding/json"
)

// Connection is the request/notification transport this runtime talks
// through. Implementations are expected to reject in-flight calls with a
// cancellation-flavored error when ctx fires, carrying any server-supplied
// retry-hint data on the RPCError.
type Connection interface {
	// Call sends a request and decodes the response into result.
	Call(ctx context.Context, method string, params, result any) error

	// Notify sends a notification (no response expected).
	Notify(ctx context.Context, method string, params any) error

	// OnProgress registers a handler for $/progress notifications carrying
	// the given token. The returned function removes the handler.
	OnProgress(token string, handler func(json.RawMessage)) func()
}

// TabProvider exposes the host's visible-tab state. VisibleURIs may list
// the same resource more than once when several tabs show it.
type TabProvider interface {
	// VisibleURIs returns the resources currently shown in any tab,
	// including composite (notebook-style) container documents.
	VisibleURIs() []DocumentURI

	// ActiveURI returns the resource of the focused editor, or "" if none.
	ActiveURI() DocumentURI
}

// DiagnosticsSink is the host-owned diagnostics collection. Full reports
// replace a document's diagnostics; unchanged reports never touch the sink.
type DiagnosticsSink interface {
	Set(uri DocumentURI, diagnostics []Diagnostic)
	Delete(uri DocumentURI)
	Clear()
}
