// Package langclient implements the client-side runtime for dynamic feature
// registration and document-diagnostic pulling against an out-of-process
// language server.
//
// The package negotiates server capabilities, tracks per-document and
// per-feature registration state that can change at runtime, and schedules
// client-initiated diagnostic pulls so that visible documents stay fresh
// without flooding the server.
//
// # Architecture
//
// The package is organized around these core components:
//
//   - Registrar / DynamicFeature: dispatches client/registerCapability and
//     client/unregisterCapability to capability-scoped features
//   - TextDocumentFeature: generic per-registration provider registry keyed
//     by document selector
//   - DiagnosticRequestor: the per-document pull state machine and the
//     workspace-wide sweep with failure backoff
//   - BackgroundScheduler: round-robin revalidation of documents with
//     inter-file dependencies
//   - TabsTracker: visibility admission control driven by host tab changes
//   - DocumentPullStateTracker: result-id bookkeeping for incremental pulls
//
// # Quick Start
//
// Wire the diagnostic feature against a connection and a host tab model:
//
//	tabs := langclient.NewTabsTracker(host)
//	sink := langclient.NewDiagnosticStore()
//	feature := langclient.NewDiagnosticFeature(conn, docs, tabs, sink)
//
//	registrar := langclient.NewRegistrar()
//	registrar.Add(feature)
//	registrar.InitializeAll(caps, defaultSelector)
//
// Host lifecycle events are then forwarded to the feature's sessions
// (DidOpen, DidChange, DidSave, DidClose, FocusChanged) which decide
// whether and when to pull.
//
// # Concurrency
//
// At most one diagnostic pull is in flight per document at any instant;
// bursts of pull requests for the same document coalesce into a single
// retry after the in-flight request settles. Workspace sweeps are
// single-flight and re-arm themselves on a fixed cadence until too many
// consecutive failures accumulate.
//
// # Scope
//
// Wire-level JSON-RPC framing, process management, and the host UI are
// external collaborators reached through the Connection, TabProvider,
// DocumentStore, and DiagnosticsSink interfaces.
package langclient
