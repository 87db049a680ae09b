package langclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DiagnosticProvider issues the actual diagnostic requests. The runtime
// ships a Connection-backed implementation; tests substitute fakes.
type DiagnosticProvider interface {
	// ProvideDiagnostics pulls diagnostics for one document. A nil report
	// with a nil error is treated as an empty full report.
	ProvideDiagnostics(ctx context.Context, doc Document, previousResultID string) (*DocumentDiagnosticReport, error)

	// ProvideWorkspaceDiagnostics runs a workspace-wide pull. Partial
	// results are streamed through the partial callback; the final result
	// (if any items remain) is delivered through it as well.
	ProvideWorkspaceDiagnostics(ctx context.Context, previous []PreviousResultID, partial func(WorkspaceDiagnosticReport)) error
}

// connectionProvider implements DiagnosticProvider over a Connection.
type connectionProvider struct {
	conn       Connection
	identifier string
}

func newConnectionProvider(conn Connection, identifier string) *connectionProvider {
	return &connectionProvider{conn: conn, identifier: identifier}
}

func (p *connectionProvider) ProvideDiagnostics(ctx context.Context, doc Document, previousResultID string) (*DocumentDiagnosticReport, error) {
	params := DocumentDiagnosticParams{
		TextDocument:     TextDocumentIdentifier{URI: doc.URI()},
		Identifier:       p.identifier,
		PreviousResultID: previousResultID,
	}
	var report DocumentDiagnosticReport
	if err := p.conn.Call(ctx, MethodDocumentDiagnostic, params, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (p *connectionProvider) ProvideWorkspaceDiagnostics(ctx context.Context, previous []PreviousResultID, partial func(WorkspaceDiagnosticReport)) error {
	token := uuid.NewString()
	remove := p.conn.OnProgress(token, func(raw json.RawMessage) {
		var report WorkspaceDiagnosticReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return
		}
		partial(report)
	})
	defer remove()

	params := WorkspaceDiagnosticParams{
		Identifier:         p.identifier,
		PreviousResultIDs:  previous,
		PartialResultToken: token,
	}
	var final WorkspaceDiagnosticReport
	if err := p.conn.Call(ctx, MethodWorkspaceDiagnostic, params, &final); err != nil {
		return err
	}
	if len(final.Items) > 0 {
		partial(final)
	}
	return nil
}

// requestStateKind discriminates the per-document request state union.
type requestStateKind int

const (
	// stateActive marks the single permitted in-flight request.
	stateActive requestStateKind = iota + 1
	// stateReschedule marks that a newer pull arrived while one was in
	// flight and must be retried once it settles.
	stateReschedule
	// stateOutdated marks that the in-flight result must be discarded
	// once it settles.
	stateOutdated
)

// requestState is one member of the tagged union. cancel and version are
// meaningful only for stateActive.
type requestState struct {
	kind     requestStateKind
	document Document
	version  int
	cancel   context.CancelFunc
}

const (
	defaultWorkspaceInterval    = 2000 * time.Millisecond
	defaultMaxWorkspaceFailures = 5
)

// DiagnosticRequestor owns the one-outstanding-request-per-document
// invariant, converts visibility and lifecycle signals into protocol
// pulls, and runs the workspace-wide sweep with failure backoff. The
// diagnostics sink, the pull-state ledger, and the open-request map are
// owned exclusively by this instance.
type DiagnosticRequestor struct {
	mu       sync.Mutex
	provider DiagnosticProvider
	tabs     *TabsTracker
	sink     DiagnosticsSink
	states   *DocumentPullStateTracker
	options  DiagnosticOptions
	logger   *slog.Logger

	open     map[string]*requestState
	disposed bool

	workspaceCancel      context.CancelFunc
	workspaceTimer       *time.Timer
	workspaceErrs        int
	workspaceInterval    time.Duration
	maxWorkspaceFailures int
}

// RequestorOption configures the requestor.
type RequestorOption func(*DiagnosticRequestor)

// WithLogger sets the structured logger for fire-and-forget failures.
func WithLogger(logger *slog.Logger) RequestorOption {
	return func(r *DiagnosticRequestor) {
		r.logger = logger
	}
}

// WithWorkspaceInterval sets the delay between workspace sweeps.
func WithWorkspaceInterval(d time.Duration) RequestorOption {
	return func(r *DiagnosticRequestor) {
		r.workspaceInterval = d
	}
}

// WithMaxWorkspaceFailures sets the consecutive-failure count after which
// the sweep stops re-arming itself.
func WithMaxWorkspaceFailures(n int) RequestorOption {
	return func(r *DiagnosticRequestor) {
		r.maxWorkspaceFailures = n
	}
}

// NewDiagnosticRequestor creates a requestor. tabs may be nil when no
// visibility admission is wanted (every document counts as visible).
func NewDiagnosticRequestor(provider DiagnosticProvider, tabs *TabsTracker, sink DiagnosticsSink, options DiagnosticOptions, opts ...RequestorOption) *DiagnosticRequestor {
	r := &DiagnosticRequestor{
		provider:             provider,
		tabs:                 tabs,
		sink:                 sink,
		states:               NewDocumentPullStateTracker(),
		options:              options,
		logger:               slog.Default(),
		open:                 make(map[string]*requestState),
		workspaceInterval:    defaultWorkspaceInterval,
		maxWorkspaceFailures: defaultMaxWorkspaceFailures,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// States exposes the pull-state ledger (read-mostly; used by sessions and
// tests).
func (r *DiagnosticRequestor) States() *DocumentPullStateTracker {
	return r.states
}

// Pull requests diagnostics for a document. The pull runs asynchronously;
// hard failures are logged, not returned. done, if non-nil, is invoked
// after the pull settles.
func (r *DiagnosticRequestor) Pull(doc Document, done func()) {
	go func() {
		if err := r.pullDocument(doc); err != nil {
			r.logger.Error("diagnostic pull failed",
				"uri", string(doc.URI()), "error", err)
		}
		if done != nil {
			done()
		}
	}()
}

// pullDocument runs one pull for a document, enforcing the at-most-one-
// in-flight invariant. A pull requested while another is in flight
// collapses into a single retry after the in-flight one settles.
func (r *DiagnosticRequestor) pullDocument(doc Document) error {
	key := string(doc.URI())

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	if current, ok := r.open[key]; ok {
		switch current.kind {
		case stateActive:
			// Collapse: cancel the in-flight request and retry once it
			// settles.
			current.cancel()
			r.open[key] = &requestState{kind: stateReschedule, document: doc}
		case stateOutdated:
			// A late second pull revives interest.
			r.open[key] = &requestState{kind: stateReschedule, document: doc}
		case stateReschedule:
			// A retry is already pending.
		}
		r.mu.Unlock()
		metricPullsCoalesced.Inc()
		return nil
	}

	version := doc.Version()
	ctx, cancel := context.WithCancel(context.Background())
	r.open[key] = &requestState{kind: stateActive, document: doc, version: version, cancel: cancel}
	r.states.Track(PullScopeDocument, doc.URI(), version)
	previousResultID := r.states.ResultID(PullScopeDocument, doc.URI())
	r.mu.Unlock()
	defer cancel()

	report, err := r.provider.ProvideDiagnostics(ctx, doc, previousResultID)

	var errState *requestState
	if err != nil {
		if !IsCancellation(err) {
			// Hard failure: the request has settled, so the open entry is
			// removed, but the error propagates and is not retried here.
			r.mu.Lock()
			delete(r.open, key)
			r.mu.Unlock()
			metricPulls.WithLabelValues(outcomeFailed).Inc()
			return err
		}
		if RetriggerAllowed(err) {
			errState = &requestState{kind: stateReschedule, document: doc}
		} else {
			errState = &requestState{kind: stateOutdated, document: doc}
		}
		report = nil
	} else if report == nil {
		report = &DocumentDiagnosticReport{Kind: DiagnosticReportFull}
	}

	r.mu.Lock()
	current, hadState := r.open[key]
	delete(r.open, key)

	// Reconcile the settle state: an outdated mark set during the
	// in-flight window (dispose, visibility loss) always wins; otherwise
	// a cancellation-derived state takes precedence over the map entry.
	var after *requestState
	switch {
	case hadState && current.kind == stateOutdated:
		after = current
	case errState != nil:
		after = errState
	case hadState:
		after = current
	}

	if after == nil {
		// Lost state: an unrecoverable local inconsistency. Clear the
		// document's diagnostics defensively rather than publish against
		// unknown bookkeeping.
		r.mu.Unlock()
		r.sink.Delete(doc.URI())
		r.logger.Error("diagnostic pull settled without request state",
			"uri", string(doc.URI()))
		metricPulls.WithLabelValues(outcomeDropped).Inc()
		return nil
	}

	if r.tabs != nil && !r.tabs.IsVisible(doc) {
		// The user switched away mid-request: drop the tracked state and
		// do not resurrect diagnostics for an invisible document.
		r.states.UnTrack(PullScopeDocument, doc.URI())
		r.mu.Unlock()
		metricPulls.WithLabelValues(outcomeDropped).Inc()
		return nil
	}

	if after.kind == stateOutdated {
		r.mu.Unlock()
		metricPulls.WithLabelValues(outcomeDropped).Inc()
		return nil
	}

	var publish []Diagnostic
	var publishFull bool
	if report != nil {
		if report.Kind == DiagnosticReportFull {
			publishFull = true
			publish = report.Items
		}
		// Unchanged reports still update bookkeeping so the next pull
		// sends the now-current result id.
		r.states.Update(PullScopeDocument, doc.URI(), version, report.ResultID)
	}
	reschedule := after.kind == stateReschedule
	r.mu.Unlock()

	if publishFull {
		r.sink.Set(doc.URI(), publish)
		metricPulls.WithLabelValues(outcomeFull).Inc()
	} else if report != nil {
		metricPulls.WithLabelValues(outcomeUnchanged).Inc()
	}

	if reschedule {
		r.Pull(doc, nil)
	}
	return nil
}

// Forget drops all bookkeeping for a document (closed or no longer
// visible). An active request is marked outdated so its eventual result
// is discarded; published diagnostics are removed.
func (r *DiagnosticRequestor) Forget(doc Document) {
	key := string(doc.URI())

	r.mu.Lock()
	r.states.UnTrack(PullScopeDocument, doc.URI())
	r.states.UnTrack(PullScopeWorkspace, doc.URI())
	if current, ok := r.open[key]; ok && current.kind == stateActive {
		current.cancel()
		r.open[key] = &requestState{kind: stateOutdated, document: current.document}
	}
	r.mu.Unlock()

	r.sink.Delete(doc.URI())
}

// KnowsDocument reports whether the document has document-scope pull state.
func (r *DiagnosticRequestor) KnowsDocument(doc Document) bool {
	return r.states.Tracks(PullScopeDocument, doc.URI())
}

// PullWorkspace starts (or restarts) the workspace sweep loop. It is a
// no-op when the server did not advertise workspace diagnostics.
func (r *DiagnosticRequestor) PullWorkspace() {
	if !r.options.WorkspaceDiagnostics {
		return
	}
	go r.runWorkspacePull()
}

// runWorkspacePull performs one sweep and re-arms the next one. The sweep
// keeps rescheduling through failures until the consecutive-failure count
// exceeds the limit: with the default limit of 5, a sixth consecutive
// failure is the first that stops the loop.
func (r *DiagnosticRequestor) runWorkspacePull() {
	err := r.pullWorkspaceOnce()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	if err == nil {
		metricWorkspaceSweeps.WithLabelValues(outcomeFull).Inc()
		r.workspaceErrs = 0
		r.armWorkspaceLocked()
		return
	}
	if !IsCancellation(err) {
		r.logger.Error("workspace diagnostic pull failed", "error", err)
		metricWorkspaceSweeps.WithLabelValues(outcomeFailed).Inc()
		r.workspaceErrs++
	}
	if r.workspaceErrs <= r.maxWorkspaceFailures {
		r.armWorkspaceLocked()
	}
}

func (r *DiagnosticRequestor) armWorkspaceLocked() {
	if r.workspaceTimer != nil {
		r.workspaceTimer.Stop()
	}
	r.workspaceTimer = time.AfterFunc(r.workspaceInterval, r.runWorkspacePull)
}

// pullWorkspaceOnce runs a single workspace sweep. Sweeps are
// single-flight: any prior in-flight sweep is cancelled first.
func (r *DiagnosticRequestor) pullWorkspaceOnce() error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return nil
	}
	if r.workspaceCancel != nil {
		r.workspaceCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.workspaceCancel = cancel
	r.mu.Unlock()

	previous := r.states.AllResultIDs()
	return r.provider.ProvideWorkspaceDiagnostics(ctx, previous, r.applyWorkspaceReport)
}

// applyWorkspaceReport applies one (possibly partial) workspace result
// batch. Full reports overwrite a document's diagnostics unless that
// document has an active document-scope tracked result: document-scope
// pulls always win over workspace-scope for freshness. The workspace
// ledger is updated for every item, full or unchanged.
func (r *DiagnosticRequestor) applyWorkspaceReport(report WorkspaceDiagnosticReport) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	for _, item := range report.Items {
		if item.Kind == DiagnosticReportFull && !r.states.Tracks(PullScopeDocument, item.URI) {
			r.sink.Set(item.URI, item.Items)
		}
		version := 0
		if item.Version != nil {
			version = *item.Version
		}
		r.states.Update(PullScopeWorkspace, item.URI, version, item.ResultID)
	}
}

// Dispose tears the requestor down: the workspace sweep is cancelled and
// disarmed, every active per-document request is marked outdated so its
// eventual result is silently dropped, and the diagnostics collection is
// cleared.
func (r *DiagnosticRequestor) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	if r.workspaceCancel != nil {
		r.workspaceCancel()
		r.workspaceCancel = nil
	}
	if r.workspaceTimer != nil {
		r.workspaceTimer.Stop()
		r.workspaceTimer = nil
	}
	for key, current := range r.open {
		if current.kind == stateActive {
			current.cancel()
		}
		if current.kind != stateOutdated {
			r.open[key] = &requestState{kind: stateOutdated, document: current.document}
		}
	}
	r.mu.Unlock()

	r.sink.Clear()
}
