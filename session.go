package langclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PullTrigger identifies the host event behind a pull, for filter
// predicates that distinguish typing from saving.
type PullTrigger int

const (
	PullTriggerOpen PullTrigger = iota + 1
	PullTriggerChange
	PullTriggerSave
	PullTriggerFocus
	PullTriggerTab
)

// DiagnosticPullOptions gate which host events trigger pulls. The Filter
// and Match predicates are opaque admission checks supplied by the host.
type DiagnosticPullOptions struct {
	// OnChange pulls after document content changes.
	OnChange bool
	// OnSave pulls after a document is saved.
	OnSave bool
	// OnFocus pulls when a document gains focus.
	OnFocus bool
	// OnTabs pulls documents that become visible through tab changes.
	OnTabs bool

	// Filter, if set, excludes a document from pulling when it returns
	// true for the given trigger.
	Filter func(doc Document, trigger PullTrigger) bool

	// Match, if set, replaces the default selector match for deciding
	// whether a registration applies to a document.
	Match func(selector DocumentSelector, doc Document) bool

	// TickInterval overrides the background scheduler cadence.
	TickInterval time.Duration
	// WorkspaceInterval overrides the workspace sweep cadence.
	WorkspaceInterval time.Duration
	// MaxWorkspaceFailures overrides the sweep failure limit.
	MaxWorkspaceFailures int
}

// DiagnosticFeature is the dynamic feature for textDocument/diagnostic.
// Every accepted registration runs its own session: a requestor plus a
// background scheduler, wired to tab deltas and host lifecycle events.
type DiagnosticFeature struct {
	*TextDocumentFeature[*diagnosticSession]

	conn   Connection
	docs   DocumentStore
	tabs   *TabsTracker
	sink   DiagnosticsSink
	opts   DiagnosticPullOptions
	logger *slog.Logger
}

// DiagnosticFeatureOption configures the feature.
type DiagnosticFeatureOption func(*DiagnosticFeature)

// WithPullOptions sets the pull admission options.
func WithPullOptions(opts DiagnosticPullOptions) DiagnosticFeatureOption {
	return func(f *DiagnosticFeature) {
		f.opts = opts
	}
}

// WithFeatureLogger sets the structured logger passed to sessions.
func WithFeatureLogger(logger *slog.Logger) DiagnosticFeatureOption {
	return func(f *DiagnosticFeature) {
		f.logger = logger
	}
}

// NewDiagnosticFeature creates the diagnostic pull feature.
func NewDiagnosticFeature(conn Connection, docs DocumentStore, tabs *TabsTracker, sink DiagnosticsSink, opts ...DiagnosticFeatureOption) *DiagnosticFeature {
	f := &DiagnosticFeature{
		conn:   conn,
		docs:   docs,
		tabs:   tabs,
		sink:   sink,
		logger: slog.Default(),
	}
	f.opts = DiagnosticPullOptions{OnChange: true, OnSave: true, OnTabs: true}
	for _, opt := range opts {
		opt(f)
	}
	f.TextDocumentFeature = NewTextDocumentFeature(MethodDocumentDiagnostic, f.newSession)
	return f
}

// Initialize registers statically when the server declared a
// diagnosticProvider in its capabilities. A server-supplied id is reused
// so a later unregister can address it; otherwise one is generated.
func (f *DiagnosticFeature) Initialize(caps ServerCapabilities, defaultSelector DocumentSelector) {
	f.TextDocumentFeature.Initialize(caps, defaultSelector)
	if !caps.Has("diagnosticProvider") {
		return
	}
	id := caps.String("diagnosticProvider.id")
	if id == "" {
		id = uuid.NewString()
	}
	if err := f.Register(Registration{
		ID:              id,
		Method:          MethodDocumentDiagnostic,
		RegisterOptions: caps.Raw("diagnosticProvider"),
	}); err != nil {
		f.logger.Error("static diagnostic registration failed", "error", err)
	}
}

// newSession builds the session backing one registration.
func (f *DiagnosticFeature) newSession(id string, selector DocumentSelector, options json.RawMessage) (*diagnosticSession, func(), error) {
	var regOptions DiagnosticRegistrationOptions
	if len(options) > 0 {
		if err := json.Unmarshal(options, &regOptions); err != nil {
			return nil, nil, err
		}
	}

	requestorOpts := []RequestorOption{WithLogger(f.logger)}
	if f.opts.WorkspaceInterval > 0 {
		requestorOpts = append(requestorOpts, WithWorkspaceInterval(f.opts.WorkspaceInterval))
	}
	if f.opts.MaxWorkspaceFailures > 0 {
		requestorOpts = append(requestorOpts, WithMaxWorkspaceFailures(f.opts.MaxWorkspaceFailures))
	}
	provider := newConnectionProvider(f.conn, regOptions.Identifier)
	requestor := NewDiagnosticRequestor(provider, f.tabs, f.sink, regOptions.DiagnosticOptions, requestorOpts...)

	schedulerOpts := []SchedulerOption{}
	if f.opts.TickInterval > 0 {
		schedulerOpts = append(schedulerOpts, WithTickInterval(f.opts.TickInterval))
	}
	scheduler := NewBackgroundScheduler(requestor, schedulerOpts...)

	session := &diagnosticSession{
		id:        id,
		selector:  selector,
		options:   regOptions.DiagnosticOptions,
		pull:      f.opts,
		docs:      f.docs,
		tabs:      f.tabs,
		requestor: requestor,
		scheduler: scheduler,
	}

	if f.opts.OnTabs && f.tabs != nil {
		session.unsubscribe = append(session.unsubscribe,
			f.tabs.OnOpen(session.tabsOpened),
			f.tabs.OnClose(session.tabsClosed),
		)
	}

	// Pull everything already visible, then start the workspace sweep.
	for _, doc := range f.docs.All() {
		session.DidOpen(doc)
	}
	requestor.PullWorkspace()

	return session, session.dispose, nil
}

// Sessions returns the active sessions in registration order.
func (f *DiagnosticFeature) Sessions() []*diagnosticSession {
	return f.Providers()
}

// Refresh handles workspace/diagnostic/refresh: every visible matching
// document is re-pulled and the workspace sweep restarts.
func (f *DiagnosticFeature) Refresh(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, session := range f.Providers() {
		for _, doc := range f.docs.All() {
			if !session.matches(doc) {
				continue
			}
			if f.tabs != nil && !f.tabs.IsVisible(doc) {
				continue
			}
			session, doc := session, doc
			g.Go(func() error {
				return session.requestor.pullDocument(doc)
			})
		}
	}
	err := g.Wait()
	for _, session := range f.Providers() {
		session.requestor.PullWorkspace()
	}
	return err
}

// diagnosticSession is the per-registration runtime: the requestor, its
// background scheduler, and the host event wiring.
type diagnosticSession struct {
	id          string
	selector    DocumentSelector
	options     DiagnosticOptions
	pull        DiagnosticPullOptions
	docs        DocumentStore
	tabs        *TabsTracker
	requestor   *DiagnosticRequestor
	scheduler   *BackgroundScheduler
	unsubscribe []func()
}

// Requestor exposes the session's requestor.
func (s *diagnosticSession) Requestor() *DiagnosticRequestor { return s.requestor }

// matches reports whether this registration applies to the document.
func (s *diagnosticSession) matches(doc Document) bool {
	if s.pull.Match != nil {
		return s.pull.Match(s.selector, doc)
	}
	return s.selector.Match(doc) > 0
}

// admits applies the selector, the visibility oracle, and the host filter.
func (s *diagnosticSession) admits(doc Document, trigger PullTrigger) bool {
	if !s.matches(doc) {
		return false
	}
	if s.tabs != nil && !s.tabs.IsVisible(doc) {
		return false
	}
	if s.pull.Filter != nil && s.pull.Filter(doc, trigger) {
		return false
	}
	return true
}

// DidOpen pulls a newly opened document if it is visible.
func (s *diagnosticSession) DidOpen(doc Document) {
	if s.admits(doc, PullTriggerOpen) {
		s.requestor.Pull(doc, nil)
	}
}

// DidChange pulls a changed document and, when the server declared
// inter-file dependencies, queues every other matching open document for
// background revalidation.
func (s *diagnosticSession) DidChange(doc Document) {
	if !s.pull.OnChange {
		return
	}
	if s.admits(doc, PullTriggerChange) {
		s.requestor.Pull(doc, nil)
	}
	if !s.options.InterFileDependencies {
		return
	}
	for _, other := range s.docs.All() {
		if other.URI() == doc.URI() || !s.matches(other) {
			continue
		}
		s.scheduler.Add(other)
	}
	s.scheduler.Trigger()
}

// DidSave pulls a saved document.
func (s *diagnosticSession) DidSave(doc Document) {
	if !s.pull.OnSave {
		return
	}
	if s.admits(doc, PullTriggerSave) {
		s.requestor.Pull(doc, nil)
	}
}

// DidClose forgets a closed document and removes it from the background
// queue.
func (s *diagnosticSession) DidClose(doc Document) {
	s.scheduler.Remove(doc)
	if s.matches(doc) {
		s.requestor.Forget(doc)
	}
}

// FocusChanged pulls the newly focused document when focus pulling is on.
func (s *diagnosticSession) FocusChanged(doc Document) {
	if !s.pull.OnFocus {
		return
	}
	if s.tabs != nil && !s.tabs.IsActive(doc) {
		return
	}
	if s.matches(doc) && (s.pull.Filter == nil || !s.pull.Filter(doc, PullTriggerFocus)) {
		s.requestor.Pull(doc, nil)
	}
}

// tabsOpened pulls resources that became visible, when they resolve to
// open documents matching this registration.
func (s *diagnosticSession) tabsOpened(opened []DocumentURI) {
	for _, uri := range opened {
		doc, ok := s.docs.Get(uri)
		if !ok {
			continue
		}
		if s.matches(doc) && (s.pull.Filter == nil || !s.pull.Filter(doc, PullTriggerTab)) {
			s.requestor.Pull(doc, nil)
		}
	}
}

// tabsClosed drops state for resources that left the visible set.
func (s *diagnosticSession) tabsClosed(closed []DocumentURI) {
	for _, uri := range closed {
		doc, ok := s.docs.Get(uri)
		if !ok {
			continue
		}
		s.scheduler.Remove(doc)
		if s.matches(doc) {
			s.requestor.Forget(doc)
		}
	}
}

// dispose tears the session down.
func (s *diagnosticSession) dispose() {
	for _, remove := range s.unsubscribe {
		remove()
	}
	s.unsubscribe = nil
	s.scheduler.Dispose()
	s.requestor.Dispose()
}
