package langclient

import "sync"

// PullScope distinguishes the two independent bookkeeping tables per
// document: pulled directly because visible, or pulled as part of a
// workspace sweep.
type PullScope int

const (
	// PullScopeDocument tracks direct per-document pulls.
	PullScopeDocument PullScope = iota + 1
	// PullScopeWorkspace tracks workspace-sweep results.
	PullScopeWorkspace
)

// pullState records the last pulled version and result id for one
// document in one scope.
type pullState struct {
	uri      DocumentURI
	version  int
	resultID string
}

// DocumentPullStateTracker is a small two-table ledger recording, per
// scope, the last version pulled and the last opaque result id received,
// so subsequent pulls can request an incremental result from the server.
type DocumentPullStateTracker struct {
	mu        sync.Mutex
	document  map[DocumentURI]*pullState
	workspace map[DocumentURI]*pullState
}

// NewDocumentPullStateTracker creates an empty tracker.
func NewDocumentPullStateTracker() *DocumentPullStateTracker {
	return &DocumentPullStateTracker{
		document:  make(map[DocumentURI]*pullState),
		workspace: make(map[DocumentURI]*pullState),
	}
}

func (t *DocumentPullStateTracker) table(scope PullScope) map[DocumentURI]*pullState {
	if scope == PullScopeWorkspace {
		return t.workspace
	}
	return t.document
}

// Track gets or creates the entry for the document. An existing entry is
// returned unchanged: re-tracking must not clobber a stored result id.
func (t *DocumentPullStateTracker) Track(scope PullScope, uri DocumentURI, version int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	table := t.table(scope)
	if _, ok := table[uri]; ok {
		return
	}
	table[uri] = &pullState{uri: uri, version: version}
}

// Update upserts the entry, overwriting version and result id.
func (t *DocumentPullStateTracker) Update(scope PullScope, uri DocumentURI, version int, resultID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	table := t.table(scope)
	state, ok := table[uri]
	if !ok {
		state = &pullState{uri: uri}
		table[uri] = state
	}
	state.version = version
	state.resultID = resultID
}

// UnTrack removes the entry for the document in the given scope.
func (t *DocumentPullStateTracker) UnTrack(scope PullScope, uri DocumentURI) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.table(scope), uri)
}

// Tracks reports whether the document has an entry in the given scope.
func (t *DocumentPullStateTracker) Tracks(scope PullScope, uri DocumentURI) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.table(scope)[uri]
	return ok
}

// ResultID returns the stored result id for the document in the given
// scope, "" if none.
func (t *DocumentPullStateTracker) ResultID(scope PullScope, uri DocumentURI) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.table(scope)[uri]; ok {
		return state.resultID
	}
	return ""
}

// Version returns the stored version for the document in the given scope,
// 0 if none.
func (t *DocumentPullStateTracker) Version(scope PullScope, uri DocumentURI) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.table(scope)[uri]; ok {
		return state.version
	}
	return 0
}

// AllResultIDs returns one entry per known document, preferring the
// document-scope entry over the workspace-scope one when both exist:
// document-scope results are fresher because they are pulled more
// eagerly. Used to seed the next workspace sweep.
func (t *DocumentPullStateTracker) AllResultIDs() []PreviousResultID {
	t.mu.Lock()
	defer t.mu.Unlock()
	merged := make(map[DocumentURI]string, len(t.document)+len(t.workspace))
	for uri, state := range t.workspace {
		merged[uri] = state.resultID
	}
	for uri, state := range t.document {
		merged[uri] = state.resultID
	}
	ids := make([]PreviousResultID, 0, len(merged))
	for uri, resultID := range merged {
		if resultID == "" {
			continue
		}
		ids = append(ids, PreviousResultID{URI: uri, Value: resultID})
	}
	return ids
}
