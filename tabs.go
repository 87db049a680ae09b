package langclient

import "sync"

// TabsTracker observes which resources are currently visible in the host
// UI and emits open/close deltas when the visible set changes. It is a
// pure admission-control oracle: pulling diagnostics for a document the
// user cannot see wastes the server's time and can starve visible ones.
type TabsTracker struct {
	mu       sync.Mutex
	provider TabProvider
	open     map[DocumentURI]struct{}
	onOpen   map[int]func(opened []DocumentURI)
	onClose  map[int]func(closed []DocumentURI)
	nextSub  int
}

// NewTabsTracker creates a tracker seeded with the provider's current
// visible set.
func NewTabsTracker(provider TabProvider) *TabsTracker {
	t := &TabsTracker{
		provider: provider,
		open:     make(map[DocumentURI]struct{}),
		onOpen:   make(map[int]func([]DocumentURI)),
		onClose:  make(map[int]func([]DocumentURI)),
	}
	for _, uri := range provider.VisibleURIs() {
		t.open[uri] = struct{}{}
	}
	return t
}

// HandleTabChange recomputes the visible set from the provider, diffs it
// against the previous set, and fires open/close callbacks for the
// symmetric difference. Resources visible before and after are not
// re-fired; duplicate tabs onto one resource are de-duplicated.
func (t *TabsTracker) HandleTabChange() {
	next := make(map[DocumentURI]struct{})
	for _, uri := range t.provider.VisibleURIs() {
		next[uri] = struct{}{}
	}

	t.mu.Lock()
	var opened, closed []DocumentURI
	for uri := range next {
		if _, ok := t.open[uri]; !ok {
			opened = append(opened, uri)
		}
	}
	for uri := range t.open {
		if _, ok := next[uri]; !ok {
			closed = append(closed, uri)
		}
	}
	t.open = next

	openFns := make([]func([]DocumentURI), 0, len(t.onOpen))
	for _, fn := range t.onOpen {
		openFns = append(openFns, fn)
	}
	closeFns := make([]func([]DocumentURI), 0, len(t.onClose))
	for _, fn := range t.onClose {
		closeFns = append(closeFns, fn)
	}
	t.mu.Unlock()

	if len(opened) > 0 {
		for _, fn := range openFns {
			fn(opened)
		}
	}
	if len(closed) > 0 {
		for _, fn := range closeFns {
			fn(closed)
		}
	}
}

// IsVisible reports whether the document is shown in any tab. A cell
// document is visible when its container is tracked, even if the cell is
// not independently listed.
func (t *TabsTracker) IsVisible(doc Document) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.open[doc.URI()]; ok {
		return true
	}
	if cell, ok := doc.(CellDocument); ok {
		_, ok := t.open[cell.Container()]
		return ok
	}
	return false
}

// IsVisibleURI reports whether the resource itself is tracked.
func (t *TabsTracker) IsVisibleURI(uri DocumentURI) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.open[uri]
	return ok
}

// IsActive reports whether the document is the host's focused document.
func (t *TabsTracker) IsActive(doc Document) bool {
	return t.provider.ActiveURI() == doc.URI()
}

// OnOpen subscribes to newly visible resources. The returned function
// removes the subscription.
func (t *TabsTracker) OnOpen(fn func(opened []DocumentURI)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.onOpen[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.onOpen, id)
	}
}

// OnClose subscribes to resources leaving the visible set. The returned
// function removes the subscription.
func (t *TabsTracker) OnClose(fn func(closed []DocumentURI)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.onClose[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.onClose, id)
	}
}
