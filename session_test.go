package langclient

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// fakeConn answers diagnostic calls with a canned full report and records
// which documents were pulled.
type fakeConn struct {
	mu    sync.Mutex
	pulls []DocumentURI
}

func (c *fakeConn) Call(_ context.Context, method string, params, result any) error {
	switch method {
	case MethodDocumentDiagnostic:
		p := params.(DocumentDiagnosticParams)
		c.mu.Lock()
		c.pulls = append(c.pulls, p.TextDocument.URI)
		c.mu.Unlock()
		*result.(*DocumentDiagnosticReport) = DocumentDiagnosticReport{
			Kind:     DiagnosticReportFull,
			ResultID: "r1",
			Items:    []Diagnostic{{Message: "unused variable"}},
		}
	case MethodWorkspaceDiagnostic:
		*result.(*WorkspaceDiagnosticReport) = WorkspaceDiagnosticReport{}
	}
	return nil
}

func (c *fakeConn) Notify(context.Context, string, any) error { return nil }

func (c *fakeConn) OnProgress(string, func(json.RawMessage)) func() { return func() {} }

func (c *fakeConn) pullsFor(uri DocumentURI) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, pulled := range c.pulls {
		if pulled == uri {
			n++
		}
	}
	return n
}

// stubDocStore is a fixed DocumentStore.
type stubDocStore struct {
	docs []Document
}

func (s stubDocStore) Get(uri DocumentURI) (Document, bool) {
	for _, doc := range s.docs {
		if doc.URI() == uri {
			return doc, true
		}
	}
	return nil, false
}

func (s stubDocStore) All() []Document {
	return append([]Document(nil), s.docs...)
}

func newSessionFixture(docs ...Document) (*fakeConn, *DiagnosticFeature, *DiagnosticStore) {
	conn := &fakeConn{}
	visible := make([]DocumentURI, 0, len(docs))
	for _, doc := range docs {
		visible = append(visible, doc.URI())
	}
	tabs := NewTabsTracker(&stubTabProvider{visible: visible})
	sink := NewDiagnosticStore()
	feature := NewDiagnosticFeature(conn, stubDocStore{docs: docs}, tabs, sink,
		WithPullOptions(DiagnosticPullOptions{
			OnChange:     true,
			OnSave:       true,
			OnTabs:       true,
			TickInterval: 5 * time.Millisecond,
		}))
	return conn, feature, sink
}

func TestDiagnosticFeatureStaticRegistration(t *testing.T) {
	doc := NewTextDocument("file:///main.go", "go")
	conn, feature, sink := newSessionFixture(doc)
	defer feature.Dispose()

	caps := NewServerCapabilities(json.RawMessage(`{
		"diagnosticProvider": {"interFileDependencies": false, "workspaceDiagnostics": false}
	}`))
	feature.Initialize(caps, DocumentSelector{{Language: "go"}})

	if got := len(feature.Sessions()); got != 1 {
		t.Fatalf("Sessions = %d, want 1 static registration", got)
	}

	// Registration pulls every open visible document.
	waitFor(t, func() bool {
		_, ok := sink.Get(doc.URI())
		return ok
	}, "initial pull to publish")
	if got := conn.pullsFor(doc.URI()); got < 1 {
		t.Errorf("pulls = %d, want at least 1", got)
	}
}

func TestDiagnosticFeatureNoProviderNoRegistration(t *testing.T) {
	_, feature, _ := newSessionFixture()
	defer feature.Dispose()

	feature.Initialize(NewServerCapabilities(json.RawMessage(`{}`)), nil)
	if got := len(feature.Sessions()); got != 0 {
		t.Errorf("Sessions = %d, want 0 without a diagnosticProvider", got)
	}
}

func TestSessionInterFileFanOut(t *testing.T) {
	a := NewTextDocument("file:///a.go", "go")
	b := NewTextDocument("file:///b.go", "go")
	conn, feature, _ := newSessionFixture(a, b)
	defer feature.Dispose()

	err := feature.Register(Registration{
		ID:     "reg-1",
		Method: MethodDocumentDiagnostic,
		RegisterOptions: json.RawMessage(`{
			"documentSelector": [{"language": "go"}],
			"interFileDependencies": true,
			"workspaceDiagnostics": false
		}`),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Let the registration-time pulls settle before counting.
	waitFor(t, func() bool {
		return conn.pullsFor(a.URI()) >= 1 && conn.pullsFor(b.URI()) >= 1
	}, "registration pulls")
	before := conn.pullsFor(b.URI())

	session := feature.Sessions()[0]
	a.Bump()
	session.DidChange(a)

	// b is revalidated through the background queue even though it did not
	// change itself.
	waitFor(t, func() bool { return conn.pullsFor(b.URI()) > before }, "background revalidation of b")
}

func TestSessionCloseForgetsDocument(t *testing.T) {
	doc := NewTextDocument("file:///main.go", "go")
	_, feature, sink := newSessionFixture(doc)
	defer feature.Dispose()

	err := feature.Register(Registration{
		ID:     "reg-1",
		Method: MethodDocumentDiagnostic,
		RegisterOptions: json.RawMessage(`{
			"documentSelector": [{"language": "go"}],
			"interFileDependencies": false,
			"workspaceDiagnostics": false
		}`),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, func() bool {
		_, ok := sink.Get(doc.URI())
		return ok
	}, "initial pull")

	session := feature.Sessions()[0]
	session.DidClose(doc)
	if _, ok := sink.Get(doc.URI()); ok {
		t.Error("diagnostics survived DidClose")
	}
	if session.Requestor().KnowsDocument(doc) {
		t.Error("pull state survived DidClose")
	}
}

func TestFeatureRefreshRepullsVisibleDocuments(t *testing.T) {
	doc := NewTextDocument("file:///main.go", "go")
	conn, feature, sink := newSessionFixture(doc)
	defer feature.Dispose()

	err := feature.Register(Registration{
		ID:     "reg-1",
		Method: MethodDocumentDiagnostic,
		RegisterOptions: json.RawMessage(`{
			"documentSelector": [{"language": "go"}],
			"interFileDependencies": false,
			"workspaceDiagnostics": false
		}`),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, func() bool {
		_, ok := sink.Get(doc.URI())
		return ok
	}, "initial pull")
	before := conn.pullsFor(doc.URI())

	if err := feature.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := conn.pullsFor(doc.URI()); got <= before {
		t.Errorf("pulls after Refresh = %d, want more than %d", got, before)
	}
}

func TestFeatureUnregisterClearsDiagnostics(t *testing.T) {
	doc := NewTextDocument("file:///main.go", "go")
	_, feature, sink := newSessionFixture(doc)
	defer feature.Dispose()

	err := feature.Register(Registration{
		ID:     "reg-1",
		Method: MethodDocumentDiagnostic,
		RegisterOptions: json.RawMessage(`{
			"documentSelector": [{"language": "go"}],
			"interFileDependencies": false,
			"workspaceDiagnostics": false
		}`),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitFor(t, func() bool {
		_, ok := sink.Get(doc.URI())
		return ok
	}, "initial pull")

	feature.Unregister("reg-1")
	if uris := sink.URIs(); len(uris) != 0 {
		t.Errorf("sink after unregister = %v, want empty", uris)
	}
}
