package langclient

import "sync/atomic"

// Document is a live in-memory handle to a text document: a stable URI, a
// language id, and a mutable version counter that advances on every change.
type Document interface {
	URI() DocumentURI
	LanguageID() string
	Version() int
}

// CellDocument is a virtual cell inside a composite (notebook-style)
// document. Its visibility is derived from its container being visible,
// even when the cell is not independently listed in a tab.
type CellDocument interface {
	Document
	Container() DocumentURI
}

// DocumentStore resolves URIs to open documents. It is owned by the host;
// the runtime only reads it.
type DocumentStore interface {
	Get(uri DocumentURI) (Document, bool)
	All() []Document
}

// TextDocument is a minimal Document implementation for hosts that do not
// carry their own handle type.
type TextDocument struct {
	uri        DocumentURI
	languageID string
	version    atomic.Int64
}

// NewTextDocument creates a document handle at version 1.
func NewTextDocument(uri DocumentURI, languageID string) *TextDocument {
	d := &TextDocument{uri: uri, languageID: languageID}
	d.version.Store(1)
	return d
}

// URI returns the document URI.
func (d *TextDocument) URI() DocumentURI { return d.uri }

// LanguageID returns the document language id.
func (d *TextDocument) LanguageID() string { return d.languageID }

// Version returns the current version counter.
func (d *TextDocument) Version() int { return int(d.version.Load()) }

// Bump advances the version counter and returns the new version.
func (d *TextDocument) Bump() int { return int(d.version.Add(1)) }
