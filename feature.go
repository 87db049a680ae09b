package langclient

import (
	"encoding/json"
	"sync"
)

// DynamicFeature is implemented by every capability that supports dynamic
// registration. The Registrar routes client/registerCapability and
// client/unregisterCapability requests to the feature owning the method.
type DynamicFeature interface {
	// Methods returns the LSP methods this feature registers for.
	Methods() []string

	// Initialize lets the feature derive static registrations from the
	// server capabilities. defaultSelector is the client's default
	// document selector, inherited by registrations that omit their own.
	Initialize(caps ServerCapabilities, defaultSelector DocumentSelector)

	// Register activates a server-requested registration. Malformed
	// registration options are dropped, not errored; the protocol allows
	// a server to degrade gracefully.
	Register(reg Registration) error

	// Unregister deactivates a registration by id. Unknown ids are a no-op.
	Unregister(id string)

	// Suspend unregisters everything but keeps the feature usable for
	// re-registration after a server restart.
	Suspend()

	// Dispose unregisters everything and makes the feature final.
	Dispose()
}

// registrationRecord is one active registration inside a feature.
type registrationRecord[P any] struct {
	id       string
	selector DocumentSelector
	// inherited marks registrations that omitted their own selector and
	// fell back to the client default; these do not publish a selector.
	inherited bool
	provider  P
	dispose   func()
}

// RegisterFunc builds the provider for one registration. It returns the
// provider instance and a dispose handle releasing host-level resources.
type RegisterFunc[P any] func(id string, selector DocumentSelector, options json.RawMessage) (P, func(), error)

// TextDocumentFeature is the generic registry behind document-scoped
// dynamic features: registrations keyed by an opaque id, each scoped to a
// document selector, resolved to a provider by selector match in
// registration order.
type TextDocumentFeature[P any] struct {
	mu              sync.Mutex
	method          string
	defaultSelector DocumentSelector
	order           []string
	records         map[string]*registrationRecord[P]
	registerFn      RegisterFunc[P]
	disposed        bool
}

// NewTextDocumentFeature creates a registry for the given method. register
// is invoked for every accepted registration.
func NewTextDocumentFeature[P any](method string, register RegisterFunc[P]) *TextDocumentFeature[P] {
	return &TextDocumentFeature[P]{
		method:     method,
		records:    make(map[string]*registrationRecord[P]),
		registerFn: register,
	}
}

// Methods implements DynamicFeature.
func (f *TextDocumentFeature[P]) Methods() []string {
	return []string{f.method}
}

// Initialize records the client's default document selector for
// registrations that inherit it.
func (f *TextDocumentFeature[P]) Initialize(_ ServerCapabilities, defaultSelector DocumentSelector) {
	f.mu.Lock()
	f.defaultSelector = defaultSelector
	f.mu.Unlock()
}

// registerOptionsProbe extracts just the selector from register options.
type registerOptionsProbe struct {
	DocumentSelector *DocumentSelector `json:"documentSelector"`
}

// Register implements DynamicFeature. A registration without a usable
// document selector (none of its own and no client default) is dropped
// silently; such capabilities must be registered through a static path.
func (f *TextDocumentFeature[P]) Register(reg Registration) error {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return ErrDisposed
	}
	if _, exists := f.records[reg.ID]; exists {
		// Ids are unique within a feature instance; a duplicate means the
		// server re-sent the registration. Replace it.
		f.unregisterLocked(reg.ID)
	}

	var probe registerOptionsProbe
	if len(reg.RegisterOptions) > 0 {
		if err := json.Unmarshal(reg.RegisterOptions, &probe); err != nil {
			f.mu.Unlock()
			return nil
		}
	}

	selector := f.defaultSelector
	inherited := true
	if probe.DocumentSelector != nil {
		selector = *probe.DocumentSelector
		inherited = false
	}
	if selector == nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	provider, dispose, err := f.registerFn(reg.ID, selector, reg.RegisterOptions)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		if dispose != nil {
			dispose()
		}
		return ErrDisposed
	}
	f.records[reg.ID] = &registrationRecord[P]{
		id:        reg.ID,
		selector:  selector,
		inherited: inherited,
		provider:  provider,
		dispose:   dispose,
	}
	f.order = append(f.order, reg.ID)
	return nil
}

// Unregister implements DynamicFeature. Idempotent.
func (f *TextDocumentFeature[P]) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisterLocked(id)
}

func (f *TextDocumentFeature[P]) unregisterLocked(id string) {
	record, ok := f.records[id]
	if !ok {
		return
	}
	delete(f.records, id)
	for i, key := range f.order {
		if key == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	if record.dispose != nil {
		record.dispose()
	}
}

// GetProvider returns the first registered provider whose selector matches
// the document, in registration order.
func (f *TextDocumentFeature[P]) GetProvider(doc Document) (P, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		record := f.records[id]
		if record.selector.Match(doc) > 0 {
			return record.provider, true
		}
	}
	var zero P
	return zero, false
}

// Providers returns all active providers in registration order.
func (f *TextDocumentFeature[P]) Providers() []P {
	f.mu.Lock()
	defer f.mu.Unlock()
	providers := make([]P, 0, len(f.order))
	for _, id := range f.order {
		providers = append(providers, f.records[id].provider)
	}
	return providers
}

// Selectors returns the published document selectors of active
// registrations. Registrations that inherited the client default publish
// no selector and are skipped.
func (f *TextDocumentFeature[P]) Selectors() []DocumentSelector {
	f.mu.Lock()
	defer f.mu.Unlock()
	var selectors []DocumentSelector
	for _, id := range f.order {
		record := f.records[id]
		if record.inherited {
			continue
		}
		selectors = append(selectors, record.selector)
	}
	return selectors
}

// Suspend unregisters all records but keeps the feature open for
// re-registration, used across server restarts.
func (f *TextDocumentFeature[P]) Suspend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearLocked()
}

// Dispose unregisters all records and rejects further registrations.
func (f *TextDocumentFeature[P]) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearLocked()
	f.disposed = true
}

func (f *TextDocumentFeature[P]) clearLocked() {
	for _, id := range append([]string(nil), f.order...) {
		f.unregisterLocked(id)
	}
}

// Registrar dispatches dynamic registration traffic to features by method.
type Registrar struct {
	mu       sync.RWMutex
	features map[string]DynamicFeature
}

// NewRegistrar creates an empty registrar.
func NewRegistrar() *Registrar {
	return &Registrar{features: make(map[string]DynamicFeature)}
}

// Add registers a feature for each of its methods.
func (r *Registrar) Add(feature DynamicFeature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, method := range feature.Methods() {
		r.features[method] = feature
	}
}

// Feature returns the feature handling a method.
func (r *Registrar) Feature(method string) (DynamicFeature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	feature, ok := r.features[method]
	return feature, ok
}

// InitializeAll forwards server capabilities to every feature.
func (r *Registrar) InitializeAll(caps ServerCapabilities, defaultSelector DocumentSelector) {
	for _, feature := range r.all() {
		feature.Initialize(caps, defaultSelector)
	}
}

// HandleRegisterCapability applies a client/registerCapability request.
// Registrations for unknown methods are skipped.
func (r *Registrar) HandleRegisterCapability(params RegistrationParams) error {
	for _, reg := range params.Registrations {
		feature, ok := r.Feature(reg.Method)
		if !ok {
			continue
		}
		if err := feature.Register(reg); err != nil {
			return err
		}
	}
	return nil
}

// HandleUnregisterCapability applies a client/unregisterCapability request.
func (r *Registrar) HandleUnregisterCapability(params UnregistrationParams) {
	for _, unreg := range params.Unregisterations {
		if feature, ok := r.Feature(unreg.Method); ok {
			feature.Unregister(unreg.ID)
		}
	}
}

// SuspendAll suspends every feature, keeping them re-registrable.
func (r *Registrar) SuspendAll() {
	for _, feature := range r.all() {
		feature.Suspend()
	}
}

// DisposeAll disposes every feature.
func (r *Registrar) DisposeAll() {
	for _, feature := range r.all() {
		feature.Dispose()
	}
}

func (r *Registrar) all() []DynamicFeature {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[DynamicFeature]bool, len(r.features))
	features := make([]DynamicFeature, 0, len(r.features))
	for _, feature := range r.features {
		if !seen[feature] {
			seen[feature] = true
			features = append(features, feature)
		}
	}
	return features
}
