package gitlab

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// UnknownEventMessage is sent in place of a notification when object_kind has
// no registered renderer. The webhook still succeeds.
const UnknownEventMessage = "ERROR: `unknown_event`"

var (
	// ErrMalformedPayload is returned when the body is not a JSON object or
	// does not match the payload type registered for its kind.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrDuplicateKind is returned by Register when kind already has a renderer.
	ErrDuplicateKind = errors.New("renderer already registered for kind")
)

// Renderer turns a raw payload of one kind into a message. ok=false means the
// event is suppressed and nothing should be sent.
type Renderer func(raw json.RawMessage) (msg string, ok bool, err error)

// Typed adapts a renderer over a concrete payload type. The raw body is
// decoded into T before render is called.
func Typed[T any](render func(*T) (string, bool)) Renderer {
	return func(raw json.RawMessage) (string, bool, error) {
		var ev T
		if err := json.Unmarshal(raw, &ev); err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		msg, ok := render(&ev)
		return msg, ok, nil
	}
}

// Suppressed is a renderer that never produces a message.
func Suppressed(json.RawMessage) (string, bool, error) { return "", false, nil }

// Result is the outcome of formatting one payload.
type Result struct {
	// Kind is the payload's object_kind as received.
	Kind Kind
	// Message is the rendered text; meaningful only when Send is true.
	Message string
	// Send is false when the event is suppressed. An empty Message with
	// Send=true is still a message.
	Send bool
	// Known is false when no renderer was registered for Kind.
	Known bool
}

// Registry maps object_kind to a renderer. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	renderers map[Kind]Renderer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: map[Kind]Renderer{}}
}

// Register installs r for kind. Registering the same kind twice fails.
func (g *Registry) Register(kind Kind, r Renderer) error {
	kind = Kind(strings.TrimSpace(string(kind)))
	if kind == "" || r == nil {
		return fmt.Errorf("gitlab: invalid registration for kind %q", kind)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.renderers[kind]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKind, kind)
	}
	g.renderers[kind] = r
	return nil
}

// MustRegister is Register that panics on error; used for static tables.
func (g *Registry) MustRegister(kind Kind, r Renderer) {
	if err := g.Register(kind, r); err != nil {
		panic(err)
	}
}

// Kinds returns the registered kinds (unordered).
func (g *Registry) Kinds() []Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Kind, 0, len(g.renderers))
	for k := range g.renderers {
		out = append(out, k)
	}
	return out
}

// Format reads object_kind from body and renders it with the matching
// renderer. Unknown kinds yield UnknownEventMessage with Known=false.
func (g *Registry) Format(body []byte) (Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	kind := Kind(env.ObjectKind)

	g.mu.RLock()
	r, ok := g.renderers[kind]
	g.mu.RUnlock()
	if !ok {
		return Result{Kind: kind, Message: UnknownEventMessage, Send: true}, nil
	}

	msg, send, err := r(body)
	if err != nil {
		return Result{Kind: kind, Known: true}, err
	}
	return Result{Kind: kind, Message: msg, Send: send, Known: true}, nil
}

// DefaultRegistry returns a registry with every kind GitLab sends wired to
// its renderer.
func DefaultRegistry() *Registry {
	g := NewRegistry()
	g.MustRegister(KindPush, Typed(renderPush))
	g.MustRegister(KindTagPush, Typed(renderPush))
	g.MustRegister(KindIssue, Typed(renderIssue))
	g.MustRegister(KindNote, Typed(renderNote))
	g.MustRegister(KindMergeRequest, Typed(renderMergeRequest))
	g.MustRegister(KindWikiPage, Suppressed)
	g.MustRegister(KindPipeline, Suppressed)
	g.MustRegister(KindBuild, Typed(renderBuild))
	return g
}
