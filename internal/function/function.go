// Package function provides the functions a model can ask to call.
package function

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/invopop/jsonschema"
)

// Executor is a function call with its arguments already bound.
type Executor interface {
	Execute(ctx context.Context) (string, error)
}

// ExecutorFunc adapts a plain function to [Executor].
type ExecutorFunc func(ctx context.Context) (string, error)

// Execute implements [Executor].
func (f ExecutorFunc) Execute(ctx context.Context) (string, error) { return f(ctx) }

// Spec is a function the model can call.
//
// Inject binds the raw JSON arguments and returns a new [Executor] each time,
// so the same Spec may run several times concurrently.
type Spec interface {
	Definition() proto.FunctionDefinition
	Inject(args []byte) (Executor, error)
}

// Registry looks up functions by name.
type Registry interface {
	Lookup(name string) (Spec, bool)
	Definitions() []proto.FunctionDefinition
}

var errDuplicate = errors.New("duplicate function")

// Set is a [Registry] holding a fixed set of functions.
type Set struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

var _ Registry = &Set{}

// NewSet creates a new [Set] with the given functions.
func NewSet(specs ...Spec) (*Set, error) {
	s := &Set{specs: map[string]Spec{}}
	for _, spec := range specs {
		if err := s.Add(spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers a function. Names must be unique.
func (s *Set) Add(spec Spec) error {
	name := spec.Definition().Name
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.specs[name]; ok {
		return fmt.Errorf("%w: %s", errDuplicate, name)
	}
	s.specs[name] = spec
	return nil
}

// Lookup implements [Registry].
func (s *Set) Lookup(name string) (Spec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.specs[name]
	return spec, ok
}

// Names returns the sorted names of all functions.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions implements [Registry]. Definitions are sorted by name.
func (s *Set) Definitions() []proto.FunctionDefinition {
	names := s.Names()
	defs := make([]proto.FunctionDefinition, 0, len(names))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range names {
		defs = append(defs, s.specs[name].Definition())
	}
	return defs
}

// New returns a [Spec] for a Go function. The parameters schema is reflected
// from P, and the arguments are decoded into a P before calling fn.
func New[P any](name, description string, fn func(context.Context, P) (string, error)) Spec {
	return &typed[P]{
		name:        name,
		description: description,
		fn:          fn,
		schema:      sync.OnceValue(schemaOf[P]),
	}
}

type typed[P any] struct {
	name        string
	description string
	fn          func(context.Context, P) (string, error)
	schema      func() map[string]any
}

func (f *typed[P]) Definition() proto.FunctionDefinition {
	return proto.FunctionDefinition{
		Name:        f.name,
		Description: f.description,
		Parameters:  f.schema(),
	}
}

func (f *typed[P]) Inject(args []byte) (Executor, error) {
	var params P
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", f.name, err)
		}
	}
	return ExecutorFunc(func(ctx context.Context) (string, error) {
		return f.fn(ctx, params)
	}), nil
}

func schemaOf[P any]() map[string]any {
	var p P
	schema := (&jsonschema.Reflector{
		DoNotReference: true,
	}).Reflect(&p)
	bts, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(bts, &params); err != nil {
		return nil
	}
	delete(params, "$schema")
	return params
}
