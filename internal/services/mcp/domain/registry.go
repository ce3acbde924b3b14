package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrOperationNotFound is returned when no operation has the requested name.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrDuplicateOperation is returned when a name is registered twice.
	ErrDuplicateOperation = errors.New("operation already registered")
)

// Handler executes an operation with validated arguments.
type Handler func(ctx context.Context, args Args) (Result, error)

// Operation is a named, schema-validated, invocable function.
type Operation struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Invoke validates raw input against the operation schema and runs the
// handler. The handler never runs when validation fails.
func (op Operation) Invoke(ctx context.Context, raw json.RawMessage) (Result, error) {
	args, err := op.Schema.Validate(raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Operation = op.Name
		}
		return Result{}, err
	}
	return op.Handler(ctx, args)
}

// Registry holds the operations exposed to remote callers.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]Operation
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Register adds an operation. Names are unique; registering a name twice
// fails with ErrDuplicateOperation and keeps the first registration.
func (r *Registry) Register(op Operation) error {
	name := strings.TrimSpace(op.Name)
	if name == "" {
		return fmt.Errorf("operation name is required")
	}
	if op.Handler == nil {
		return fmt.Errorf("operation %q: handler is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateOperation)
	}
	op.Name = name
	r.ops[name] = op
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}
	return op, nil
}

// List returns operations in registration order.
func (r *Registry) List() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Operation, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.ops[name])
	}
	return out
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// AcceptingEnum returns the single operation whose schema accepts value for
// the enum field named field. It fails when zero or several operations match.
func (r *Registry) AcceptingEnum(field, value string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var match []Operation
	for _, name := range r.order {
		op := r.ops[name]
		if op.Schema.Accepts(field, value) {
			match = append(match, op)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return Operation{}, fmt.Errorf("%w: %s", ErrOperationNotFound, value)
	default:
		return Operation{}, fmt.Errorf("%w: %s is ambiguous", ErrOperationNotFound, value)
	}
}

// RegisterBuiltins adds the calculator operations to r.
func RegisterBuiltins(r *Registry) error {
	for _, op := range []Operation{AddOperation(), CalculateOperation()} {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}
