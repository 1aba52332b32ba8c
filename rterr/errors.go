// Package rterr defines the error taxonomy shared by the relational AST,
// the pagination planner and the reactive table layer. Errors are raised
// synchronously at the call site that detects them; none of them are
// swallowed silently, except EmptyUpdate, which is a deliberate no-op.
package rterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// SchemaViolation is raised when an operation references a column that is
// not present in the table's schema.
type SchemaViolation struct {
	Table  string
	Column string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("rx-table: column %q not in schema of table %q", e.Column, e.Table)
}

// NewSchemaViolation builds a SchemaViolation error.
func NewSchemaViolation(table, column string) error {
	return errors.WithStack(&SchemaViolation{Table: table, Column: column})
}

// PaginationMisordered is raised by the planner when the requested ordering
// does not cover the primary key, or mixes ascending and descending
// directions.
type PaginationMisordered struct {
	Reason string
}

func (e *PaginationMisordered) Error() string {
	return "rx-table: pagination misordered: " + e.Reason
}

// NewPaginationMisordered builds a PaginationMisordered error with reason.
func NewPaginationMisordered(reason string) error {
	return errors.WithStack(&PaginationMisordered{Reason: reason})
}

// CompileUnsupported is raised when the SQL compiler is asked to render an
// AST node kind it does not recognize.
type CompileUnsupported struct {
	Kind string
}

func (e *CompileUnsupported) Error() string {
	return fmt.Sprintf("rx-table: compile: unsupported expression kind %q", e.Kind)
}

// NewCompileUnsupported builds a CompileUnsupported error for kind.
func NewCompileUnsupported(kind string) error {
	return errors.WithStack(&CompileUnsupported{Kind: kind})
}

// InterpUnsupported is raised when the client-side expression interpreter
// encounters an AST node kind it does not recognize.
type InterpUnsupported struct {
	Kind string
}

func (e *InterpUnsupported) Error() string {
	return fmt.Sprintf("rx-table: interpret: unsupported expression kind %q", e.Kind)
}

// NewInterpUnsupported builds an InterpUnsupported error for kind.
func NewInterpUnsupported(kind string) error {
	return errors.WithStack(&InterpUnsupported{Kind: kind})
}

// DynamicDisconnected is raised by Dynamic.Read and Dynamic.Fork once the
// Dynamic has been disconnected.
var DynamicDisconnected = errors.New("rx-table: dynamic disconnected")

// BackendError wraps an error returned by the storage backend so that
// callers can distinguish backend failures from planner/compiler errors
// while still propagating the backend's message and cause unchanged.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("rx-table: backend %s: %v", e.Op, e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err from backend operation op. Returns nil if err is nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
