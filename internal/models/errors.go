package models

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrStorageIO     = errors.New("storage I/O error")
	ErrQuerySyntax   = errors.New("query syntax error")
)

// ConfigurationError reports an invalid Field or Document construction.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// StorageIOError wraps a filesystem or index storage failure.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorageIO.
func (e *StorageIOError) Is(target error) bool {
	return target == ErrStorageIO
}

// QuerySyntaxError reports a query string the parser rejected.
// Error() carries the parser's message unchanged.
type QuerySyntaxError struct {
	Query string
	Err   error
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("invalid query %q: %v", e.Query, e.Err)
}

func (e *QuerySyntaxError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrQuerySyntax.
func (e *QuerySyntaxError) Is(target error) bool {
	return target == ErrQuerySyntax
}
