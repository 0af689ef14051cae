// Package engineerr defines the tagged-union error taxonomy returned by the
// engine core to its callers (the UI command surface). Every variant is a
// distinct Go type so that callers can use errors.As to recover structured
// detail instead of parsing error strings.
package engineerr

import "fmt"

// ConnectionError reports a failure opening or obtaining an engine
// connection: pool creation, extension load, or attachment replay.
type ConnectionError struct {
	Message string
	Context string
}

func (e *ConnectionError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Context)
}

// QueryError reports a failure returned by the engine itself while running
// a statement.
type QueryError struct {
	Message    string
	SQL        string
	ErrorCode  string
	LineNumber int
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %s", e.Message)
}

// InvalidQuery reports a statement rejected by the sanitizer or classifier
// before it ever reached the engine.
type InvalidQuery struct {
	Message  string
	SQL      string
	Position int
}

func (e *InvalidQuery) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Message)
}

// InvalidOperation reports a contract violation: a malformed stream id, a
// parameter-count mismatch, an operation attempted in the wrong state.
type InvalidOperation struct {
	Message   string
	Operation string
}

func (e *InvalidOperation) Error() string {
	if e.Operation == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// FileNotFound reports a missing file in a file-registration request.
type FileNotFound struct {
	Path string
}

func (e *FileNotFound) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// FileAccess reports a file that exists but cannot be read, or fails the
// path allowlist check.
type FileAccess struct {
	Message string
	Path    string
}

func (e *FileAccess) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Path)
}

// PoolExhausted reports a connection- or streaming-permit acquisition that
// timed out.
type PoolExhausted struct {
	Message string
}

func (e *PoolExhausted) Error() string {
	return e.Message
}

// ResourceLimit reports a refusal tied to a configured resource bound
// (memory, permit count).
type ResourceLimit struct {
	Resource string
	Limit    string
}

func (e *ResourceLimit) Error() string {
	return fmt.Sprintf("resource limit exceeded: %s (limit %s)", e.Resource, e.Limit)
}

// PersistenceError reports a failure reading or writing the local secret or
// connection index.
type PersistenceError struct {
	Message string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s", e.Message)
}

// SerializationError reports a failure encoding or decoding a stored value
// (credential bundle, Arrow IPC frame).
type SerializationError struct {
	Message string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s", e.Message)
}

// InitializationError reports a failure during engine start-up only.
type InitializationError struct {
	Message string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization error: %s", e.Message)
}

// SecretNotFound reports a lookup of a secret id absent from the index, or
// orphaned (index entry with no matching keychain payload).
type SecretNotFound struct {
	ID string
}

func (e *SecretNotFound) Error() string {
	return fmt.Sprintf("secret not found: %s", e.ID)
}
