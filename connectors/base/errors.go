// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"encoding/json"
	"errors"
)

// ErrorKind classifies a ConnStoreError
type ErrorKind int

const (
	// KindException is an internal or parse-level failure not tied to an entry
	KindException ErrorKind = iota
	// KindNotFound means the referenced key is not in the registry
	KindNotFound
	// KindAlreadyExists means a keyed create hit a live key
	KindAlreadyExists
	// KindConnFailed means establishment, probing, or persistence failed
	KindConnFailed
)

// String returns the variant name used in logs and Error()
func (k ErrorKind) String() string {
	switch k {
	case KindException:
		return "Exception"
	case KindNotFound:
		return "ConnNotFound"
	case KindAlreadyExists:
		return "ConnAlreadyExists"
	case KindConnFailed:
		return "ConnFailed"
	default:
		return "Unknown"
	}
}

// ConnStoreError is the only error type returned by registry operations.
// It encodes to JSON as its bare message string.
type ConnStoreError struct {
	Kind    ErrorKind
	Message string
}

// Error prefixes the message with the kind
func (e *ConnStoreError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Is matches any ConnStoreError of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *ConnStoreError) Is(target error) bool {
	t, ok := target.(*ConnStoreError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// MarshalJSON keeps the untagged wire shape existing clients expect
func (e *ConnStoreError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Message)
}

// Sentinels for errors.Is
var (
	ErrException     = &ConnStoreError{Kind: KindException}
	ErrNotFound      = &ConnStoreError{Kind: KindNotFound}
	ErrAlreadyExists = &ConnStoreError{Kind: KindAlreadyExists}
	ErrConnFailed    = &ConnStoreError{Kind: KindConnFailed}
)

// NewException reports an internal or parse failure
func NewException(msg string) *ConnStoreError {
	return &ConnStoreError{Kind: KindException, Message: msg}
}

// NewNotFound reports that key is not live
func NewNotFound(key string) *ConnStoreError {
	return &ConnStoreError{Kind: KindNotFound, Message: key}
}

// NewAlreadyExists reports that key is already live
func NewAlreadyExists(key string) *ConnStoreError {
	return &ConnStoreError{Kind: KindAlreadyExists, Message: key}
}

// NewConnFailed reports a backend or persistence failure
func NewConnFailed(msg string) *ConnStoreError {
	return &ConnStoreError{Kind: KindConnFailed, Message: msg}
}

// AsConnStoreError returns err unchanged when it already is a ConnStoreError,
// otherwise wraps its message as ConnFailed.
func AsConnStoreError(err error) *ConnStoreError {
	if err == nil {
		return nil
	}
	var cse *ConnStoreError
	if errors.As(err, &cse) {
		return cse
	}
	return NewConnFailed(err.Error())
}
