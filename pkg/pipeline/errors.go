package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError.
type ErrorKind string

const (
	KindParsing              ErrorKind = "ParsingError"
	KindAssetNotFound        ErrorKind = "AssetNotFound"
	KindStageNotFound        ErrorKind = "StageNotFound"
	KindAccessPointNotFound  ErrorKind = "AccessPointNotFound"
	KindRemoteMethodNotFound ErrorKind = "RemoteMethodNotFound"
	KindFileInput            ErrorKind = "FileInputError"
	KindIncompatible         ErrorKind = "Incompatible"
	KindEdgeNotFound         ErrorKind = "EdgeNotFound"
	KindVolumeNotFound       ErrorKind = "VolumeNotFound"
	KindDuplicateIdentifier  ErrorKind = "DuplicateIdentifier"
)

// Sentinels for errors.Is. A *DomainError matches the sentinel of its Kind.
var (
	ErrParsing              = &DomainError{Kind: KindParsing}
	ErrAssetNotFound        = &DomainError{Kind: KindAssetNotFound}
	ErrStageNotFound        = &DomainError{Kind: KindStageNotFound}
	ErrAccessPointNotFound  = &DomainError{Kind: KindAccessPointNotFound}
	ErrRemoteMethodNotFound = &DomainError{Kind: KindRemoteMethodNotFound}
	ErrFileInput            = &DomainError{Kind: KindFileInput}
	ErrIncompatible         = &DomainError{Kind: KindIncompatible}
	ErrEdgeNotFound         = &DomainError{Kind: KindEdgeNotFound}
	ErrVolumeNotFound       = &DomainError{Kind: KindVolumeNotFound}
	ErrDuplicateIdentifier  = &DomainError{Kind: KindDuplicateIdentifier}
)

// DomainError is the error type returned by every failing operation of the
// domain core. It never indicates a partially applied change.
type DomainError struct {
	Kind    ErrorKind
	ID      ID // offending identifier, if any
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	msg := string(e.Kind)
	if e.ID != "" {
		msg += fmt.Sprintf(" %q", e.ID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches any *DomainError of the same kind, so callers can compare
// against the exported sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first DomainError in err's chain, or "" if
// there is none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func newError(kind ErrorKind, id ID, msg string) *DomainError {
	return &DomainError{Kind: kind, ID: id, Message: msg}
}

func wrapError(kind ErrorKind, msg string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: msg, Cause: cause}
}
