package packsync

import (
	"errors"
	"fmt"
)

var (
	// ErrPlayerOffline is returned when an operation targets a player the host does not know.
	ErrPlayerOffline = errors.New("packsync: player is not online")

	// ErrUnknownPack is returned when a pack name does not resolve in the registry.
	ErrUnknownPack = errors.New("packsync: unknown pack")

	// ErrNoPermission is returned when a player may not use a restricted pack.
	ErrNoPermission = errors.New("packsync: no permission for pack")

	// ErrNotRegistered is returned by SetEmptyPack for a pack missing from the registry.
	ErrNotRegistered = errors.New("packsync: pack is not registered")
)

// ConfigError describes a malformed pack or assignment definition.
// Loading continues past it; the offending entry is skipped.
type ConfigError struct {
	Section string
	Key     string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("packsync: invalid %s entry %q: %s", e.Section, e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DuplicateNameError is returned when a pack with the same case-insensitive name exists.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("packsync: a pack named %q is already registered", e.Name)
}

// UnknownPackReferenceError is reported when an assignment references a pack that does not exist.
type UnknownPackReferenceError struct {
	Assignment string
	Pack       string

	// Suggestion is the closest registered pack name, or empty.
	Suggestion string
}

func (e *UnknownPackReferenceError) Error() string {
	msg := fmt.Sprintf("packsync: assignment %q references unknown pack %q", e.Assignment, e.Pack)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// NetworkUnavailableError wraps a failed pack fetch or delivery.
type NetworkUnavailableError struct {
	URL string
	Err error
}

func (e *NetworkUnavailableError) Error() string {
	return fmt.Sprintf("packsync: %s unavailable: %v", e.URL, e.Err)
}

func (e *NetworkUnavailableError) Unwrap() error {
	return e.Err
}

// ProtocolIncompatibleError is returned when a message or pack cannot be represented
// for a protocol version.
type ProtocolIncompatibleError struct {
	Protocol int
	Feature  string
}

func (e *ProtocolIncompatibleError) Error() string {
	if e.Protocol < 0 {
		return "packsync: " + e.Feature + " is not supported"
	}
	return fmt.Sprintf("packsync: %s is not supported for protocol %d", e.Feature, e.Protocol)
}
