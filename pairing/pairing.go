// Package pairing tracks which response type a request type is answered
// with, and decides what happens when a request type is registered twice.
//
// Clients use a Table to reject calls whose response type does not match
// what the server will send back. Servers fill a Table as handlers are
// registered and expose it to clients through the reflection request.
package pairing

import (
	"fmt"
	"maps"
	"sync"
)

// Policy selects how a second registration for an already registered
// request type is treated. It is fixed when a client or server is built.
type Policy int

const (
	// SilentOverride replaces the existing entry and reports success.
	SilentOverride Policy = iota
	// SilentIgnore keeps the existing entry and reports success.
	SilentIgnore
	// IndicateIgnore keeps the existing entry and reports failure.
	IndicateIgnore
	// Throw panics with a *DuplicateRegistrationError.
	Throw
)

func (p Policy) String() string {
	switch p {
	case SilentOverride:
		return "silent-override"
	case SilentIgnore:
		return "silent-ignore"
	case IndicateIgnore:
		return "indicate-ignore"
	case Throw:
		return "throw"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration name to a Policy. The empty string
// selects SilentOverride.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "silent-override", "":
		return SilentOverride, nil
	case "silent-ignore":
		return SilentIgnore, nil
	case "indicate-ignore":
		return IndicateIgnore, nil
	case "throw":
		return Throw, nil
	default:
		return 0, fmt.Errorf("pairing: unknown duplicate registration policy %q", name)
	}
}

// DuplicateRegistrationError is the panic value raised under Throw.
type DuplicateRegistrationError struct {
	Request  string
	Response string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("Duplicate request/response pair registration attempted for: %s:%s", e.Request, e.Response)
}

// Resolve is the decision procedure shared by client pair registration and
// server handler registration. assign stores the new entry; it runs when no
// entry exists or when the policy overrides. The result reports success.
func Resolve(policy Policy, request, response string, exists bool, assign func()) bool {
	if !exists {
		assign()
		return true
	}

	switch policy {
	case SilentOverride:
		assign()
		return true
	case SilentIgnore:
		return true
	case IndicateIgnore:
		return false
	case Throw:
		panic(&DuplicateRegistrationError{Request: request, Response: response})
	default:
		panic(fmt.Sprintf("pairing: unknown policy %d", int(policy)))
	}
}

// Table maps request type names to response type names.
type Table struct {
	policy Policy

	mu    sync.RWMutex
	pairs map[string]string
}

// NewTable returns an empty table that applies policy to duplicates.
func NewTable(policy Policy) *Table {
	return &Table{
		policy: policy,
		pairs:  make(map[string]string),
	}
}

// Policy returns the table's duplicate registration policy.
func (t *Table) Policy() Policy {
	return t.policy
}

// Register records request → response, applying the duplicate policy.
func (t *Table) Register(request, response string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.pairs[request]
	return Resolve(t.policy, request, response, exists, func() {
		t.pairs[request] = response
	})
}

// Set records request → response unconditionally.
func (t *Table) Set(request, response string) {
	t.mu.Lock()
	t.pairs[request] = response
	t.mu.Unlock()
}

// Lookup returns the response type registered for request.
func (t *Table) Lookup(request string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	response, ok := t.pairs[request]
	return response, ok
}

// Snapshot returns a copy of the table contents.
func (t *Table) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.pairs)
}

// Replace discards the current contents and installs a copy of pairs.
func (t *Table) Replace(pairs map[string]string) {
	fresh := make(map[string]string, len(pairs))
	maps.Copy(fresh, pairs)

	t.mu.Lock()
	t.pairs = fresh
	t.mu.Unlock()
}

// Len returns the number of registered request types.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pairs)
}
