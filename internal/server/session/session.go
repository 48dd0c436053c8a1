// Package session implements the source session state machine. State is an
// explicit value passed into and returned from every transition; nothing is
// mutated in place.
package session

import (
	"context"
	"time"
)

// DefaultExpiration is the inactivity window.
const DefaultExpiration = 120 * time.Minute

// State is the whole of a session. The zero value is the anonymous session.
// A logged-in state always carries both Identity and ExpiresAt.
type State struct {
	Identity string
	// Codename is only held between generation and source creation.
	Codename  string
	ExpiresAt time.Time
}

// LoggedIn reports whether the state is bound to an identity.
func (s State) LoggedIn() bool { return s.Identity != "" }

// IsZero reports whether s is the anonymous session.
func (s State) IsZero() bool { return s == State{} }

type Status int

const (
	Anonymous Status = iota
	Active
	Expired
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Expired:
		return "expired"
	}
	return "anonymous"
}

// Policy holds the session timing rules.
type Policy struct {
	Expiration time.Duration
	Now        func() time.Time
}

func DefaultPolicy() Policy {
	return Policy{Expiration: DefaultExpiration, Now: time.Now}
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p Policy) deadline() time.Time {
	exp := p.Expiration
	if exp <= 0 {
		exp = DefaultExpiration
	}
	return p.now().Add(exp)
}

// Generate starts a session holding a freshly generated codename.
func (p Policy) Generate(codename string) State {
	return State{Codename: codename, ExpiresAt: p.deadline()}
}

// Authenticate binds identity; any held codename is dropped.
func (p Policy) Authenticate(identity string) State {
	return State{Identity: identity, ExpiresAt: p.deadline()}
}

// Check applies expiration. An expired state is cleared entirely; an active
// one has its window extended.
func (p Policy) Check(st State) (State, Status) {
	if st.IsZero() {
		return State{}, Anonymous
	}
	if st.ExpiresAt.IsZero() || p.now().After(st.ExpiresAt) {
		return State{}, Expired
	}
	st.ExpiresAt = p.deadline()
	return st, Active
}

// Logout clears every field.
func (p Policy) Logout(State) State { return State{} }

// Vanished clears a session whose identity no longer has a source record.
func (p Policy) Vanished(State) State { return State{} }

type policyKey struct{}

// WithPolicy attaches p to ctx.
func WithPolicy(ctx context.Context, p Policy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

// PolicyFrom returns the policy in ctx, or fallback when none is attached.
func PolicyFrom(ctx context.Context, fallback Policy) Policy {
	if p, ok := ctx.Value(policyKey{}).(Policy); ok {
		return p
	}
	return fallback
}
