// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

// Policy maps the current state to an action.
//
// A Policy is bound to the state and parameter it was made for and stays
// valid for every state met during that execution. It may keep internal
// memory between calls, so one instance belongs to one execution and must
// not be invoked concurrently.
//
// Invoke may return a domain-specific error when state lies outside the
// policy's operating envelope. The skill layer passes it through untouched.
type Policy[S, A any] interface {
	Invoke(state S) (A, error)
}

// PolicyFunc adapts an ordinary function to the Policy interface.
type PolicyFunc[S, A any] func(state S) (A, error)

// Invoke calls f(state).
func (f PolicyFunc[S, A]) Invoke(state S) (A, error) {
	return f(state)
}
