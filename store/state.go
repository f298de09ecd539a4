package store

import (
	"encoding/json"
)

// State represents the full contents of a Store: an unordered mapping
// from string keys to arbitrary (JSON-serializable) values.
type State map[string]interface{}

// NewState makes an empty State.
func NewState() State {
	return make(State)
}

// Copy makes a shallow copy of the State.
func (s State) Copy() State {
	acc := make(State, len(s))
	for k, v := range s {
		acc[k] = v
	}
	return acc
}

// Merge returns a new State containing the receiver's entries with
// every entry of the given partial State overwriting the same-named
// entry (if any).
//
// Neither the receiver nor the partial is modified.  The result is a
// new top-level map; values are shared, not deep-copied.
func (s State) Merge(partial State) State {
	acc := make(State, len(s)+len(partial))
	for k, v := range s {
		acc[k] = v
	}
	for k, v := range partial {
		acc[k] = v
	}
	return acc
}

func (s State) String() string {
	js, err := json.Marshal(s)
	if err != nil {
		return "{*}"
	}
	return string(js)
}
