/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"encoding/json"

	"github.com/Comcast/stash/store"
)

// Op is a single store operation on the wire.
//
// Exactly one of Dispatch, Commit, Get, Init, or Set should be given.
//
//	{"dispatch":"like","payload":"tacos"}
//	{"commit":"SET","payload":{"likes":"tacos"}}
//	{"get":"likes"}
//	{"get":"", "args":[]}
//	{"init":{"likes":"queso"}}
//	{"set":{"likes":"chips"}}
type Op struct {
	// Dispatch names an action to dispatch.
	Dispatch string `json:"dispatch,omitempty"`

	// Commit names a mutation to commit.
	Commit string `json:"commit,omitempty"`

	// Payload accompanies Dispatch or Commit.
	Payload interface{} `json:"payload,omitempty"`

	// Get asks for a state property or getter value.
	//
	// A pointer so that {"get":""}, which asks for the entire
	// state, is distinguishable from an absent "get".
	Get *string `json:"get,omitempty"`

	// Args are additional getter arguments.
	Args []interface{} `json:"args,omitempty"`

	// Init replaces in-memory and persisted state with the given
	// state merged over the current state.
	Init map[string]interface{} `json:"init,omitempty"`

	// Set replaces the state directly, outside of any mutation.
	Set map[string]interface{} `json:"set,omitempty"`
}

// ParseOp parses an Op from a line of JSON.
func ParseOp(line []byte) (*Op, error) {
	var op Op
	if err := json.Unmarshal(line, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// Update represents all visible output from applying an Op, as well
// as asynchronous store notifications.
//
// For an applied Op, Op/OK/Result/Err are populated.  A state-change
// notification has only State; a mutation notification has only
// Mutation.
type Update struct {
	// Op is the operation that produced this Update, if any.
	Op *Op `json:"op,omitempty"`

	// OK reports whether the op's target was found.  An unknown
	// action or mutation name gives OK false.
	OK bool `json:"ok"`

	// Result is the value of a "get" op.
	Result interface{} `json:"result,omitempty"`

	// Err is the error (if any) from the op's user code.
	Err string `json:"err,omitempty"`

	// State is the complete state after a write, for state-change
	// notifications.
	State store.State `json:"state,omitempty"`

	// Mutation is the name of a mutation about to run, for
	// mutation notifications.
	Mutation string `json:"mutation,omitempty"`
}
