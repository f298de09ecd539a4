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
	"context"
	"encoding/json"
	"io/ioutil"
	"sync"

	"github.com/Comcast/stash/store"
)

// StateFile is a primitive facility to store a state snapshot as JSON
// in a file.
//
// Not glamorous or efficient.
type StateFile struct {
	// StateOutputFilename, if not empty, will be the filename for
	// writing state as JSON.
	StateOutputFilename string

	// StateInputFilename optionally gives a filename that
	// contains state to return when Read is called.
	StateInputFilename string

	// State is the last state seen via Update.
	State store.State

	WG sync.WaitGroup
}

func NewStateFile() *StateFile {
	return &StateFile{
		StateOutputFilename: "state.json",
	}
}

// Read reads s.StateInputFilename, which should contain a JSON
// representation of a state.
func (s *StateFile) Read(ctx context.Context) (store.State, error) {
	if s.StateInputFilename != "" {
		js, err := ioutil.ReadFile(s.StateInputFilename)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(js, &s.State); err != nil {
			return nil, err
		}
		return s.State, nil

	}
	return store.NewState(), nil
}

// WriteState writes the last seen state as JSON.
func (s *StateFile) WriteState(ctx context.Context) error {
	if s.State != nil && s.StateOutputFilename != "" {
		js, err := json.MarshalIndent(&s.State, "", "  ")
		if err != nil {
			return err
		}
		if err = ioutil.WriteFile(s.StateOutputFilename, js, 0644); err != nil {
			return err
		}
	}
	return nil
}

// Update remembers the state carried by a state-change Update (if
// any).
func (s *StateFile) Update(u *Update) error {
	if u.State != nil {
		s.State = u.State
	}
	return nil
}
