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

// Package persist provides the key-value media that stores use to
// survive process restarts.
//
// A Medium holds at most one entry per store key: the serialized form
// of the most recently written state.  Media have read-then-overwrite
// semantics and no transactional isolation.
package persist

import (
	"context"
	"sync"
)

// Medium is an external key-value medium.
type Medium interface {
	// Read returns the data previously written under key, if any.
	Read(ctx context.Context, key string) ([]byte, bool, error)

	// Write stores data under key, replacing anything already
	// there.
	Write(ctx context.Context, key string, data []byte) error
}

// Mem is a Medium backed by an in-process map.
//
// Useful for tests and for stores that shouldn't actually survive
// restarts.
type Mem struct {
	sync.RWMutex

	data map[string][]byte
}

// NewMem makes an empty in-memory Medium.
func NewMem() *Mem {
	return &Mem{
		data: make(map[string][]byte),
	}
}

func (m *Mem) Read(ctx context.Context, key string) ([]byte, bool, error) {
	m.RLock()
	bs, have := m.data[key]
	m.RUnlock()
	if !have {
		return nil, false, nil
	}
	acc := make([]byte, len(bs))
	copy(acc, bs)
	return acc, true, nil
}

func (m *Mem) Write(ctx context.Context, key string, data []byte) error {
	acc := make([]byte, len(data))
	copy(acc, data)
	m.Lock()
	m.data[key] = acc
	m.Unlock()
	return nil
}
