/* Copyright 2018 Comcast Cable Communications Management, LLC
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

package observe

import (
	"sync"
)

// Change describes one replacement of an Observable's value.
type Change struct {
	Previous map[string]interface{}
	Current  map[string]interface{}
}

// Observer is called synchronously whenever an Observable's value is
// replaced.
type Observer func(Change)

// Observable is a value cell: a current snapshot plus observers that
// hear about every replacement.
//
// An Observable does not copy the values it is given or returns.
// Callers that need isolation should copy.
type Observable struct {
	// writeMu serializes Set calls so that observers see
	// replacements in order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	current   map[string]interface{}
	observers []Observer
}

// New makes an Observable holding the given initial value.
func New(initial map[string]interface{}) *Observable {
	if initial == nil {
		initial = make(map[string]interface{})
	}
	return &Observable{
		current: initial,
	}
}

// Get returns the current snapshot.
func (o *Observable) Get() map[string]interface{} {
	o.mu.RLock()
	v := o.current
	o.mu.RUnlock()
	return v
}

// On registers an observer, which will be called synchronously, in
// registration order, on every subsequent Set.
//
// There is no un-On.  An observer lives as long as the Observable.
func (o *Observable) On(f Observer) {
	o.mu.Lock()
	o.observers = append(o.observers, f)
	o.mu.Unlock()
}

// Set replaces the current value and synchronously notifies all
// observers before returning.
//
// An observer can call Get (it'll see the new value) but should not
// call Set.
func (o *Observable) Set(v map[string]interface{}) {
	o.writeMu.Lock()

	o.mu.Lock()
	previous := o.current
	o.current = v
	fs := make([]Observer, len(o.observers))
	copy(fs, o.observers)
	o.mu.Unlock()

	for _, f := range fs {
		f(Change{
			Previous: previous,
			Current:  v,
		})
	}

	o.writeMu.Unlock()
}
