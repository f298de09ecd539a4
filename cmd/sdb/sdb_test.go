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

package main

import (
	"context"
	"testing"
)

func TestHost(t *testing.T) {
	h, err := NewHost("../../stores")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err = h.LoadSource(ctx, "counter.yaml"); err != nil {
		t.Fatal(err)
	}

	if h.Source.Name != "counter" {
		t.Fatalf("name == %s", h.Source.Name)
	}

	dispatched, err := h.Store.Dispatch(ctx, "bump", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !dispatched {
		t.Fatal("not dispatched")
	}

	if got := h.Store.Get("count"); got != float64(3) {
		t.Fatalf("count == %#v", got)
	}

	if got := h.Store.Get("doubled"); got != float64(6) {
		t.Fatalf("doubled == %#v", got)
	}
}
