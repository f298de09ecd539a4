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
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/Comcast/stash/sio"
)

func TestServiceBasic(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testServiceBasic(ctx, t)
	s.Close(ctx) // ToDo: Check error.
}

func testServiceBasic(ctx context.Context, t *testing.T) *Service {

	dbFile := "test.db"

	removeDBFile := func() {
		if _, err := os.Stat(dbFile); err == nil {
			log.Printf("removing dbFile %s", dbFile)
			if err := os.Remove(dbFile); err != nil {
				t.Fatal(err)
			}
		}
	}

	removeDBFile()

	defer removeDBFile()

	s, err := NewService(ctx, "../../stores", dbFile, "lib")
	if err != nil {
		t.Fatal(err)
	}

	s.Changes = make(chan interface{}, 8)
	s.Errors = make(chan interface{}, 8)

	op := SOp{
		Add: &OpAdd{
			Name: "counter",
		},
	}

	if err = op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	op = SOp{
		Op: &StoreOp{
			Store: "counter",
			Op: sio.Op{
				Dispatch: "bump",
				Payload:  2,
			},
		},
	}

	if err = op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if op.Op.Update == nil || !op.Op.Update.OK || op.Op.Update.Err != "" {
		t.Fatalf("update %s", JS(op.Op.Update))
	}

	change := <-s.Changes
	Logf("change %s", JS(change))

	key := "count"
	op = SOp{
		Op: &StoreOp{
			Store: "counter",
			Op: sio.Op{
				Get: &key,
			},
		},
	}
	if err = op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if got := op.Op.Update.Result; got != float64(2) {
		t.Fatalf("count == %#v", got)
	}

	// The state should come back from storage when the store is
	// remade.
	op = SOp{
		Rem: &OpRem{
			Name: "counter",
		},
	}
	if err = op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	op = SOp{
		Add: &OpAdd{
			Name: "counter",
		},
	}
	if err = op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	st, have := s.Store("counter")
	if !have {
		t.Fatal("no counter store")
	}
	if got := st.Get("count"); got != float64(2) {
		t.Fatalf("persisted count == %#v", got)
	}

	return s
}

func TestServiceRemStore(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testServiceBasic(ctx, t)

	op := SOp{
		Rem: &OpRem{
			Name: "counter",
		},
	}

	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	op = SOp{
		Op: &StoreOp{
			Store: "counter",
			Op: sio.Op{
				Commit: "INCREMENT",
			},
		},
	}

	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if op.Op.Err == "" {
		t.Fatal("expected an error for the removed store")
	}

	s.Close(ctx) // ToDo: Check error.
}

func TestServiceListener(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewService(ctx, "../../stores", "", "lib")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	// A netcat-style session, one line at a time.
	lines := []string{
		"# Add a store, poke it, read it back.",
		"json",
		`{"add":{"name":"counter"}}`,
		`{"op":{"store":"counter","dispatch":"bump","payload":2}}`,
		`{"op":{"store":"counter","get":"count"}}`,
		"shutdown",
	}

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	out := bytes.Buffer{}
	ctl := make(chan bool, 1)

	if err := s.Listener(ctx, in, &out, ctl); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctl:
	default:
		t.Fatal("shutdown never reached ctl")
	}

	got := out.String()
	Logf("listener said %s", got)

	for _, want := range []string{
		`"okay"`,
		`"add":{"name":"counter"}`,
		`"ok":true`,
		`"result":2`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("didn't hear %s in %s", want, got)
		}
	}
}

func TestServiceGetStores(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testServiceBasic(ctx, t)
	defer s.Close(ctx)

	op := SOp{
		GetStores: &GetStoresOp{},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if len(op.GetStores.Stores) != 1 || op.GetStores.Stores[0] != "counter" {
		t.Fatalf("stores %s", JS(op.GetStores.Stores))
	}
}
