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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Comcast/stash/store"
)

func testStore(t *testing.T, ctx context.Context) *store.Store {
	conf := &store.StoreConf{
		State: store.State{"count": 0},
		Mutations: map[string]store.MutationFunc{
			"INCREMENT": func(ctx context.Context, current store.State, payload interface{}) (store.State, error) {
				n, _ := current["count"].(int)
				return store.State{"count": n + 1}, nil
			},
		},
		Actions: map[string]store.ActionFunc{
			"bump": func(ctx context.Context, s *store.Store, payload interface{}) error {
				_, err := s.Commit(ctx, "INCREMENT", payload)
				return err
			},
		},
	}
	s, err := store.NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type chanCouplings struct {
	in   chan *Op
	out  chan *Update
	done chan bool
}

func newChanCouplings() *chanCouplings {
	return &chanCouplings{
		in:   make(chan *Op, 8),
		out:  make(chan *Update, 8),
		done: make(chan bool),
	}
}

func (c *chanCouplings) Start(ctx context.Context) error { return nil }
func (c *chanCouplings) Stop(ctx context.Context) error  { return nil }
func (c *chanCouplings) IO(ctx context.Context) (chan *Op, chan *Update, chan bool, error) {
	return c.in, c.out, c.done, nil
}

func TestApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := NewService(ctx, nil, testStore(t, ctx), newChanCouplings())
	if err != nil {
		t.Fatal(err)
	}

	if u := srv.Apply(ctx, &Op{Commit: "INCREMENT"}); !u.OK || u.Err != "" {
		t.Fatalf("commit update %s", JS(u))
	}

	if u := srv.Apply(ctx, &Op{Dispatch: "bump"}); !u.OK || u.Err != "" {
		t.Fatalf("dispatch update %s", JS(u))
	}

	key := "count"
	u := srv.Apply(ctx, &Op{Get: &key})
	if !u.OK {
		t.Fatalf("get update %s", JS(u))
	}
	if u.Result != 2 {
		t.Fatalf("count == %#v", u.Result)
	}

	if u := srv.Apply(ctx, &Op{Commit: "NOPE"}); u.OK {
		t.Fatalf("unknown mutation update %s", JS(u))
	}

	if u := srv.Apply(ctx, &Op{Init: map[string]interface{}{"likes": "tacos"}}); !u.OK {
		t.Fatalf("init update %s", JS(u))
	}
	if got := srv.Store.Get("likes"); got != "tacos" {
		t.Fatalf("likes == %#v", got)
	}

	if u := srv.Apply(ctx, &Op{}); u.Err == "" {
		t.Fatal("expected an error for an empty op")
	}
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp([]byte(`{"dispatch":"bump","payload":{"by":2}}`))
	if err != nil {
		t.Fatal(err)
	}
	if op.Dispatch != "bump" {
		t.Fatalf("op %s", JS(op))
	}

	op, err = ParseOp([]byte(`{"get":""}`))
	if err != nil {
		t.Fatal(err)
	}
	if op.Get == nil || *op.Get != "" {
		t.Fatalf("op %s", JS(op))
	}

	if _, err = ParseOp([]byte(`not json`)); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoopStdio(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := strings.NewReader(`{"commit":"INCREMENT"}
{"commit":"INCREMENT"}
{"get":"count"}
`)
	var out bytes.Buffer

	std := NewStdio(false)
	std.In = in
	std.Out = &out
	std.Tags = true

	if err := std.Start(ctx); err != nil {
		t.Fatal(err)
	}

	conf := &ServiceConf{
		HaltOnInputEOF:   true,
		EmitStateChanges: true,
	}
	srv, err := NewService(ctx, conf, testStore(t, ctx), std)
	if err != nil {
		t.Fatal(err)
	}

	if err := srv.Loop(ctx); err != nil {
		t.Fatal(err)
	}

	cancel()
	if err := std.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	if !strings.Contains(got, `{"count":2}`) {
		t.Fatalf("output: %s", got)
	}
	if !strings.Contains(got, `"result":2`) {
		t.Fatalf("output: %s", got)
	}
}

func TestResolveStoreSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := `
name: counter
state:
  count: 0
mutations:
  INCREMENT:
    interpreter: goja
    source: |
      return {count: _.state.count + 1};
`

	src, conf, err := ResolveStoreSource(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "counter" {
		t.Fatalf("name == %s", src.Name)
	}

	s, err := store.NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = s.Commit(ctx, "INCREMENT", nil); err != nil {
		t.Fatal(err)
	}

	if got := s.Get("count"); got != float64(1) {
		t.Fatalf("count == %#v", got)
	}
}
