package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/stash/persist"

	. "github.com/Comcast/stash/util/testutil"
)

// addMutation appends the payload to the "items" list.
func addMutation(ctx context.Context, current State, payload interface{}) (State, error) {
	items, _ := current["items"].([]interface{})
	return State{
		"items": append(append([]interface{}{}, items...), payload),
	}, nil
}

func testConf() *StoreConf {
	return &StoreConf{
		State: State{
			"items": []interface{}{},
			"count": 0,
		},
		Mutations: map[string]MutationFunc{
			"ADD": addMutation,
			"COUNT": func(ctx context.Context, current State, payload interface{}) (State, error) {
				return State{"count": payload}, nil
			},
		},
	}
}

func TestCommitMerge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewStore(ctx, testConf())
	if err != nil {
		t.Fatal(err)
	}

	if committed, err := s.Commit(ctx, "ADD", "a"); err != nil {
		t.Fatal(err)
	} else if !committed {
		t.Fatal("ADD not committed")
	}

	if _, err = s.Commit(ctx, "ADD", "b"); err != nil {
		t.Fatal(err)
	}

	if js := JS(s.Get("items")); js != `["a","b"]` {
		t.Fatalf("items == %s", js)
	}

	// The other field survived the merges.
	if s.Get("count") != 0 {
		t.Fatalf("count == %#v", s.Get("count"))
	}
}

func TestStatusReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewStore(ctx, testConf())
	if err != nil {
		t.Fatal(err)
	}

	if s.Status() != Idle {
		t.Fatalf("initial status %s", s.Status())
	}

	if _, err = s.Commit(ctx, "ADD", "a"); err != nil {
		t.Fatal(err)
	}
	if s.Status() != Idle {
		t.Fatalf("status after Commit %s", s.Status())
	}

	s.Init(State{"likes": "tacos"})
	if s.Status() != Idle {
		t.Fatalf("status after Init %s", s.Status())
	}

	s.Set(State{"likes": "queso"})
	if s.Status() != Idle {
		t.Fatalf("status after Set %s", s.Status())
	}
}

func TestUnknownNames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewStore(ctx, testConf())
	if err != nil {
		t.Fatal(err)
	}

	before := JS(s.Snapshot())

	if committed, err := s.Commit(ctx, "doesNotExist", "x"); err != nil {
		t.Fatal(err)
	} else if committed {
		t.Fatal("committed an unknown mutation")
	}

	if dispatched, err := s.Dispatch(ctx, "doesNotExist", "x"); err != nil {
		t.Fatal(err)
	} else if dispatched {
		t.Fatal("dispatched an unknown action")
	}

	if after := JS(s.Snapshot()); after != before {
		t.Fatalf("state changed: %s -> %s", before, after)
	}

	if s.HasMutation("doesNotExist") || s.HasAction("doesNotExist") {
		t.Fatal("tables claim to have unknown names")
	}
	if !s.HasMutation("ADD") {
		t.Fatal("table lost ADD")
	}
}

func TestGetterPrecedence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := testConf()
	conf.State["x"] = "field"
	conf.Getters = map[string]GetterFunc{
		"x": func(s *Store, args ...interface{}) interface{} {
			return "getter"
		},
		"nth": func(s *Store, args ...interface{}) interface{} {
			items, _ := s.Get("items").([]interface{})
			n, _ := args[0].(int)
			if n < 0 || len(items) <= n {
				return nil
			}
			return items[n]
		},
	}

	s, err := NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	// The getter wins over the state field of the same name.
	if got := s.Get("x"); got != "getter" {
		t.Fatalf("x == %#v", got)
	}

	// No getter: plain field lookup.
	if got := s.Get("count"); got != 0 {
		t.Fatalf("count == %#v", got)
	}

	// Getter args.
	if _, err = s.Commit(ctx, "ADD", "a"); err != nil {
		t.Fatal(err)
	}
	if got := s.Get("nth", 0); got != "a" {
		t.Fatalf("nth(0) == %#v", got)
	}

	// Empty key: the whole state.
	if _, is := s.Get("").(State); !is {
		t.Fatalf("Get(\"\") gave a %T", s.Get(""))
	}
}

func TestDispatchSyncError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")

	conf := testConf()
	conf.Actions = map[string]ActionFunc{
		"explode": func(ctx context.Context, s *Store, payload interface{}) error {
			return boom
		},
	}

	s, err := NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	dispatched, err := s.Dispatch(ctx, "explode", nil)
	if !dispatched {
		t.Fatal("not dispatched")
	}
	if err != boom {
		t.Fatalf("err == %v", err)
	}
}

func TestDispatchAsync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	released := make(chan bool)

	conf := testConf()
	conf.Actions = map[string]ActionFunc{
		"addLater": func(ctx context.Context, s *Store, payload interface{}) error {
			go func() {
				<-released
				s.Commit(ctx, "ADD", payload)
			}()
			return nil
		},
	}

	s, err := NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	if dispatched, err := s.Dispatch(ctx, "addLater", "x"); err != nil {
		t.Fatal(err)
	} else if !dispatched {
		t.Fatal("not dispatched")
	}

	// The action hasn't committed yet.
	if js := JS(s.Get("items")); js != `[]` {
		t.Fatalf("items == %s before the commit", js)
	}

	close(released)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if js := JS(s.Get("items")); js == `["x"]` {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("items == %s after the commit", JS(s.Get("items")))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCommitMutationError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")

	conf := testConf()
	conf.Mutations["explode"] = func(ctx context.Context, current State, payload interface{}) (State, error) {
		return nil, boom
	}

	s, err := NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	before := JS(s.Snapshot())

	committed, err := s.Commit(ctx, "explode", nil)
	if !committed {
		t.Fatal("lookup should have succeeded")
	}
	if err != boom {
		t.Fatalf("err == %v", err)
	}

	if after := JS(s.Snapshot()); after != before {
		t.Fatalf("state changed: %s -> %s", before, after)
	}

	// The status stays InMutation until some later write resets
	// it.
	if s.Status() != InMutation {
		t.Fatalf("status == %s", s.Status())
	}
	if _, err = s.Commit(ctx, "ADD", "a"); err != nil {
		t.Fatal(err)
	}
	if s.Status() != Idle {
		t.Fatalf("status == %s after recovery", s.Status())
	}
}

func TestBadTables(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := testConf()
	conf.Mutations[""] = addMutation

	if _, err := NewStore(ctx, conf); err == nil {
		t.Fatal("empty mutation name accepted")
	}

	conf = testConf()
	conf.Actions = map[string]ActionFunc{"nothing": nil}

	if _, err := NewStore(ctx, conf); err == nil {
		t.Fatal("nil action accepted")
	}
}

func TestListeners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewStore(ctx, testConf())
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu        sync.Mutex
		changes   []string
		mutations []string
	)
	s.OnChange(func(st State) {
		mu.Lock()
		changes = append(changes, JS(st.Copy()["items"]))
		mu.Unlock()
	})
	s.OnMutation(func(name string) {
		mu.Lock()
		mutations = append(mutations, name)
		mu.Unlock()
	})

	if _, err = s.Commit(ctx, "ADD", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Commit(ctx, "ADD", "b"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(mutations) != 2 || mutations[0] != "ADD" || mutations[1] != "ADD" {
		t.Fatalf("mutations == %#v", mutations)
	}
	if len(changes) != 2 || changes[0] != `["a"]` || changes[1] != `["a","b"]` {
		t.Fatalf("changes == %#v", changes)
	}
}

// countingMedium wraps a Medium to count writes.
type countingMedium struct {
	persist.Medium
	writes int
}

func (m *countingMedium) Write(ctx context.Context, key string, data []byte) error {
	m.writes++
	return m.Medium.Write(ctx, key, data)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := persist.NewMem()

	conf := testConf()
	conf.Key = "roundtrip"
	conf.Medium = medium

	s, err := NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = s.Commit(ctx, "ADD", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Commit(ctx, "ADD", "b"); err != nil {
		t.Fatal(err)
	}

	// A fresh store with the same key and medium sees the
	// committed state.
	conf2 := testConf()
	conf2.Key = "roundtrip"
	conf2.Medium = medium

	s2, err := NewStore(ctx, conf2)
	if err != nil {
		t.Fatal(err)
	}

	if js := JS(s2.Get("items")); js != `["a","b"]` {
		t.Fatalf("reloaded items == %s", js)
	}
}

func TestPersistedLoadAvoidsWriteBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := &countingMedium{Medium: persist.NewMem()}
	if err := medium.Medium.Write(ctx, "store", []byte(`{"count":42}`)); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(ctx, &StoreConf{
		State:  State{"count": 0},
		Medium: medium,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Get("count"); got != float64(42) {
		t.Fatalf("count == %#v", got)
	}

	// Loading persisted state shouldn't write it right back.
	if medium.writes != 0 {
		t.Fatalf("%d writes during construction", medium.writes)
	}
}

func TestMalformedPersistedState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := persist.NewMem()
	if err := medium.Write(ctx, "store", []byte(`this is not JSON`)); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(ctx, &StoreConf{
		State:  State{"count": 7},
		Medium: medium,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Initial state survives.
	if got := s.Get("count"); got != 7 {
		t.Fatalf("count == %#v", got)
	}
}

func TestInitServerStateWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	medium := persist.NewMem()
	if err := medium.Write(ctx, "store", []byte(`{"a":"persisted","b":"persisted"}`)); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(ctx, &StoreConf{
		State:  State{"a": "initial", "c": "initial"},
		Medium: medium,
	})
	if err != nil {
		t.Fatal(err)
	}

	s.Init(State{"a": "server"})

	if got := s.Get("a"); got != "server" {
		t.Fatalf("a == %#v", got)
	}
	if got := s.Get("b"); got != "persisted" {
		t.Fatalf("b == %#v", got)
	}
	if got := s.Get("c"); got != "initial" {
		t.Fatalf("c == %#v", got)
	}
}

func TestDirectWriteProceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewStore(ctx, testConf())
	if err != nil {
		t.Fatal(err)
	}

	// Unauthorized, warned about, but never blocked.
	s.Set(State{"likes": "tacos"})

	if got := s.Get("likes"); got != "tacos" {
		t.Fatalf("likes == %#v", got)
	}
}
