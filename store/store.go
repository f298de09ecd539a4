// Package store provides a guarded, observable state container: a
// single source of truth that only changes through named, auditable
// mutations.
//
// The discipline is "actions dispatch, mutations commit, state is
// replaced, subscribers are notified".  An action is a named function
// that may do asynchronous work and eventually Commits; a mutation is
// a named function that returns a partial state to merge; a getter is
// a named read-only accessor.  A store owns a reactive cell
// (observe.Observable) and optionally keeps a persistence medium
// (persist.Medium) synchronized with every state replacement.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Comcast/stash/observe"
	"github.com/Comcast/stash/persist"
	"github.com/Comcast/stash/util"
)

// DefaultKey is the StoreKey used when a StoreConf doesn't provide
// one.
var DefaultKey = "store"

// ActionFunc is a named action: it receives the store and a payload,
// is allowed to do asynchronous work (on its own goroutines), and is
// expected to eventually call Commit.
//
// An action has no state-result contract.  It communicates outcomes
// only via Commit.  The returned error covers synchronous failure
// only; Dispatch does not await asynchronous work.
type ActionFunc func(ctx context.Context, s *Store, payload interface{}) error

// MutationFunc is a named mutation: it receives the current state and
// a payload and returns a partial state, which Commit merges shallowly
// over the current state.
//
// A mutation must not modify the given State in place.
type MutationFunc func(ctx context.Context, current State, payload interface{}) (State, error)

// GetterFunc is a named read-only accessor.  It receives the store
// (so it can call Get itself) and any extra arguments given to Get.
type GetterFunc func(s *Store, args ...interface{}) interface{}

// StoreConf configures a Store.
//
// All fields are optional.  Tables are fixed at construction: they
// are never reassigned afterward (only the State is replaced).
type StoreConf struct {
	// State is the initial state.
	State State `json:"state,omitempty" yaml:",omitempty"`

	// Key identifies where persisted state lives in the Medium.
	// Defaults to DefaultKey.
	Key string `json:"key,omitempty" yaml:",omitempty"`

	Actions   map[string]ActionFunc   `json:"-" yaml:"-"`
	Mutations map[string]MutationFunc `json:"-" yaml:"-"`
	Getters   map[string]GetterFunc   `json:"-" yaml:"-"`

	// Medium, if not nil, keeps a persisted copy of state
	// synchronized with every write.
	Medium persist.Medium `json:"-" yaml:"-"`
}

// Store is a guarded, observable, optionally persisted state
// container.
type Store struct {
	conf *StoreConf
	key  string

	// cell is the store's owned reactive primitive.  The cell's
	// unguarded Set is not exposed: all writes go through the
	// store's own write path.
	cell *observe.Observable

	medium persist.Medium

	// pctx is the context given at construction, used for
	// persistence writes triggered by the cell's listener.
	pctx context.Context

	// commitMu serializes read-merge-write sequences so that one
	// commit's merge can't interleave with another's.
	commitMu sync.Mutex

	mu         sync.Mutex
	status     Status
	onChange   []func(State)
	onMutation []func(name string)
}

// NewStore makes a Store from the given configuration.
//
// If the conf includes a Medium, any previously persisted state under
// the conf's Key is loaded and merged over the initial state before
// the persistence listener is attached, so the data that was just
// read isn't immediately written back.  Unparseable persisted data is
// treated as absent.
func NewStore(ctx context.Context, conf *StoreConf) (*Store, error) {
	if conf == nil {
		conf = &StoreConf{}
	}

	if err := checkTables(conf); err != nil {
		return nil, err
	}

	key := conf.Key
	if key == "" {
		key = DefaultKey
	}

	initial := conf.State
	if initial == nil {
		initial = NewState()
	}

	s := &Store{
		conf:   conf,
		key:    key,
		cell:   observe.New(initial.Copy()),
		medium: conf.Medium,
		pctx:   ctx,
	}

	if s.medium != nil {
		if persisted, have := s.load(ctx); have {
			s.setStatus(InMutation)
			s.write(s.Snapshot().Merge(persisted))
		}
		s.cell.On(func(c observe.Change) {
			s.save(s.pctx, c.Current)
		})
	}

	return s, nil
}

// checkTables rejects table entries with empty names or nil
// functions.
func checkTables(conf *StoreConf) error {
	for name, f := range conf.Actions {
		if name == "" || f == nil {
			return &BadTableEntry{Table: "actions", Name: name}
		}
	}
	for name, f := range conf.Mutations {
		if name == "" || f == nil {
			return &BadTableEntry{Table: "mutations", Name: name}
		}
	}
	for name, f := range conf.Getters {
		if name == "" || f == nil {
			return &BadTableEntry{Table: "getters", Name: name}
		}
	}
	return nil
}

// Key returns the store's persistence key.
func (s *Store) Key() string {
	return s.key
}

// Status returns the status of the immediately preceding write.  See
// the Status type.
func (s *Store) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	return st
}

func (s *Store) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Snapshot returns the full current state.
//
// The snapshot is read-only by convention, not enforcement: callers
// should not modify it.
func (s *Store) Snapshot() State {
	return State(s.cell.Get())
}

// Get returns the value for the given key.
//
// With an empty key, Get returns the full state snapshot.  Otherwise
// a getter with the given name wins over a state field of the same
// name, and the extra args are passed to the getter.  With no getter,
// Get returns the state's value at that key directly.
func (s *Store) Get(key string, args ...interface{}) interface{} {
	if key == "" {
		return s.Snapshot()
	}
	if g, have := s.conf.Getters[key]; have {
		return g(s, args...)
	}
	return s.Snapshot()[key]
}

// HasAction reports whether the store's action table has the given
// name.
func (s *Store) HasAction(name string) bool {
	_, have := s.conf.Actions[name]
	return have
}

// HasMutation reports whether the store's mutation table has the
// given name.
//
// Lets a caller distinguish "unknown mutation" from a mutation that
// committed a no-op, which Commit's boolean alone conflates.
func (s *Store) HasMutation(name string) bool {
	_, have := s.conf.Mutations[name]
	return have
}

// HasGetter reports whether the store's getter table has the given
// name.
func (s *Store) HasGetter(name string) bool {
	_, have := s.conf.Getters[name]
	return have
}

// OnChange registers a listener that hears the new full state after
// every write, after the cell's own observers (which include the
// persistence listener).
//
// These listeners are the store's auxiliary "stateChange"
// notification channel: an explicit observer list instead of a
// process-wide event bus.
func (s *Store) OnChange(f func(State)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, f)
	s.mu.Unlock()
}

// OnMutation registers a listener that hears each mutation's name
// when it is committed, before the mutation runs.
func (s *Store) OnMutation(f func(name string)) {
	s.mu.Lock()
	s.onMutation = append(s.onMutation, f)
	s.mu.Unlock()
}

func (s *Store) changeListeners() []func(State) {
	s.mu.Lock()
	fs := make([]func(State), len(s.onChange))
	copy(fs, s.onChange)
	s.mu.Unlock()
	return fs
}

func (s *Store) mutationListeners() []func(string) {
	s.mu.Lock()
	fs := make([]func(string), len(s.onMutation))
	copy(fs, s.onMutation)
	s.mu.Unlock()
	return fs
}

// write is the authorized write path.  Only the store's own
// operations reach it; external code goes through Set, which warns.
//
// Within one write, the cell's observers (the persistence listener
// included), then the store's stateChange listeners, then the status
// reset happen synchronously and in that order before write returns.
func (s *Store) write(newState State) {
	s.cell.Set(newState)
	for _, f := range s.changeListeners() {
		f(newState)
	}
	s.setStatus(Idle)
}

// Set replaces the store's state directly.
//
// Discouraged for external use: state should change via Commit.  If
// the store's status is Idle at call time, this is an unauthorized
// direct write, and Set says so (non-fatally, via util.Warnf).  The
// write proceeds regardless.
func (s *Store) Set(newState State) {
	if s.Status() == Idle {
		util.Warnf(`direct write to store "%s" outside any mutation`, s.key)
	}
	s.write(newState)
}

// Init merges the given state, typically a server-rendered snapshot,
// over the current state at application bootstrap.
//
// Server state wins: a key present both here and in a persisted
// snapshot loaded at construction ends up with the server's value.
// Returns the store to support chaining.
func (s *Store) Init(serverState State) *Store {
	s.commitMu.Lock()
	s.setStatus(InMutation)
	s.write(s.Snapshot().Merge(serverState))
	s.commitMu.Unlock()
	return s
}

// Dispatch invokes the named action with the given payload.
//
// An unknown name is reported and absorbed: Dispatch returns false
// with no error and no state change.  Otherwise Dispatch returns true
// along with whatever error the action itself returned synchronously.
// Dispatch does not await asynchronous work: the boolean says the
// action was invoked, not that it (ever) commits.
func (s *Store) Dispatch(ctx context.Context, name string, payload interface{}) (bool, error) {
	a, have := s.conf.Actions[name]
	if !have {
		err := &UnknownAction{Key: s.key, Name: name}
		util.Logf("error: %s", err.Error())
		return false, nil
	}

	s.setStatus(InAction)

	return true, a(ctx, s, payload)
}

// Commit invokes the named mutation with the current state and the
// given payload, then merges the returned partial state shallowly
// over the current state and writes the result.
//
// An unknown name is reported and absorbed: Commit returns false with
// no error and no state change.  A mutation's own error is never
// absorbed: Commit returns (true, err), and the status is left at
// InMutation until some later write resets it.
func (s *Store) Commit(ctx context.Context, name string, payload interface{}) (bool, error) {
	m, have := s.conf.Mutations[name]
	if !have {
		err := &UnknownMutation{Key: s.key, Name: name}
		util.Logf("error: %s", err.Error())
		return false, nil
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.setStatus(InMutation)

	for _, f := range s.mutationListeners() {
		f(name)
	}

	current := s.Snapshot()
	partial, err := m(ctx, current, payload)
	if err != nil {
		return true, err
	}

	s.write(current.Merge(partial))

	return true, nil
}

// load reads and parses previously persisted state.  Unreadable or
// unparseable data is treated as absent.
func (s *Store) load(ctx context.Context) (State, bool) {
	bs, have, err := s.medium.Read(ctx, s.key)
	if err != nil {
		util.Logf(`store "%s" read error: %s`, s.key, err)
		return nil, false
	}
	if !have {
		return nil, false
	}

	var st State
	if err = json.Unmarshal(bs, &st); err != nil {
		util.Logf(`store "%s" has unparseable persisted state: %s`, s.key, err)
		return nil, false
	}

	return st, true
}

// save serializes the given state and writes it to the medium.
// Best-effort: failures are reported but not fatal.
func (s *Store) save(ctx context.Context, st map[string]interface{}) {
	js, err := json.Marshal(st)
	if err != nil {
		util.Logf(`store "%s" marshal error: %s`, s.key, err)
		return
	}
	if err = s.medium.Write(ctx, s.key, js); err != nil {
		util.Logf(`store "%s" write error: %s`, s.key, err)
	}
}
