package store

import (
	"context"

	"github.com/Comcast/stash/util"
)

// DefaultInterpreters will be used by Compile if given nil
// interpreters.
var DefaultInterpreters = make(InterpretersMap)

// Env is the dynamic environment presented to interpreted table
// functions: current state, payload, getter args, and (for actions) a
// commit function.
type Env map[string]interface{}

// Copy makes a shallow copy of the Env.
func (e Env) Copy() Env {
	acc := make(Env, len(e))
	for k, v := range e {
		acc[k] = v
	}
	return acc
}

// Interpreter can optionally compile and execute code for actions,
// mutations, and getters.
type Interpreter interface {
	// Compile can make something that helps when Exec()ing the
	// code later.
	Compile(ctx context.Context, code interface{}) (interface{}, error)

	// Exec executes the code in the given environment.  The
	// result of a previous Compile() might be provided.
	Exec(ctx context.Context, env Env, code interface{}, compiled interface{}) (interface{}, error)
}

// InterpretersMap maps interpreter names (as used by FuncSources) to
// Interpreters.
type InterpretersMap map[string]Interpreter

func NewInterpretersMap() InterpretersMap {
	return make(InterpretersMap)
}

// FuncSource is source code for one named table function.
type FuncSource struct {
	// Interpreter names the interpreter for Source.
	Interpreter string `json:"interpreter,omitempty" yaml:",omitempty"`

	// Source is the code (in a representation the interpreter
	// understands; typically a string or a map with "code" and
	// "requires" properties).
	Source interface{} `json:"source"`

	// Doc is optional documentation for this function.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`
}

// Copy makes a shallow copy.
func (fs *FuncSource) Copy() *FuncSource {
	if fs == nil {
		return nil
	}
	return &FuncSource{
		Interpreter: fs.Interpreter,
		Source:      fs.Source,
		Doc:         fs.Doc,
	}
}

// compile resolves the interpreter and compiles the source.
func (fs *FuncSource) compile(ctx context.Context, interpreters InterpretersMap) (Interpreter, interface{}, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}

	interpreter, have := interpreters[fs.Interpreter]
	if !have {
		return nil, nil, InterpreterNotFound
	}

	compiled, err := interpreter.Compile(ctx, fs.Source)
	if err != nil {
		return nil, nil, err
	}

	return interpreter, compiled, nil
}

// StoreSource is a serializable description of a store: doc, key,
// initial state, and action/mutation/getter sources.
//
// A StoreSource should be Compiled to get a StoreConf.
type StoreSource struct {
	// Name is the generic name for this store.  Something like
	// "shopping-cart".
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// Doc is general documentation about how this store is meant
	// to be used.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Key is the persistence key.  See StoreConf.Key.
	Key string `json:"key,omitempty" yaml:",omitempty"`

	// State is the initial state.
	State State `json:"state,omitempty" yaml:",omitempty"`

	Actions   map[string]*FuncSource `json:"actions,omitempty" yaml:",omitempty"`
	Mutations map[string]*FuncSource `json:"mutations,omitempty" yaml:",omitempty"`
	Getters   map[string]*FuncSource `json:"getters,omitempty" yaml:",omitempty"`
}

// Copy makes a mostly shallow copy of the StoreSource.
func (ss *StoreSource) Copy() *StoreSource {
	if ss == nil {
		return nil
	}
	acc := &StoreSource{
		Name:  ss.Name,
		Doc:   ss.Doc,
		Key:   ss.Key,
		State: ss.State.Copy(),
	}
	if ss.Actions != nil {
		acc.Actions = make(map[string]*FuncSource, len(ss.Actions))
		for name, fs := range ss.Actions {
			acc.Actions[name] = fs.Copy()
		}
	}
	if ss.Mutations != nil {
		acc.Mutations = make(map[string]*FuncSource, len(ss.Mutations))
		for name, fs := range ss.Mutations {
			acc.Mutations[name] = fs.Copy()
		}
	}
	if ss.Getters != nil {
		acc.Getters = make(map[string]*FuncSource, len(ss.Getters))
		for name, fs := range ss.Getters {
			acc.Getters[name] = fs.Copy()
		}
	}
	return acc
}

// Compile turns the StoreSource into a StoreConf whose table
// functions wrap interpreter executions.
//
// The given interpreters default to DefaultInterpreters.  The
// returned conf has no Medium; the caller supplies one (if wanted)
// before NewStore.
func (ss *StoreSource) Compile(ctx context.Context, interpreters InterpretersMap) (*StoreConf, error) {
	conf := &StoreConf{
		State:     ss.State.Copy(),
		Key:       ss.Key,
		Actions:   make(map[string]ActionFunc, len(ss.Actions)),
		Mutations: make(map[string]MutationFunc, len(ss.Mutations)),
		Getters:   make(map[string]GetterFunc, len(ss.Getters)),
	}

	for name, src := range ss.Mutations {
		interpreter, compiled, err := src.compile(ctx, interpreters)
		if err != nil {
			return nil, err
		}
		name, src := name, src
		conf.Mutations[name] = func(ctx context.Context, current State, payload interface{}) (State, error) {
			env := Env{
				"state":   map[string]interface{}(current),
				"payload": payload,
			}
			x, err := interpreter.Exec(ctx, env, src.Source, compiled)
			if err != nil {
				return nil, err
			}
			return asPartialState(name, x)
		}
	}

	for name, src := range ss.Actions {
		interpreter, compiled, err := src.compile(ctx, interpreters)
		if err != nil {
			return nil, err
		}
		name, src := name, src
		conf.Actions[name] = func(ctx context.Context, s *Store, payload interface{}) error {
			env := Env{
				"state":   map[string]interface{}(s.Snapshot()),
				"payload": payload,
				"commit": func(mutation string, p interface{}) bool {
					committed, err := s.Commit(ctx, mutation, p)
					if err != nil {
						util.Logf(`action "%s" commit "%s" error: %s`, name, mutation, err)
						return false
					}
					return committed
				},
			}
			_, err := interpreter.Exec(ctx, env, src.Source, compiled)
			return err
		}
	}

	for name, src := range ss.Getters {
		interpreter, compiled, err := src.compile(ctx, interpreters)
		if err != nil {
			return nil, err
		}
		name, src := name, src
		conf.Getters[name] = func(s *Store, args ...interface{}) interface{} {
			env := Env{
				"state": map[string]interface{}(s.Snapshot()),
				"args":  args,
			}
			// Getters have no caller-supplied context.
			x, err := interpreter.Exec(context.Background(), env, src.Source, compiled)
			if err != nil {
				util.Logf(`getter "%s" error: %s`, name, err)
				return nil
			}
			return x
		}
	}

	return conf, nil
}

// asPartialState insists that an interpreted mutation's result is a
// partial state (or nothing).
func asPartialState(name string, x interface{}) (State, error) {
	switch vv := x.(type) {
	case nil:
		return NewState(), nil
	case map[string]interface{}:
		return State(vv), nil
	case State:
		return vv, nil
	default:
		return nil, &BadMutationResult{Name: name, Result: x}
	}
}
