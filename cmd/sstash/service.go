package main

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/Comcast/stash/interpreters/goja"
	"github.com/Comcast/stash/persist"
	"github.com/Comcast/stash/persist/bolt"
	"github.com/Comcast/stash/sio"
	"github.com/Comcast/stash/store"

	"github.com/jsccast/yaml"
)

// Exists is returned by AddStore when a store by that name already
// exists.
var Exists = errors.New("store exists")

type Service struct {
	// Changes receives {"store":NAME,"state":STATE} for every
	// state change.
	Changes chan interface{}
	Errors  chan interface{} // Should be error
	Tracing bool

	ops chan interface{}

	interpreters store.InterpretersMap
	storesDir    string
	medium       *bolt.Medium

	sync.Mutex
	stores  map[string]*store.Store
	sources map[string]*store.StoreSource

	wsClientC chan interface{}
}

func (s *Service) trf(format string, args ...interface{}) {
	if !s.Tracing {
		return
	}
	log.Printf("trace "+format, args...)
}

func NewService(ctx context.Context, storesDir, dbFile, libDir string) (*Service, error) {

	var medium *bolt.Medium
	if dbFile != "" {
		var err error

		if medium, err = bolt.NewMedium(dbFile); err != nil {
			return nil, err
		}

		if err = medium.Open(ctx); err != nil {
			return nil, err
		}

		go func() {
			<-ctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := medium.Close(ctx); err != nil {
				log.Printf("Service.medium.Close error %s", err)
				// Race if we try to use s.Errors.
			}
		}()
	}

	s := Service{
		storesDir: storesDir,
		medium:    medium,
		stores:    make(map[string]*store.Store, 32),
		sources:   make(map[string]*store.StoreSource, 32),
	}

	gi := goja.NewInterpreter()
	gi.LibraryProvider = goja.MakeFileLibraryProvider(libDir)
	s.interpreters = store.InterpretersMap{
		"goja": gi,
	}

	return &s, nil
}

func (s *Service) Close(ctx context.Context) error {
	if s.medium == nil {
		return nil
	}
	return s.medium.Close(ctx)
}

func (s *Service) op(ctx context.Context, x interface{}) {
	if s.ops != nil {
		select {
		case s.ops <- Copy(x):
		default:
			log.Printf("Service ops chan blocked")
		}
	}
}

// GetSource reads, parses, and compiles a store source from the
// service's stores directory.
func (s *Service) GetSource(ctx context.Context, name string) (*store.StoreSource, *store.StoreConf, error) {

	if name == "" {
		return nil, nil, fmt.Errorf("store source needs a name")
	}
	src, err := ioutil.ReadFile(s.storesDir + "/" + name + ".yaml")
	if err != nil {
		return nil, nil, err
	}
	var ss store.StoreSource
	if err = yaml.Unmarshal(src, &ss); err != nil {
		return nil, nil, err
	}

	conf, err := ss.Compile(ctx, s.interpreters)
	if err != nil {
		return nil, nil, err
	}

	return &ss, conf, nil
}

// AddStore makes (or revives) a store from the source with the given
// name.
//
// The store gets the service's storage medium, so a previously
// persisted state (keyed by the store's persistence key) comes back.
func (s *Service) AddStore(ctx context.Context, name string) error {
	s.Lock()
	_, have := s.stores[name]
	s.Unlock()
	if have {
		return Exists
	}

	src, conf, err := s.GetSource(ctx, name)
	if err != nil {
		return err
	}

	if conf.Key == "" {
		conf.Key = name
	}
	if s.medium != nil {
		conf.Medium = s.medium
	}

	// Every store gets the "http" action unless its source
	// provides one.
	if _, have := conf.Actions["http"]; !have {
		if conf.Actions == nil {
			conf.Actions = make(map[string]store.ActionFunc, 1)
		}
		conf.Actions["http"] = httpAction
	}

	st, err := store.NewStore(ctx, conf)
	if err != nil {
		return err
	}

	st.OnChange(func(state store.State) {
		s.change(ctx, name, state)
	})

	s.Lock()
	s.stores[name] = st
	s.sources[name] = src
	s.Unlock()

	return nil
}

// RemStore removes a store from the service.
//
// The persisted state (if any) stays in storage.
func (s *Service) RemStore(ctx context.Context, name string) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.stores[name]; !have {
		return fmt.Errorf("store '%s' not found", name)
	}
	delete(s.stores, name)
	delete(s.sources, name)
	return nil
}

// Store returns the store with the given name.
func (s *Service) Store(name string) (*store.Store, bool) {
	s.Lock()
	defer s.Unlock()
	st, have := s.stores[name]
	return st, have
}

// Stores returns the names of the service's stores.
func (s *Service) Stores() []string {
	s.Lock()
	defer s.Unlock()
	acc := make([]string, 0, len(s.stores))
	for name := range s.stores {
		acc = append(acc, name)
	}
	return acc
}

// Apply executes a store op against the named store.
func (s *Service) Apply(ctx context.Context, name string, op *sio.Op) (*sio.Update, error) {
	s.trf("Service.Apply %s %s", name, JS(op))

	st, have := s.Store(name)
	if !have {
		return nil, fmt.Errorf("store '%s' not found", name)
	}

	u := &sio.Update{Op: op}

	switch {
	case op.Dispatch != "":
		ok, err := st.Dispatch(ctx, op.Dispatch, op.Payload)
		u.OK = ok
		if err != nil {
			u.Err = err.Error()
		}
	case op.Commit != "":
		ok, err := st.Commit(ctx, op.Commit, op.Payload)
		u.OK = ok
		if err != nil {
			u.Err = err.Error()
		}
	case op.Get != nil:
		u.OK = true
		u.Result = st.Get(*op.Get, op.Args...)
	case op.Init != nil:
		st.Init(store.State(op.Init))
		u.OK = true
	case op.Set != nil:
		st.Set(store.State(op.Set))
		u.OK = true
	default:
		u.Err = "empty op"
	}

	return u, nil
}

// change reports a state change to the Changes channel and to any
// WebSocket connections.
func (s *Service) change(ctx context.Context, name string, state store.State) {
	x := map[string]interface{}{
		"store": name,
		"state": map[string]interface{}(state),
	}
	if s.Changes != nil {
		select {
		case s.Changes <- x:
		default:
			log.Printf("Service.change Changes chan blocked")
		}
	}
	if s.wsClientC != nil {
		select {
		case s.wsClientC <- x:
		default:
			log.Printf("Service.change wsClientC blocked")
		}
	}
	s.op(ctx, x)
}

func (s *Service) err(err error) {
	// ToDo: Possibly send errors back to the service as updates.

	if s.Errors != nil {
		s.Errors <- err
	} else {
		log.Println(err)
	}
}

// Medium exposes the service's storage (for tests).
func (s *Service) Medium() persist.Medium {
	if s.medium == nil {
		return nil
	}
	return s.medium
}
