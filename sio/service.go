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
	"fmt"
	"log"

	"github.com/Comcast/stash/store"
)

// ServiceConf provides some basic Service parameters.
type ServiceConf struct {
	// Id is an optional name for logging.
	Id string

	// HaltOnInputEOF will shut the Loop down when the couplings
	// report that their input is exhausted.
	HaltOnInputEOF bool

	// EmitStateChanges forwards every state change to the output
	// coupling as an Update with State set.
	EmitStateChanges bool

	// EmitMutations forwards every mutation name to the output
	// coupling as an Update with Mutation set.
	EmitMutations bool
}

// Service runs a store against a pair of op/update channels.
type Service struct {
	// Store is the store that ops target.
	Store *store.Store

	// Conf provides some basic Service parameters.
	Conf *ServiceConf

	// Verbose turns on logging.
	Verbose bool

	// in receives all in-bound ops.
	in chan *Op

	// out receives all out-bound updates.
	out chan *Update

	// done is closed by Couplings when their input is closed.
	done chan bool
}

// NewService makes a service with the given configuration and
// couplings.
//
// The coupling's IO() method is called to obtain the service's in/out
// channels, and the store's listeners are wired to the output if the
// configuration asks for that.
func NewService(ctx context.Context, conf *ServiceConf, s *store.Store, couplings Couplings) (*Service, error) {
	in, out, done, err := couplings.IO(ctx)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		conf = &ServiceConf{}
	}
	srv := &Service{
		Store: s,
		Conf:  conf,
		in:    in,
		out:   out,
		done:  done,
	}

	if conf.EmitStateChanges {
		s.OnChange(func(st store.State) {
			srv.emit(ctx, &Update{OK: true, State: st})
		})
	}

	if conf.EmitMutations {
		s.OnMutation(func(name string) {
			srv.emit(ctx, &Update{OK: true, Mutation: name})
		})
	}

	return srv, nil
}

// Logf logs if s.Verbose.
func (s *Service) Logf(format string, args ...interface{}) {
	if !s.Verbose {
		return
	}
	log.Printf(format, args...)
}

// Errorf emits an error update and writes a log line with "ERROR"
// prepended.
func (s *Service) Errorf(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Println("ERROR " + msg)
	s.emit(ctx, &Update{Err: msg})
}

func (s *Service) emit(ctx context.Context, u *Update) {
	select {
	case <-ctx.Done():
	case s.out <- u:
	}
}

// Apply executes a single op against the service's store.
//
// User-code errors are reported in the Update, not returned, so the
// Loop survives them.
func (s *Service) Apply(ctx context.Context, op *Op) *Update {
	u := &Update{Op: op}

	switch {
	case op == nil:
		u.Err = "null op"

	case op.Dispatch != "":
		ok, err := s.Store.Dispatch(ctx, op.Dispatch, op.Payload)
		u.OK = ok
		if err != nil {
			u.Err = err.Error()
		}

	case op.Commit != "":
		ok, err := s.Store.Commit(ctx, op.Commit, op.Payload)
		u.OK = ok
		if err != nil {
			u.Err = err.Error()
		}

	case op.Get != nil:
		u.OK = true
		u.Result = s.Store.Get(*op.Get, op.Args...)

	case op.Init != nil:
		s.Store.Init(store.State(op.Init))
		u.OK = true

	case op.Set != nil:
		s.Store.Set(store.State(op.Set))
		u.OK = true

	default:
		u.Err = "empty op"
	}

	return u
}

// Loop starts the op processing loop in the current goroutine.
//
// This loop calls Apply on each op that arrives via the input
// coupling, and the loop halts when ctx.Done().
func (s *Service) Loop(ctx context.Context) error {
	s.Logf("Service.Loop starting")
LOOP:
	for {
		select {
		case <-s.done:
			if s.Conf.HaltOnInputEOF {
				s.Logf("Service.Loop shutting down (done)")
				break LOOP
			}
		case <-ctx.Done():
			s.Logf("Service.Loop shutting down (ctx.Done)")
			break LOOP
		case op := <-s.in:
			if op == nil {
				break LOOP
			}
			s.Logf("Service.Loop op %s", JS(op))
			s.emit(ctx, s.Apply(ctx, op))
		}
	}

	s.Logf("Service.Loop done")
	return nil
}
