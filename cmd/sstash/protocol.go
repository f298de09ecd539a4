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
	"fmt"

	"github.com/Comcast/stash/sio"
	"github.com/Comcast/stash/store"
)

// SOp is a Service Operation.
//
// Only one of GetSource, GetStores, Add, Rem, or Op should have a
// value.
type SOp struct {
	// GetSource is a utility that reads and compiles a store
	// source.
	GetSource *GetSourceOp `json:"getSource,omitempty" yaml:",omitempty"`

	// GetStores reports the names of the service's stores.
	GetStores *GetStoresOp `json:"getStores,omitempty" yaml:",omitempty"`

	// Add makes a store from a source.
	Add *OpAdd `json:"add,omitempty" yaml:",omitempty"`

	// Rem removes a store from the service.
	Rem *OpRem `json:"rem,omitempty" yaml:",omitempty"`

	// Op applies a store op to a named store.
	Op *StoreOp `json:"op,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

// erred is a utility function to return values to assign to operation
// Error and Err fields.
func erred(err error) (error, string) {
	if err == nil {
		return nil, ""
	}
	return err, err.Error()
}

func (o *SOp) Do(ctx context.Context, s *Service) error {

	s.op(ctx, map[string]interface{}{
		"do": o,
	})

	var err error
	if o.GetSource != nil {
		err = o.GetSource.Do(ctx, s)
	} else if o.GetStores != nil {
		err = o.GetStores.Do(ctx, s)
	} else if o.Add != nil {
		err = o.Add.Do(ctx, s)
	} else if o.Rem != nil {
		err = o.Rem.Do(ctx, s)
	} else if o.Op != nil {
		err = o.Op.Do(ctx, s)
	} else {
		err = fmt.Errorf("not implemented: %s", JS(o))
	}

	if err != nil && o.Error == nil {
		o.Error, o.Err = erred(err)
	}

	s.op(ctx, map[string]interface{}{
		"did": o,
	})

	return o.Error
}

type GetSourceOp struct {
	Name   string             `json:"name"`
	Source *store.StoreSource `json:"source,omitempty" yaml:",omitempty"`
}

func (o *GetSourceOp) Do(ctx context.Context, s *Service) error {
	src, _, err := s.GetSource(ctx, o.Name)
	if err == nil {
		o.Source = src
	}
	return err
}

type GetStoresOp struct {
	Stores []string `json:"stores,omitempty" yaml:",omitempty"`
}

func (o *GetStoresOp) Do(ctx context.Context, s *Service) error {
	o.Stores = s.Stores()
	return nil
}

type OpAdd struct {
	// Oid is the optional operation id.  A "transaction" id.
	Oid string `json:"oid,omitempty" yaml:",omitempty"`

	// Name is the store source name to load and make.
	Name string `json:"name"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpAdd) Do(ctx context.Context, s *Service) error {
	if o.Name == "" {
		return fmt.Errorf("no store name given")
	}
	o.Error, o.Err = erred(s.AddStore(ctx, o.Name))
	return nil
}

type OpRem struct {
	// Oid is the optional operation id.  A "transaction" id.
	Oid string `json:"oid,omitempty" yaml:",omitempty"`

	// Name is the name of the store to remove.
	Name string `json:"name"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *OpRem) Do(ctx context.Context, s *Service) error {
	o.Error, o.Err = erred(s.RemStore(ctx, o.Name))
	return nil
}

// StoreOp applies a store op to a named store.
type StoreOp struct {
	// Store is the name of the target store.
	Store string `json:"store"`

	sio.Op

	// Update will hold the result of applying the op.
	Update *sio.Update `json:"update,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

func (o *StoreOp) Do(ctx context.Context, s *Service) error {
	u, err := s.Apply(ctx, o.Store, &o.Op)
	if err != nil {
		o.Error, o.Err = erred(err)
		return nil
	}
	// Don't echo the op back.
	u.Op = nil
	o.Update = u
	return nil
}
