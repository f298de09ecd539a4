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

// Package bolt provides a persist.Medium backed by bbolt.
package bolt

import (
	"context"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket holds all store entries.  One bucket, one key per
// store.
var DefaultBucket = []byte("stores")

// Medium is a persist.Medium that keeps state in a bbolt file.
type Medium struct {
	Debug    bool
	filename string
	bucket   []byte
	db       *bolt.DB
}

// NewMedium makes a Medium for the given filename.
//
// Call Open before use.
func NewMedium(filename string) (*Medium, error) {
	return &Medium{
		filename: filename,
		bucket:   DefaultBucket,
	}, nil
}

// Open opens the underlying bbolt database.
func (m *Medium) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(m.filename, 0644, opts)
	if err != nil {
		return err
	}
	m.db = db
	return nil
}

// Close closes the underlying bbolt database.
func (m *Medium) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.db.Close()
}

func (m *Medium) logf(format string, args ...interface{}) {
	if m == nil {
		return
	}
	if m.Debug {
		log.Printf("BoltDB "+format, args...)
	}
}

func (m *Medium) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var acc []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		if b == nil {
			return nil
		}
		if bs := b.Get([]byte(key)); bs != nil {
			acc = make([]byte, len(bs))
			copy(acc, bs)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	m.logf("Read %s found %d bytes", key, len(acc))

	if acc == nil {
		return nil, false, nil
	}
	return acc, true, nil
}

func (m *Medium) Write(ctx context.Context, key string, data []byte) error {
	m.logf("Write %s (%d bytes)", key, len(data))

	return m.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(m.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}
