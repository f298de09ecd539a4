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

package persist

import (
	"context"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
)

// FileMedium is a primitive Medium that keeps each key in its own
// file under Dir.
//
// Not glamorous or efficient.
type FileMedium struct {
	// Dir is the directory that holds the files.  Created on the
	// first Write if it doesn't exist.
	Dir string
}

// NewFileMedium makes a FileMedium rooted at the given directory.
func NewFileMedium(dir string) *FileMedium {
	return &FileMedium{
		Dir: dir,
	}
}

// filename maps a key to a filename.  The key is path-escaped so a
// key can't wander out of Dir.
func (m *FileMedium) filename(key string) string {
	return filepath.Join(m.Dir, url.PathEscape(key)+".json")
}

func (m *FileMedium) Read(ctx context.Context, key string) ([]byte, bool, error) {
	bs, err := ioutil.ReadFile(m.filename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return bs, true, nil
}

func (m *FileMedium) Write(ctx context.Context, key string, data []byte) error {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(m.filename(key), data, 0644)
}
