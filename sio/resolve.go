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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strings"

	"github.com/Comcast/stash/interpreters/goja"
	"github.com/Comcast/stash/store"

	"github.com/jsccast/yaml"
)

var (
	interpreter = goja.NewInterpreter()

	// Interpreters are the standard table interpreters.
	Interpreters = store.InterpretersMap{
		"goja":           interpreter,
		"ecmascript":     interpreter,
		"ecmascript-5.1": interpreter,
	}
)

// ResolveStoreSource attempts to find and compile a store source.
//
// A *store.StoreSource is compiled directly.  A string is treated as
// a 'file://' URL (with support for relative paths), an 'http(s)://'
// URL, or a literal document.  Anything else is converted to a
// StoreSource via JSON.  A document starting with '{' is parsed as
// JSON; otherwise as YAML.
func ResolveStoreSource(ctx context.Context, source interface{}) (*store.StoreSource, *store.StoreConf, error) {
	var body []byte

	switch vv := source.(type) {
	case *store.StoreSource:
		conf, err := vv.Compile(ctx, Interpreters)
		return vv, conf, err
	case string:
		var err error
		if strings.HasPrefix(vv, "file://") {
			filename := vv[7:]
			if body, err = ioutil.ReadFile(filename); err != nil {
				return nil, nil, err
			}
		} else if strings.HasPrefix(vv, "http://") || strings.HasPrefix(vv, "https://") {
			resp, err := http.Get(vv)
			if err != nil {
				return nil, nil, err
			}
			body, err = ioutil.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, nil, err
			}
		} else {
			body = []byte(vv)
		}
	default:
		js, err := json.Marshal(&source)
		if err != nil {
			return nil, nil, err
		}
		body = js
	}

	if len(body) == 0 {
		return nil, nil, fmt.Errorf("store source is empty")
	}

	var src store.StoreSource
	var err error
	switch body[0] {
	case '{':
		err = json.Unmarshal(body, &src)
	default:
		err = yaml.Unmarshal(body, &src)
	}
	if err != nil {
		return nil, nil, err
	}

	conf, err := src.Compile(ctx, Interpreters)
	if err != nil {
		log.Printf("StoreSource.Compile error: %v", err)
		return nil, nil, err
	}

	return &src, conf, nil
}
