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
	"encoding/json"
	"fmt"

	"github.com/Comcast/stash/store"
)

// httpAction is the built-in "http" action given to every store this
// service hosts.
//
// The payload should look like
//
//	{"request":{"url":...,"method":...},"commit":"MUTATION"}
//
// The request is performed, and the response is committed (as the
// payload) to the named mutation, which defaults to "HTTP_RESPONSE".
func httpAction(ctx context.Context, st *store.Store, payload interface{}) error {
	m, is := payload.(map[string]interface{})
	if !is {
		return fmt.Errorf("HTTP error %s (%T) isn't a %T", JS(payload), payload, m)
	}

	request, have := m["request"]
	if !have {
		return fmt.Errorf("HTTP error no 'request' in %s", JS(m))
	}

	mutation := "HTTP_RESPONSE"
	if x, have := m["commit"]; have {
		name, is := x.(string)
		if !is {
			return fmt.Errorf("HTTP error 'commit' %s isn't a mutation name", JS(x))
		}
		mutation = name
	}

	var r HTTPRequest
	{
		// Sorry.
		js, err := json.Marshal(&request)
		if err != nil {
			return fmt.Errorf("httpAction Marshal error %s", err)
		}
		if err = json.Unmarshal(js, &r); err != nil {
			return fmt.Errorf("httpAction Unmarshal error %s", err)
		}
	}

	return r.Do(ctx, func(ctx context.Context, resp *HTTPResponse) error {
		resp.From = "http" // me

		// Again: sorry.
		js, err := json.Marshal(&resp)
		if err != nil {
			return fmt.Errorf("httpAction result Marshal error %s", err)
		}
		var x map[string]interface{}
		if err = json.Unmarshal(js, &x); err != nil {
			return fmt.Errorf("httpAction result Unmarshal error %s", err)
		}

		committed, err := st.Commit(ctx, mutation, x)
		if err != nil {
			return fmt.Errorf("httpAction Commit error %s", err)
		}
		if !committed {
			return fmt.Errorf("httpAction unknown mutation '%s'", mutation)
		}

		return nil
	})
}
