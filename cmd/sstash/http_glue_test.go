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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Comcast/stash/store"
)

func TestHTTPGlue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello")
	}))
	defer ts.Close()

	conf := &store.StoreConf{
		Mutations: map[string]store.MutationFunc{
			"HTTP_RESPONSE": func(ctx context.Context, current store.State, payload interface{}) (store.State, error) {
				resp, is := payload.(map[string]interface{})
				if !is {
					return nil, fmt.Errorf("payload %T", payload)
				}
				return store.State{"body": resp["body"]}, nil
			},
		},
	}

	st, err := store.NewStore(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]interface{}{
		"request": map[string]interface{}{
			"url": ts.URL,
		},
	}

	if err = httpAction(ctx, st, payload); err != nil {
		t.Fatal(err)
	}

	if got := st.Get("body"); got != "hello" {
		t.Fatalf("body == %#v", got)
	}
}
