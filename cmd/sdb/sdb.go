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

// Package main is a command-line store debugger in the spirit of gdb.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strings"

	"github.com/Comcast/stash/interpreters"
	"github.com/Comcast/stash/store"
	"github.com/Comcast/stash/util"

	"github.com/jsccast/yaml"
)

type Opts struct {
	storeDir string
	source   string
	echo     bool
}

func main() {

	opts := &Opts{}
	flag.StringVar(&opts.storeDir, "s", "stores", "store source directory")
	flag.StringVar(&opts.source, "f", "", "store source to load at start")
	flag.BoolVar(&opts.echo, "e", false, "echo input")
	flag.Parse()

	if err := opts.run(); err != nil {
		panic(err)
	}
}

func (opts *Opts) run() error {

	in := os.Stdin
	w := os.Stdout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := NewHost(opts.storeDir)
	if err != nil {
		return err
	}

	if opts.source != "" {
		if err = h.LoadSource(ctx, opts.source); err != nil {
			return err
		}
	}

	var (
		source = regexp.MustCompile("^source +(.*)")

		dispatch = regexp.MustCompile("^dispatch +([-a-zA-Z0-9_]+)( +(.*))?$")

		commit = regexp.MustCompile("^commit +([-a-zA-Z0-9_]+)( +(.*))?$")

		get = regexp.MustCompile("^get( +([-a-zA-Z0-9_]+))?$")

		initialize = regexp.MustCompile("^init +(.*)")

		set = regexp.MustCompile("^set +(.*)")

		status = regexp.MustCompile("^status")

		print = regexp.MustCompile("^print")

		help = regexp.MustCompile("^(help|h|\\?)")

		save = regexp.MustCompile("^save +(.*)")

		load = regexp.MustCompile("^load +(.*)")

		debug = regexp.MustCompile("^debug(ging)? (on|off)")

		outputPrefix = "# "

		say = func(format string, args ...interface{}) {
			fmt.Fprintf(w, outputPrefix+format+"\n", args...)
		}

		protest = func(format string, args ...interface{}) {
			say("error: "+format, args...)
		}

		parse = func(js string) (interface{}, bool) {
			if js == "" {
				return nil, true
			}
			var x interface{}
			if err := json.Unmarshal([]byte(js), &x); err != nil {
				protest("couldn't parse payload %s", js)
				return nil, false
			}
			return x, true
		}
	)

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		if opts.echo {
			fmt.Println(line)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		var ss []string

		if ss = help.FindStringSubmatch(line); 0 < len(ss) {
			for _, s := range strings.Split(doc(), "\n") {
				say("%s", s)
			}
			continue
		}
		if ss = source.FindStringSubmatch(line); 0 < len(ss) {
			filename := ss[1]
			if err = h.LoadSource(ctx, filename); err != nil {
				protest("couldn't load store source %s: %s", filename, err)
				continue
			}
			say("store '%s' ready", h.Source.Name)
			continue
		}

		if h.Store == nil {
			protest("no store (use 'source FILENAME')")
			continue
		}

		if ss = dispatch.FindStringSubmatch(line); 0 < len(ss) {
			payload, ok := parse(ss[3])
			if !ok {
				continue
			}
			dispatched, err := h.Store.Dispatch(ctx, ss[1], payload)
			if err != nil {
				protest("dispatch failed: %s", err)
				continue
			}
			if !dispatched {
				protest("unknown action '%s'", ss[1])
				continue
			}
			say("state %s", JS(h.Store.Snapshot()))
			continue
		}
		if ss = commit.FindStringSubmatch(line); 0 < len(ss) {
			payload, ok := parse(ss[3])
			if !ok {
				continue
			}
			committed, err := h.Store.Commit(ctx, ss[1], payload)
			if err != nil {
				protest("commit failed: %s", err)
				continue
			}
			if !committed {
				protest("unknown mutation '%s'", ss[1])
				continue
			}
			say("state %s", JS(h.Store.Snapshot()))
			continue
		}
		if ss = get.FindStringSubmatch(line); 0 < len(ss) {
			say("%s", JS(h.Store.Get(ss[2])))
			continue
		}
		if ss = initialize.FindStringSubmatch(line); 0 < len(ss) {
			x, ok := parse(ss[1])
			if !ok {
				continue
			}
			m, is := x.(map[string]interface{})
			if !is {
				protest("init wants a JSON object")
				continue
			}
			h.Store.Init(store.State(m))
			say("state %s", JS(h.Store.Snapshot()))
			continue
		}
		if ss = set.FindStringSubmatch(line); 0 < len(ss) {
			x, ok := parse(ss[1])
			if !ok {
				continue
			}
			m, is := x.(map[string]interface{})
			if !is {
				protest("set wants a JSON object")
				continue
			}
			h.Store.Set(store.State(m))
			say("state %s", JS(h.Store.Snapshot()))
			continue
		}
		if ss = status.FindStringSubmatch(line); 0 < len(ss) {
			say("%s", h.Store.Status())
			continue
		}
		if ss = print.FindStringSubmatch(line); 0 < len(ss) {
			say("store:  %s", h.Source.Name)
			say("key:    %s", h.Store.Key())
			say("status: %s", h.Store.Status())
			say("state:  %s", JS(h.Store.Snapshot()))
			continue
		}
		if ss = save.FindStringSubmatch(line); 0 < len(ss) {
			filename := ss[1]
			js, err := json.MarshalIndent(h.Store.Snapshot(), "  ", "  ")
			if err != nil {
				return err // Internal error
			}
			if err = ioutil.WriteFile(filename, js, 0644); err != nil {
				protest("writing file: %s", err)
			}
			continue
		}
		if ss = load.FindStringSubmatch(line); 0 < len(ss) {
			filename := ss[1]
			js, err := ioutil.ReadFile(filename)
			if err != nil {
				protest("reading file '%s': %s", filename, err)
				continue
			}
			var st store.State
			if err = json.Unmarshal(js, &st); err != nil {
				protest("loading state: %s", err)
				continue
			}
			h.Store.Init(st)
			say("state %s", JS(h.Store.Snapshot()))
			continue
		}
		if ss = debug.FindStringSubmatch(line); 0 < len(ss) {
			switch ss[2] {
			case "on":
				util.Logging = true
				say("debugging")
			case "off":
				util.Logging = false
				say("not debugging")
			}
			continue
		}

		protest("unsupported command: %s", line)
	}
}

// Host holds the current store and its source.
type Host struct {
	Interpreters store.InterpretersMap
	Source       *store.StoreSource
	Store        *store.Store

	storeDir string
}

func NewHost(storeDir string) (*Host, error) {
	return &Host{
		Interpreters: interpreters.Standard(),
		storeDir:     storeDir,
	}, nil
}

// LoadSource reads a store source (JSON or YAML) from the host's
// store directory, compiles it, and makes a fresh store.
func (h *Host) LoadSource(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("store source needs a name")
	}
	filename := name
	if !strings.HasPrefix(filename, "/") {
		filename = h.storeDir + "/" + filename
	}
	src, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	if len(src) == 0 {
		return fmt.Errorf("empty store source")
	}
	var ss store.StoreSource
	switch src[0] {
	case '{':
		err = json.Unmarshal(src, &ss)
	default:
		err = yaml.Unmarshal(src, &ss)
	}
	if err != nil {
		return err
	}
	conf, err := ss.Compile(ctx, h.Interpreters)
	if err != nil {
		return err
	}
	s, err := store.NewStore(ctx, conf)
	if err != nil {
		return err
	}
	h.Source = &ss
	h.Store = s
	return nil
}

func doc() string {
	return `
  source FILENAME            Load a store source (JSON or YAML) and make a store
  dispatch NAME [PAYLOAD]    Dispatch the action with the given name
  commit NAME [PAYLOAD]      Commit the mutation with the given name
  get [KEY]                  Print a state property or getter value
  init STATE                 Merge the given JSON object as server state
  set STATE                  Write the given JSON object directly
  status                     Print the store's status
  print                      Print the store's key, status, and state
  save FILENAME              Save the state to this file
  load FILENAME              Load state from this file (via init)
  debug on/off               Toggle verbose logging
  help                       Show this documentation
`
}

// JS serializes its argument as JSON.
func JS(x interface{}) string {
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}
