// A simple, single-store process that reads ops from stdin and writes
// results to stdout.

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

	"github.com/Comcast/stash/interpreters/goja"
	"github.com/Comcast/stash/persist"
	"github.com/Comcast/stash/store"

	"github.com/jsccast/yaml"
)

func main() {

	var (
		sourceFilename = flag.String("f", "", "store source filename (YAML)")
		stateDir       = flag.String("state", "", "optional directory for state persistence")

		diag = flag.Bool("d", false, "print state after each change")
		echo = flag.Bool("e", false, "echo input ops")

		libDir = flag.String("i", ".", "directory containing libraries")
	)

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Our sources all use the Goja-based interpreter (and only
	// that one).
	gi := goja.NewInterpreter()
	gi.LibraryProvider = goja.MakeFileLibraryProvider(*libDir)
	interpreters := store.InterpretersMap{
		"goja": gi,
	}

	// Read and compile the store source from the given filename.
	src, err := ioutil.ReadFile(*sourceFilename)
	if err != nil {
		panic(err)
	}
	var ss store.StoreSource
	if err = yaml.Unmarshal(src, &ss); err != nil {
		panic(err)
	}
	conf, err := ss.Compile(ctx, interpreters)
	if err != nil {
		panic(err)
	}

	if *stateDir != "" {
		conf.Medium = &persist.FileMedium{Dir: *stateDir}
	}

	s, err := store.NewStore(ctx, conf)
	if err != nil {
		panic(err)
	}

	if *diag {
		s.OnChange(func(st store.State) {
			fmt.Printf("# state %s\n", JS(st))
		})
		s.OnMutation(func(name string) {
			fmt.Printf("# mutation %s\n", name)
		})
	}

	// An op is a little JSON object:
	//
	//	{"dispatch":"bump","payload":2}
	//	{"commit":"INCREMENT"}
	//	{"get":"count"}
	type op struct {
		Dispatch string      `json:"dispatch"`
		Commit   string      `json:"commit"`
		Payload  interface{} `json:"payload"`
		Get      *string     `json:"get"`
	}

	in := bufio.NewReader(os.Stdin)
	for {
		line, err := in.ReadBytes('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}

		var o op
		if err = json.Unmarshal(line, &o); err != nil {
			fmt.Printf("error: %s\n", err)
			continue
		}

		if *echo {
			fmt.Printf("in: %s", line)
		}

		switch {
		case o.Dispatch != "":
			dispatched, err := s.Dispatch(ctx, o.Dispatch, o.Payload)
			if err != nil {
				fmt.Printf("error: %s\n", err)
			} else if !dispatched {
				fmt.Printf("error: unknown action '%s'\n", o.Dispatch)
			}
		case o.Commit != "":
			committed, err := s.Commit(ctx, o.Commit, o.Payload)
			if err != nil {
				fmt.Printf("error: %s\n", err)
			} else if !committed {
				fmt.Printf("error: unknown mutation '%s'\n", o.Commit)
			}
		case o.Get != nil:
			fmt.Printf("%s\n", JS(s.Get(*o.Get)))
		default:
			fmt.Printf("error: empty op\n")
		}
	}
}

func JS(x interface{}) string {
	js, err := json.Marshal(&x)
	if err != nil {
		panic(err)
	}
	return string(js)
}
