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

// Package main is a single-store stash process that can talk over a
// choice of couplings: stdin/stdout, an MQTT broker, or a WebSocket
// server.
//
// For the MQTT coupling, the command line args follow those for
// mosquitto_sub.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/Comcast/stash/sio"
	"github.com/Comcast/stash/store"
)

// storeSource turns a -f argument into something
// sio.ResolveStoreSource will take: a bare filename gets a file://
// scheme, and URLs and literal store sources pass through.
func storeSource(src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("need a store source (-f)")
	}
	if !strings.Contains(src, "://") && src[0] != '{' {
		src = "file://" + src
	}
	return src, nil
}

func main() {
	var (
		ioType = flag.String("io", "std", "couplings: 'std', 'mq', or 'ws'")
		source = flag.String("f", "stores/counter.yaml", "store source (filename, URL, or literal)")

		emitState     = flag.Bool("emit-state", true, "forward state changes to the output coupling")
		emitMutations = flag.Bool("emit-mutations", false, "forward mutation names to the output coupling")
		verbose       = flag.Bool("v", false, "verbosity")
		wait          = flag.Duration("wait", 0, "wait this long before shutting down couplings")
	)

	std := sio.NewStdio(true)
	flag.BoolVar(&std.EchoInput, "echo", false, "echo input")
	flag.BoolVar(&std.Timestamps, "ts", false, "print timestamps")
	flag.BoolVar(&std.ShellExpand, "sh", false, "shell-expand input")
	flag.BoolVar(&std.Tags, "tags", false, "tag output lines")
	flag.BoolVar(&std.PadTags, "pad", false, "pad tags")
	flag.StringVar(&std.StateOutputFilename, "state-out", "", "state output filename")
	flag.StringVar(&std.StateInputFilename, "state-in", "", "state input filename")

	mq := mqFlags()

	wsURL := flag.String("ws", "ws://localhost:8081/ws/api", "WebSocket service URL")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := storeSource(*source)
	if err != nil {
		panic(err)
	}

	_, conf, err := sio.ResolveStoreSource(ctx, src)
	if err != nil {
		panic(err)
	}

	st, err := store.NewStore(ctx, conf)
	if err != nil {
		panic(err)
	}

	sconf := &sio.ServiceConf{
		EmitStateChanges: *emitState,
		EmitMutations:    *emitMutations,
	}

	var couplings sio.Couplings
	switch *ioType {
	case "std":
		sconf.HaltOnInputEOF = true
		if state, err := std.Read(ctx); err != nil {
			panic(err)
		} else if state != nil {
			st.Init(state)
		}
		couplings = std
	case "mq":
		couplings = mq.Couplings(ctx)
	case "ws":
		sconf.HaltOnInputEOF = true
		couplings = NewWSCouplings(*wsURL)
	default:
		panic("unknown -io " + *ioType)
	}

	s, err := sio.NewService(ctx, sconf, st, couplings)
	if err != nil {
		panic(err)
	}
	s.Verbose = *verbose

	if err = couplings.Start(ctx); err != nil {
		panic(err)
	}

	if err := s.Loop(ctx); err != nil {
		panic(err)
	}

	time.Sleep(*wait)

	if err = couplings.Stop(context.Background()); err != nil {
		panic(err)
	}
}
