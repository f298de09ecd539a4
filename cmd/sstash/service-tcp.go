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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jsccast/yaml"
)

// TCPService accepts connections that speak line-delimited SOps.
//
// Handy with netcat: add a store, dispatch some actions, get some
// state.  A client that says "shutdown" closes the whole listener.
func (s *Service) TCPService(ctx context.Context, port string) error {
	log.Printf("Service.TCPService on %s", port)

	l, err := net.Listen("tcp", port)
	if err != nil {
		return err
	}

	ctl := make(chan bool, 1)

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}

		go func() {
			if err := s.Listener(ctx, conn, conn, ctl); err != nil {
				if err != io.EOF {
					log.Printf("Service.TCPService listener error %s", err)
				}
			}
			conn.Close()

			select {
			case <-ctl:
				l.Close()
			default:
			}
		}()
	}
}

// Listener reads SOps from in, one JSON object per line, applies
// each, and writes the completed SOp back to out.
//
// Blank lines and lines starting with '#' are skipped.  A few bare
// commands are also understood, for humans:
//
//	json, prettyjson, yaml    switch the output rendering
//	echo                      echo input lines
//	sleep DURATION            pause (handy in scripted sessions)
//	shutdown                  close this service's TCP listener
//
// The ctl channel (optional) hears about that "shutdown".
func (s *Service) Listener(ctx context.Context, in io.Reader, out io.Writer, ctl chan bool) error {

	render := "prettyjson"

	var outMu sync.Mutex

	say := func(x interface{}) bool {
		outMu.Lock()
		defer outMu.Unlock()

		var bs []byte
		var err error
		switch render {
		case "json":
			bs, err = json.Marshal(&x)
		case "yaml":
			bs, err = yaml.Marshal(&x)
		default: // prettyjson
			bs, err = json.MarshalIndent(&x, "  ", "  ")
		}
		if err != nil {
			log.Printf("Service.Listener render error %s on %#v", err, x)
			bs = []byte(fmt.Sprintf("error: %s on %#v", err, x))
		}

		bs = append(bs, '\n')

		if _, err = out.Write(bs); err != nil {
			log.Printf("Service.Listener write error %s", err)
			return false
		}

		return true
	}

	complain := func(err error) bool {
		return say(map[string]interface{}{
			"error": err.Error(),
		})
	}

	okay := func() bool {
		return say("okay")
	}

	echo := false

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)

		if echo {
			fmt.Fprintf(out, "%s\n", line)
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch line {
		case "shutdown":
			log.Printf("Service.Listener client says to shutdown")
			if ctl != nil {
				ctl <- true
			}
			return nil
		case "echo":
			echo = !echo
			okay()
			continue
		case "json", "prettyjson", "yaml":
			render = line
			okay()
			continue
		}

		if strings.HasPrefix(line, "sleep ") {
			d, err := time.ParseDuration(strings.TrimPrefix(line, "sleep "))
			if err != nil {
				if !complain(err) {
					return nil
				}
				continue
			}
			time.Sleep(d)
			continue
		}

		var op SOp
		if err := json.Unmarshal([]byte(line), &op); err != nil {
			if !complain(err) {
				return err
			}
			continue
		}

		if err = op.Do(ctx, s); err != nil {
			if !complain(err) {
				return err
			}
			continue
		}

		if !say(&op) {
			return nil
		}
	}

	return nil
}
