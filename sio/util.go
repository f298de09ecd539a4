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
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
)

// JS renders an op, update, or state as one line of JSON.  Falls back
// to '%#v' for things JSON can't say.
func JS(x interface{}) string {
	if x == nil {
		return "null"
	}
	if js, err := json.Marshal(&x); err == nil {
		return string(js)
	}
	return fmt.Sprintf("%#v", x)
}

// JSON is JS with indentation, for output meant for humans.
func JSON(x interface{}) string {
	if x == nil {
		return "null"
	}
	if js, err := json.MarshalIndent(&x, "", "  "); err == nil {
		return string(js)
	}
	return fmt.Sprintf("%#v", x)
}

// JShort is JS truncated for log lines.  A big state doesn't deserve
// a big log entry.
func JShort(x interface{}) string {
	const limit = 70
	js := JS(x)
	if limit < len(js) {
		return js[:limit] + "..."
	}
	return js
}

var shellDelimited = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand replaces '<<CMD>>' substrings in an input line with the
// standard output of CMD, so an op can say things like
// {"init":{"host":"<<hostname>>"}}.  Use at your own risk, of course!
func ShellExpand(line string) (string, error) {
	literals := shellDelimited.Split(line, -1)
	cmds := shellDelimited.FindAllStringSubmatch(line, -1)

	acc := literals[0]
	for i, cmd := range cmds {
		sh := exec.Command("bash", "-c", cmd[1])
		var stdout bytes.Buffer
		sh.Stdout = &stdout
		if err := sh.Run(); err != nil {
			return "", fmt.Errorf("shell error %s on %s", err, cmd[1])
		}
		acc += stdout.String() + literals[i+1]
	}

	return acc, nil
}
