// Package interpreters assembles the standard interpreters for store
// sources.
package interpreters

import (
	"github.com/Comcast/stash/interpreters/goja"
	"github.com/Comcast/stash/interpreters/noop"
	"github.com/Comcast/stash/store"
)

// Standard returns the standard map of interpreters for compiling
// store sources.
func Standard() store.InterpretersMap {
	is := store.NewInterpretersMap()

	g := goja.NewInterpreter()
	is["goja"] = g
	is["ecmascript"] = g
	is["ecmascript-5.1"] = g

	is["noop"] = noop.NewInterpreter()

	return is
}
