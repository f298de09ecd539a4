package store

// These errors are user errors, not internal errors.

import (
	"errors"
	"fmt"
)

// InterpreterNotFound occurs when you try to Compile a FuncSource,
// and the required interpreter isn't in the given map of
// interpreters.
var InterpreterNotFound = errors.New("interpreter not found")

// UnknownAction occurs when Dispatch is given a name that is not in
// the store's action table.
type UnknownAction struct {
	Key  string
	Name string
}

func (e *UnknownAction) Error() string {
	return `action "` + e.Name + `" not found in store "` + e.Key + `"`
}

// UnknownMutation occurs when Commit is given a name that is not in
// the store's mutation table.
type UnknownMutation struct {
	Key  string
	Name string
}

func (e *UnknownMutation) Error() string {
	return `mutation "` + e.Name + `" not found in store "` + e.Key + `"`
}

// BadTableEntry occurs when a StoreConf includes a table entry with
// an empty name or a nil function.  NewStore rejects such tables.
type BadTableEntry struct {
	Table string
	Name  string
}

func (e *BadTableEntry) Error() string {
	if e.Name == "" {
		return "empty name in " + e.Table + " table"
	}
	return `nil function for "` + e.Name + `" in ` + e.Table + ` table`
}

// BadMutationResult occurs when an interpreted mutation returns
// something that isn't a partial State.
type BadMutationResult struct {
	Name   string
	Result interface{}
}

func (e *BadMutationResult) Error() string {
	return fmt.Sprintf(`mutation "%s" returned %#v (%T), which isn't a partial state`,
		e.Name, e.Result, e.Result)
}
