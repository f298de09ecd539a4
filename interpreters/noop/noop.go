package noop

import (
	"context"
	"log"

	"github.com/Comcast/stash/store"
)

// Interpreter is a store.Interpreter that compiles anything and
// executes nothing.
//
// Useful when you want to parse or render a store source without
// actually running its code.
type Interpreter struct {
	// Silent, if true, will suppress warning log messages.
	Silent bool
}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (i *Interpreter) Compile(ctx context.Context, code interface{}) (interface{}, error) {
	if !i.Silent {
		log.Printf("warning: Using noop Interpreter for compilation")
	}
	return nil, nil
}

func (i *Interpreter) Exec(ctx context.Context, env store.Env, code interface{}, compiled interface{}) (interface{}, error) {
	if !i.Silent {
		log.Printf("warning: Using noop Interpreter for execution")
	}
	return nil, nil
}
