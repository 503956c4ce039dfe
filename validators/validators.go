// Package validators provides plain string validators usable standalone or
// as post-validation hooks for String parameters.
package validators

import (
	"fmt"
	"strings"
)

// Result reports a validation outcome. A failed Result records which
// validator rejected the value and with what arguments, so failures carry
// their own diagnosis.
type Result struct {
	Ok   bool
	Func string
	Args map[string]any
}

// Valid reports whether the validation passed.
func (r Result) Valid() bool { return r.Ok }

func (r Result) String() string {
	if r.Ok {
		return "true"
	}
	var args []string
	for k, v := range r.Args {
		args = append(args, fmt.Sprintf("%s: %v", k, v))
	}
	return fmt.Sprintf("Failure(func=%s, args={%s})", r.Func, strings.Join(args, ", "))
}

func pass() Result { return Result{Ok: true} }

func fail(fn, arg string, value any) Result {
	return Result{Func: fn, Args: map[string]any{arg: value}}
}
