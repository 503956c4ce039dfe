// Package param provides typed, validated, observable attributes for Go
// objects.
//
// # Overview
//
// Param organizes code around three core concepts:
//
//  1. Parameters: typed value containers with defaults, validation and
//     mutability policy
//  2. Classes: declared owners holding an ordered, inheritable table of
//     bound parameters
//  3. Watchers: callbacks dispatched when parameter values (or parameter
//     metadata slots) change
//
// # Basic Usage
//
// Declare a class with parameters, then construct instances:
//
//	Volume := param.MustClass("Volume",
//	    param.WithParameter("level", param.Number(
//	        param.WithDefault(0.5),
//	        param.WithBounds(0, 1),
//	    )),
//	    param.WithParameter("muted", param.Boolean(
//	        param.WithDefault(false),
//	    )),
//	)
//
//	v, err := Volume.New(param.Args{"level": 0.8})
//	level, _ := v.Get("level")     // 0.8
//	err = v.Set("level", 2.0)      // ValidationError: out of bounds
//
// # Watching Changes
//
// Watchers observe value changes with old and new values:
//
//	v.Params().Watch(func(events ...param.Event) {
//	    for _, e := range events {
//	        fmt.Printf("%s: %v -> %v\n", e.Name, e.Old, e.New)
//	    }
//	}, []string{"level"})
//
// Batched updates deliver all changes together, deduplicated per
// parameter, once per watcher:
//
//	v.Params().Update(param.Args{"level": 0.2, "muted": true})
//
// # Declared Dependencies
//
// Classes can declare methods that run when their dependencies change,
// including dependencies reaching through sub-objects:
//
//	Mixer := param.MustClass("Mixer",
//	    param.WithParameter("master", param.Any()),
//	    param.WithWatcher("onMaster", func(inst *param.Instance, events ...param.Event) {
//	        // runs when master.level changes, and rebinds if master is swapped
//	    }, param.DependsOn("master.level")),
//	)
//
// # Mutability Policy
//
// Constant parameters are settable at construction only; read-only
// parameters are never settable:
//
//	param.String(param.Constant())
//	param.Number(param.ReadOnly())
//
// EditConstant opens a scope where constants are temporarily writable.
//
// # Serialization
//
// Instances serialize to JSON or YAML, and classes describe themselves as
// JSON-schema-shaped maps:
//
//	data, _ := v.Params().Serialize("json")
//	schema, _ := Volume.Params().Schema("json", false)
//
// # Dispatch Model
//
// Dispatch is cooperative and single-threaded: watchers run synchronously
// on the goroutine that set the value, depth-first unless queued. Watchers
// registered with AsyncWatch are handed to the process-wide executor
// installed with SetAsyncExecutor.
package param
