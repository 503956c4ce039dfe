package param

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
)

// Args carries keyword-style constructor arguments for Class.New.
type Args map[string]any

// Instance is one object of a Class: it holds the values written through
// the class's parameters, per-instance parameter clones, and the watchers
// registered against it.
type Instance struct {
	class       *Class
	id          string
	values      map[string]any
	instParams  map[string]*Parameter
	watchers    map[string]map[string][]*Watcher
	dynWatchers map[string][]*Watcher
	state       *dispatchState
	initialized bool
}

// New constructs an instance: deep-copied defaults are installed first,
// then constructor arguments are validated and applied, then dependency
// watchers bind and on-init methods run. Unknown argument names are logged
// and skipped rather than failing construction.
func (c *Class) New(args Args) (*Instance, error) {
	if c.abstract {
		return nil, &ConfigurationError{
			Context: fmt.Sprintf("%s is abstract and cannot be instantiated", c.name)}
	}

	inst := &Instance{
		class:       c,
		id:          uuid.NewString(),
		values:      map[string]any{},
		instParams:  map[string]*Parameter{},
		watchers:    map[string]map[string][]*Watcher{},
		dynWatchers: map[string][]*Watcher{},
		state:       newDispatchState(),
	}

	if _, given := args["name"]; !given {
		inst.values["name"] = c.nextAutoName()
	}

	table := c.paramTable()
	for _, n := range c.paramOrder() {
		p := table[n]
		if !p.deepCopy || p.def == nil || n == "name" {
			continue
		}
		if _, given := args[n]; given {
			continue
		}
		inst.values[n] = copyDefault(p)
	}

	for _, n := range sortedKeys(args) {
		p, ok := table[n]
		if !ok {
			logger().Warn("unknown constructor argument",
				slog.String("class", c.name), slog.String("argument", n))
			continue
		}
		if err := p.setOn(inst, args[n]); err != nil {
			return nil, err
		}
	}

	if err := inst.bindDeclaredWatchers(); err != nil {
		return nil, err
	}
	inst.initialized = true

	for _, d := range c.watchDecls {
		if d.onInit {
			d.fn(inst)
		}
	}
	return inst, nil
}

// MustNew is New panicking on construction errors.
func (c *Class) MustNew(args Args) *Instance {
	inst, err := c.New(args)
	if err != nil {
		panic(err)
	}
	return inst
}

func sortedKeys(args Args) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Class returns the owning class.
func (inst *Instance) Class() *Class { return inst.class }

// ID returns the unique identifier assigned at construction.
func (inst *Instance) ID() string { return inst.id }

// Name returns the instance's name parameter value.
func (inst *Instance) Name() string {
	n, _ := inst.values["name"].(string)
	return n
}

// Get returns the current value of a parameter: the instance's own value if
// one exists, otherwise the class value or default.
func (inst *Instance) Get(name string) (any, error) {
	p := inst.param(name)
	if p == nil {
		return nil, &ResolutionError{Name: name, Owner: inst.class.name, Context: "no such parameter"}
	}
	return p.valueFor(inst), nil
}

// Set validates and stores a value, dispatching change events to watchers.
func (inst *Instance) Set(name string, val any) error {
	p := inst.param(name)
	if p == nil {
		return &ResolutionError{Name: name, Owner: inst.class.name, Context: "no such parameter"}
	}
	return p.setOn(inst, val)
}

// Params returns the instance-level parameter namespace.
func (inst *Instance) Params() *InstanceParameters {
	return &InstanceParameters{inst: inst}
}

// param returns the parameter mediating name for this instance: the
// per-instance clone if one was materialized, otherwise the class's.
func (inst *Instance) param(name string) *Parameter {
	if ip, ok := inst.instParams[name]; ok {
		return ip
	}
	return inst.class.Parameter(name)
}

// ownParameter materializes a per-instance clone so instance-scoped
// metadata changes do not leak to other instances. Parameters declared
// NotPerInstance stay shared.
func (inst *Instance) ownParameter(name string) (*Parameter, error) {
	if ip, ok := inst.instParams[name]; ok {
		return ip, nil
	}
	p := inst.class.Parameter(name)
	if p == nil {
		return nil, &ResolutionError{Name: name, Owner: inst.class.name, Context: "no such parameter"}
	}
	if !p.perInstance {
		return p, nil
	}
	clone := p.clone()
	inst.instParams[name] = clone
	return clone, nil
}

func (inst *Instance) watchersFor(name, what string) []*Watcher {
	if m, ok := inst.watchers[name]; ok {
		if ws, ok := m[what]; ok && ws != nil {
			return ws
		}
	}
	if p := inst.param(name); p != nil {
		return p.watchers[what]
	}
	return nil
}

func (inst *Instance) addWatcher(name, what string, w *Watcher) {
	m, ok := inst.watchers[name]
	if !ok {
		m = map[string][]*Watcher{}
		inst.watchers[name] = m
	}
	m[what] = append(m[what], w)
}

func (inst *Instance) removeWatcher(w *Watcher) bool {
	removed := false
	for _, m := range inst.watchers {
		for what, ws := range m {
			for i, cand := range ws {
				if cand == w {
					m[what] = append(ws[:i:i], ws[i+1:]...)
					removed = true
					break
				}
			}
		}
	}
	return removed
}

func (inst *Instance) String() string {
	return inst.Repr()
}

func copyDefault(p *Parameter) any {
	if v, ok := sharedDefault(p); ok {
		return v
	}
	v := deepcopy.Copy(p.def)
	rememberSharedDefault(p, v)
	return v
}
