package param

import (
	"fmt"
)

// ClassParameters is the class-level parameter namespace: introspection over
// the merged parameter table and watcher registration applying to every
// instance of the class.
type ClassParameters struct {
	class *Class
}

// Names returns the attribute names of the class's parameters, ancestors
// first, in declaration order.
func (ns *ClassParameters) Names() []string {
	return append([]string(nil), ns.class.paramOrder()...)
}

// Objects returns the merged parameter table.
func (ns *ClassParameters) Objects() map[string]*Parameter {
	table := ns.class.paramTable()
	out := make(map[string]*Parameter, len(table))
	for n, p := range table {
		out[n] = p
	}
	return out
}

// Values returns the class-level value of every parameter. With
// onlyChanged, parameters still equal to their default are omitted.
func (ns *ClassParameters) Values(onlyChanged bool) map[string]any {
	out := map[string]any{}
	for _, n := range ns.class.paramOrder() {
		p := ns.class.paramTable()[n]
		v := p.valueFor(nil)
		if onlyChanged && comparator.Equal(v, p.def) {
			continue
		}
		out[n] = v
	}
	return out
}

// Watch registers fn as a watcher on the named parameters for every
// instance of the class that has no instance-level watcher of its own.
func (ns *ClassParameters) Watch(fn EventFunc, names []string, opts ...WatchOption) (*Watcher, error) {
	w, err := buildWatcher(nil, ns.class, names, opts, func(w *Watcher) { w.fn = fn })
	if err != nil {
		return nil, err
	}
	table := ns.class.paramTable()
	for _, n := range names {
		p := table[n]
		p.watchers[w.what] = append(p.watchers[w.what], w)
	}
	return w, nil
}

// Unwatch removes a watcher registered with Watch.
func (ns *ClassParameters) Unwatch(w *Watcher) error {
	table := ns.class.paramTable()
	removed := false
	for _, n := range w.parameterNames {
		p, ok := table[n]
		if !ok {
			continue
		}
		ws := p.watchers[w.what]
		for i, cand := range ws {
			if cand == w {
				p.watchers[w.what] = append(ws[:i:i], ws[i+1:]...)
				removed = true
				break
			}
		}
	}
	if !removed {
		return &ResolutionError{Name: fmt.Sprint(w.parameterNames), Owner: ns.class.name,
			Context: "no such watcher registered"}
	}
	return nil
}

// InstanceParameters is the instance-level parameter namespace.
type InstanceParameters struct {
	inst *Instance
}

// Names returns the attribute names of the instance's parameters.
func (ns *InstanceParameters) Names() []string {
	return append([]string(nil), ns.inst.class.paramOrder()...)
}

// Objects returns the parameter table as seen by the instance:
// per-instance clones shadow the class's parameters.
func (ns *InstanceParameters) Objects() map[string]*Parameter {
	out := map[string]*Parameter{}
	for n, p := range ns.inst.class.paramTable() {
		out[n] = p
	}
	for n, p := range ns.inst.instParams {
		out[n] = p
	}
	return out
}

// ParameterFor returns the parameter mediating the named attribute for
// this instance, materializing a per-instance clone so metadata edits stay
// local to the instance.
func (ns *InstanceParameters) ParameterFor(name string) (*Parameter, error) {
	return ns.inst.ownParameter(name)
}

// Values returns the current value of every parameter. With onlyChanged,
// parameters still equal to their default are omitted.
func (ns *InstanceParameters) Values(onlyChanged bool) map[string]any {
	out := map[string]any{}
	for _, n := range ns.inst.class.paramOrder() {
		p := ns.inst.param(n)
		v := p.valueFor(ns.inst)
		if onlyChanged && comparator.Equal(v, p.def) {
			continue
		}
		out[n] = v
	}
	return out
}

type savedValue struct {
	store map[string]any
	val   any
	had   bool
}

// Update sets several parameters in one batch: watchers observe all the
// new values together and fire once per watcher. On any error the values
// already applied are rolled back, class-member values included, and
// their queued events dropped.
func (ns *InstanceParameters) Update(args Args) error {
	inst := ns.inst
	st := inst.state
	return st.batch(func() error {
		saved := map[string]savedValue{}
		emark, wmark := len(st.events), len(st.watchers)

		var err error
		for _, n := range sortedKeys(args) {
			p := inst.param(n)
			if p == nil {
				err = &ResolutionError{Name: n, Owner: inst.class.name, Context: "no such parameter"}
				break
			}
			if _, seen := saved[n]; !seen {
				store := inst.values
				if p.classMember && p.owner != nil {
					store = p.owner.values
				}
				old, had := store[n]
				saved[n] = savedValue{store, old, had}
			}
			if err = p.setOn(inst, args[n]); err != nil {
				break
			}
		}
		if err != nil {
			for n, s := range saved {
				if s.had {
					s.store[n] = s.val
				} else {
					delete(s.store, n)
				}
			}
			st.events = st.events[:emark]
			st.watchers = st.watchers[:wmark]
		}
		return err
	})
}

// Watch registers fn to run when any of the named parameters change. Value
// watchers attach to the instance; slot watchers attach to a per-instance
// parameter clone. Negative precedences are reserved for internal
// dependency watchers.
func (ns *InstanceParameters) Watch(fn EventFunc, names []string, opts ...WatchOption) (*Watcher, error) {
	w, err := buildWatcher(ns.inst, ns.inst.class, names, opts, func(w *Watcher) { w.fn = fn })
	if err != nil {
		return nil, err
	}
	return w, ns.register(w)
}

// WatchValues is Watch delivering a name-to-new-value map instead of Event
// records.
func (ns *InstanceParameters) WatchValues(fn ValuesFunc, names []string, opts ...WatchOption) (*Watcher, error) {
	w, err := buildWatcher(ns.inst, ns.inst.class, names, opts, func(w *Watcher) {
		w.valuesFn = fn
		w.mode = ModeValues
	})
	if err != nil {
		return nil, err
	}
	if w.what != WatchSlotValue {
		return nil, &ConfigurationError{Context: "value-map watchers only observe parameter values"}
	}
	return w, ns.register(w)
}

func (ns *InstanceParameters) register(w *Watcher) error {
	for _, n := range w.parameterNames {
		if w.what == WatchSlotValue {
			ns.inst.addWatcher(n, w.what, w)
			continue
		}
		p, err := ns.inst.ownParameter(n)
		if err != nil {
			return err
		}
		p.watchers[w.what] = append(p.watchers[w.what], w)
	}
	return nil
}

// Unwatch removes a watcher registered on this instance.
func (ns *InstanceParameters) Unwatch(w *Watcher) error {
	if ns.inst.removeWatcher(w) {
		return nil
	}
	removed := false
	for _, n := range w.parameterNames {
		p := ns.inst.param(n)
		if p == nil {
			continue
		}
		ws := p.watchers[w.what]
		for i, cand := range ws {
			if cand == w {
				p.watchers[w.what] = append(ws[:i:i], ws[i+1:]...)
				removed = true
				break
			}
		}
	}
	if !removed {
		return &ResolutionError{Name: fmt.Sprint(w.parameterNames), Owner: ns.inst.class.name,
			Context: "no such watcher registered"}
	}
	return nil
}

// Trigger re-dispatches the named parameters' current values as triggered
// events, bypassing the only-changed skip rule. Events already queued are
// held aside and restored afterwards.
func (ns *InstanceParameters) Trigger(names ...string) error {
	inst := ns.inst
	for _, n := range names {
		if inst.param(n) == nil {
			return &ResolutionError{Name: n, Owner: inst.class.name, Context: "no such parameter"}
		}
	}
	st := inst.state
	savedEvents, savedWatchers := st.events, st.watchers
	st.events, st.watchers = nil, nil

	args := Args{}
	for _, n := range names {
		args[n] = inst.param(n).valueFor(inst)
	}
	st.trigger = true
	defer func() {
		st.trigger = false
		st.events = append(st.events, savedEvents...)
		st.watchers = append(st.watchers, savedWatchers...)
	}()
	return ns.Update(args)
}

// Batch runs fn with watcher dispatch deferred: every event raised inside
// is delivered, deduplicated, after fn returns. Reentrant.
func (ns *InstanceParameters) Batch(fn func() error) error {
	return ns.inst.state.batch(fn)
}

// DiscardEvents runs fn and discards every event it would have raised.
func (ns *InstanceParameters) DiscardEvents(fn func() error) error {
	return ns.inst.state.discard(fn)
}

// buildWatcher validates names and options shared by every watch entry
// point.
func buildWatcher(inst *Instance, class *Class, names []string, opts []WatchOption, bind func(*Watcher)) (*Watcher, error) {
	if len(names) == 0 {
		return nil, &ConfigurationError{Context: "a watcher needs at least one parameter name"}
	}
	table := class.paramTable()
	for _, n := range names {
		if _, ok := table[n]; !ok {
			return nil, &ResolutionError{Name: n, Owner: class.name, Context: "no such parameter"}
		}
	}
	w := &Watcher{
		inst:           inst,
		class:          class,
		mode:           ModeArgs,
		onlyChanged:    true,
		parameterNames: append([]string(nil), names...),
		what:           WatchSlotValue,
	}
	bind(w)
	for _, opt := range opts {
		opt(w)
	}
	if w.precedence < 0 {
		return nil, &ConfigurationError{
			Context: "user-registered watchers must declare a non-negative precedence"}
	}
	return w, nil
}
