package param

import (
	"regexp"
	"strings"
)

// depSpec is a parsed dependency specification:
// "[subobject.]attribute[:slot]". The attribute "param" stands for every
// parameter of the target object.
type depSpec struct {
	path string
	attr string
	what string
}

var depSpecRE = regexp.MustCompile(`^(?:([A-Za-z_][A-Za-z0-9_.]*)\.)?([A-Za-z_][A-Za-z0-9_]*)(?::([A-Za-z_][A-Za-z0-9_]*))?$`)

func parseDependencySpec(spec string) (depSpec, error) {
	trimmed := strings.TrimSpace(spec)
	if strings.Count(trimmed, ":") > 1 {
		return depSpec{}, &ConfigurationError{
			Context: "dependency spec " + spec + " has more than one slot separator"}
	}
	m := depSpecRE.FindStringSubmatch(trimmed)
	if m == nil {
		return depSpec{}, &ConfigurationError{Context: "malformed dependency spec " + spec}
	}
	d := depSpec{path: m[1], attr: m[2], what: m[3]}
	if d.what == "" {
		d.what = WatchSlotValue
	}
	return d, nil
}

func (d depSpec) firstSegment() string {
	if d.path == "" {
		return d.attr
	}
	seg, _, _ := strings.Cut(d.path, ".")
	return seg
}

// PInfo describes a resolved dependency on a parameter: the instance and
// class owning it, the parameter itself and the slot being watched.
type PInfo struct {
	Inst  *Instance
	Class *Class
	Name  string
	Param *Parameter
	What  string
}

// MInfo describes a dependency that resolved to a watcher method declared
// on a sub-object's class; its own dependencies are followed transitively.
type MInfo struct {
	Inst *Instance
	Name string
}

// DInfo holds a dependency spec that cannot be resolved yet because part
// of its sub-object path is unset. It is re-resolved whenever the first
// path segment changes.
type DInfo struct {
	Spec string
}

// getattrPath walks a dotted sub-object path, returning nil when any step
// is unset or not an instance.
func getattrPath(root *Instance, path string) *Instance {
	cur := root
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil
		}
		v, err := cur.Get(seg)
		if err != nil {
			return nil
		}
		next, ok := v.(*Instance)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// resolveSpec resolves one dependency spec against root. With dynamic
// false, any spec reaching through a sub-object is deferred as a DInfo.
// With intermediate true, every link of a resolvable sub-object path is
// also returned as a dependency, so swapping a sub-object re-triggers
// resolution. A path that only partially resolves contributes a dependency
// on the deepest reachable link plus a deferred DInfo for the whole spec.
func resolveSpec(root *Instance, spec string, dynamic, intermediate bool) ([]PInfo, []DInfo, error) {
	d, err := parseDependencySpec(spec)
	if err != nil {
		return nil, nil, err
	}

	var src *Instance
	if d.path == "" {
		src = root
	} else if !dynamic {
		return nil, []DInfo{{Spec: spec}}, nil
	} else {
		src = getattrPath(root, d.path)
		if src == nil {
			var deps []PInfo
			if intermediate {
				segments := strings.Split(d.path, ".")
				reach := len(segments) - 1
				for reach > 0 && getattrPath(root, strings.Join(segments[:reach], ".")) == nil {
					reach--
				}
				if reach > 0 || getattrPath(root, segments[0]) != nil {
					linkSpec := strings.Join(segments[:reach+1], ".")
					linkDeps, _, err := resolveSpec(root, linkSpec, dynamic, intermediate)
					if err != nil {
						return nil, nil, err
					}
					deps = append(deps, linkDeps...)
				} else if p := root.param(segments[0]); p != nil {
					deps = append(deps, PInfo{Inst: root, Class: root.class,
						Name: segments[0], Param: p, What: WatchSlotValue})
				}
			}
			return deps, []DInfo{{Spec: spec}}, nil
		}
	}

	if d.attr == "param" {
		var deps []PInfo
		var dyn []DInfo
		if d.path != "" {
			deps, dyn, err = resolveSpec(root, d.path, dynamic, intermediate)
			if err != nil {
				return nil, nil, err
			}
		}
		for _, n := range src.class.paramOrder() {
			deps = append(deps, PInfo{Inst: src, Class: src.class,
				Name: n, Param: src.param(n), What: WatchSlotValue})
		}
		return deps, dyn, nil
	}

	var info *PInfo
	if p := src.param(d.attr); p != nil {
		info = &PInfo{Inst: src, Class: src.class, Name: d.attr, Param: p, What: d.what}
	} else if decl := src.class.findDecl(d.attr); decl != nil {
		// A method dependency stands for the method's own dependencies.
		m := MInfo{Inst: src, Name: d.attr}
		return resolveMethodDeps(m, decl, dynamic, intermediate)
	} else if src.class.abstract {
		// Abstract sub-objects may gain the attribute in a concrete
		// subclass, so defer instead of failing.
		return nil, []DInfo{{Spec: spec}}, nil
	} else {
		return nil, nil, &ResolutionError{Name: d.attr, Owner: src.class.name,
			Context: "dependency " + spec + " could not be resolved"}
	}

	if d.path == "" || !intermediate {
		return []PInfo{*info}, nil, nil
	}
	deps, dyn, err := resolveSpec(root, d.path, dynamic, intermediate)
	if err != nil {
		return nil, nil, err
	}
	return append(deps, *info), dyn, nil
}

func resolveMethodDeps(m MInfo, decl *watchDecl, dynamic, intermediate bool) ([]PInfo, []DInfo, error) {
	var deps []PInfo
	var dyn []DInfo
	for _, spec := range decl.deps {
		ps, ds, err := resolveSpec(m.Inst, spec, dynamic, intermediate)
		if err != nil {
			return nil, nil, err
		}
		deps = append(deps, ps...)
		dyn = append(dyn, ds...)
	}
	return deps, dyn, nil
}

func (c *Class) findDecl(name string) *watchDecl {
	for i := range c.watchDecls {
		if c.watchDecls[i].name == name {
			return &c.watchDecls[i]
		}
	}
	return nil
}

// Dependencies resolves every dependency of the named watcher method as it
// currently stands, following sub-object paths and method references.
func (ns *InstanceParameters) Dependencies(method string) ([]PInfo, error) {
	decl := ns.inst.class.findDecl(method)
	if decl == nil {
		return nil, &ResolutionError{Name: method, Owner: ns.inst.class.name,
			Context: "no such watcher method"}
	}
	deps, dyns, err := resolveMethodDeps(MInfo{Inst: ns.inst, Name: method}, decl, true, true)
	if err != nil {
		return nil, err
	}
	for _, d := range dyns {
		sub, _, err := resolveSpec(ns.inst, d.Spec, true, true)
		if err != nil {
			return nil, err
		}
		deps = append(deps, sub...)
	}
	return deps, nil
}

type depGroupKey struct {
	inst  *Instance
	class *Class
	what  string
}

// bindDeclaredWatchers wires up the class's watcher declarations against a
// newly constructed instance: statically resolvable dependencies get one
// watcher per target object, sub-object dependencies are resolved
// dynamically and tracked for rebinding.
func (inst *Instance) bindDeclaredWatchers() error {
	for i := range inst.class.watchDecls {
		decl := &inst.class.watchDecls[i]
		var static []PInfo
		var dynamic []DInfo
		for _, spec := range decl.deps {
			ps, ds, err := resolveSpec(inst, spec, false, true)
			if err != nil {
				return err
			}
			static = append(static, ps...)
			dynamic = append(dynamic, ds...)
		}

		groups := map[depGroupKey][]PInfo{}
		var order []depGroupKey
		for _, dep := range static {
			k := depGroupKey{dep.Inst, dep.Class, dep.What}
			if _, seen := groups[k]; !seen {
				order = append(order, k)
			}
			groups[k] = append(groups[k], dep)
		}
		for _, k := range order {
			inst.watchGroup(decl, groups[k], nil)
		}

		for _, ddep := range dynamic {
			if err := inst.bindDynamicDep(decl, ddep.Spec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (inst *Instance) bindDynamicDep(decl *watchDecl, spec string) error {
	deps, _, err := resolveSpec(inst, spec, true, true)
	if err != nil {
		return err
	}
	groups := map[depGroupKey][]PInfo{}
	var order []depGroupKey
	for _, dep := range deps {
		k := depGroupKey{dep.Inst, dep.Class, dep.What}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], dep)
	}
	for _, k := range order {
		w := inst.watchGroup(decl, groups[k], &spec)
		inst.dynWatchers[decl.name] = append(inst.dynWatchers[decl.name], w)
	}
	return nil
}

// updateDeps rebinds the dynamic dependencies of every watcher method that
// reaches through the given attribute: watchers on the old sub-object are
// removed and fresh ones bound against the new one. An empty attribute
// rebinds everything.
func (inst *Instance) updateDeps(attribute string) {
	for i := range inst.class.watchDecls {
		decl := &inst.class.watchDecls[i]
		affected := false
		var dynSpecs []string
		for _, spec := range decl.deps {
			d, err := parseDependencySpec(spec)
			if err != nil || d.path == "" {
				continue
			}
			dynSpecs = append(dynSpecs, spec)
			if attribute == "" || d.firstSegment() == attribute {
				affected = true
			}
		}
		if !affected {
			continue
		}
		for _, w := range inst.dynWatchers[decl.name] {
			unwatchTarget(w)
		}
		delete(inst.dynWatchers, decl.name)
		for _, spec := range dynSpecs {
			if err := inst.bindDynamicDep(decl, spec); err != nil {
				logger().Warn("dependency rebind failed",
					"instance", inst.Name(), "method", decl.name, "error", err)
			}
		}
	}
}

// watchGroup registers one internal watcher covering a group of resolved
// dependencies sharing a target object and slot. For sub-object
// dependencies the watcher first rebinds dependencies, then skips the
// method call when the swapped sub-object carries identical values.
func (inst *Instance) watchGroup(decl *watchDecl, group []PInfo, dynSpec *string) *Watcher {
	target := group[0].Inst
	what := group[0].What
	var names []string
	for _, dep := range group {
		dup := false
		for _, n := range names {
			if n == dep.Name {
				dup = true
				break
			}
		}
		if !dup {
			names = append(names, dep.Name)
		}
	}

	var subparams []string
	var rebind func()
	if dynSpec != nil {
		subparams, rebind, what = inst.dynamicCallPlan(*dynSpec, group[0])
	}

	fn := func(events ...Event) {
		if rebind != nil {
			rebind()
		}
		if !skipEvent(events, what, subparams) {
			decl.fn(inst, events...)
		}
	}
	w := &Watcher{
		inst:           target,
		class:          group[0].Class,
		fn:             fn,
		mode:           ModeArgs,
		onlyChanged:    true,
		parameterNames: names,
		what:           group[0].What,
		queued:         decl.queued,
		precedence:     -1,
	}
	registerInternal(target, w)
	return w
}

// dynamicCallPlan works out, for a sub-object dependency, which parameters
// of the swapped object to compare when deciding whether to skip, and
// whether firing must rebind the instance's dependencies first.
func (inst *Instance) dynamicCallPlan(spec string, dep PInfo) (subparams []string, rebind func(), what string) {
	d, err := parseDependencySpec(spec)
	if err != nil {
		return nil, nil, dep.What
	}
	segments := strings.Split(d.path, ".")
	chain := []*Instance{inst}
	cur := inst
	for _, seg := range segments {
		cur = getattrPath(cur, seg)
		chain = append(chain, cur)
	}

	depth := -1
	for i, link := range chain[:len(chain)-1] {
		if link == dep.Inst {
			depth = i
			break
		}
	}
	if depth < 0 {
		return nil, nil, dep.What
	}
	if depth > 0 {
		first := d.firstSegment()
		rebind = func() { inst.updateDeps(first) }
	}

	remainder := append(append([]string(nil), segments[depth:]...), d.attr)
	sub := strings.Join(remainder[1:], ".")
	if sub == "param" {
		final := chain[len(chain)-1]
		if final != nil {
			subparams = final.class.paramOrder()
		}
	} else {
		subparams = []string{sub}
	}
	return subparams, rebind, d.what
}

// skipEvent reports whether a sub-object swap carried no observable change:
// every compared parameter holds an equal value (or slot) on the old and
// new sub-object.
func skipEvent(events []Event, what string, changed []string) bool {
	if changed == nil {
		return false
	}
	for _, e := range events {
		for _, p := range changed {
			if !comparator.Equal(subValue(e.Old, p, what), subValue(e.New, p, what)) {
				return false
			}
		}
	}
	return true
}

type undefined struct{}

func subValue(obj any, name, what string) any {
	sub, ok := obj.(*Instance)
	if !ok || sub == nil {
		return undefined{}
	}
	if what == WatchSlotValue {
		v, err := sub.Get(name)
		if err != nil {
			return undefined{}
		}
		return v
	}
	p := sub.param(name)
	if p == nil {
		return undefined{}
	}
	v, _ := p.slotValue(what)
	return v
}

// registerInternal attaches a dependency watcher without the non-negative
// precedence rule user registrations are held to.
func registerInternal(target *Instance, w *Watcher) {
	if target == nil {
		return
	}
	for _, n := range w.parameterNames {
		if w.what == WatchSlotValue {
			target.addWatcher(n, w.what, w)
			continue
		}
		p, err := target.ownParameter(n)
		if err != nil {
			continue
		}
		p.watchers[w.what] = append(p.watchers[w.what], w)
	}
}

func unwatchTarget(w *Watcher) {
	if w.inst == nil {
		return
	}
	if w.inst.removeWatcher(w) {
		return
	}
	for _, n := range w.parameterNames {
		p := w.inst.param(n)
		if p == nil {
			continue
		}
		ws := p.watchers[w.what]
		for i, cand := range ws {
			if cand == w {
				p.watchers[w.what] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
	}
}
