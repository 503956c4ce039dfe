package param

import (
	"fmt"
)

// Method is a callable declared on a Class. Methods registered through
// WithWatcher run against an instance whenever one of their declared
// dependencies changes.
type Method func(inst *Instance, events ...Event)

// watchDecl records a method's dependency declaration so subclasses inherit
// it and each new instance binds concrete watchers from it.
type watchDecl struct {
	name   string
	fn     Method
	deps   []string
	onInit bool
	queued bool
}

// Class is the owner registry: it holds an ordered table of bound
// parameters, class-level values for class-member parameters, and the
// watcher declarations every instance is wired up with.
type Class struct {
	name       string
	parent     *Class
	children   []*Class
	declared   map[string]*Parameter
	order      []string
	abstract   bool
	watchDecls []watchDecl
	values     map[string]any
	state      *dispatchState
	counter    int

	table      map[string]*Parameter
	tableOrder []string
}

// ClassOption configures a Class declaration.
type ClassOption func(*classBuilder)

type classBuilder struct {
	parent   *Class
	params   map[string]*Parameter
	order    []string
	decls    []watchDecl
	abstract bool
	err      error
}

// WithParent declares the superclass whose parameters and watcher
// declarations are inherited.
func WithParent(parent *Class) ClassOption {
	return func(b *classBuilder) { b.parent = parent }
}

// WithParameter declares a parameter under the given attribute name.
func WithParameter(name string, p *Parameter) ClassOption {
	return func(b *classBuilder) {
		if _, dup := b.params[name]; dup {
			b.err = &ConfigurationError{Context: fmt.Sprintf("parameter %q declared twice", name)}
			return
		}
		b.params[name] = p
		b.order = append(b.order, name)
	}
}

// DeclOption configures a watcher declaration made with WithWatcher.
type DeclOption func(*watchDecl)

// DependsOn lists the dependency specs that trigger the method. A spec is
// "[subobject.]attribute[:slot]", or "[subobject.]param" to depend on every
// parameter of the target.
func DependsOn(specs ...string) DeclOption {
	return func(d *watchDecl) { d.deps = append(d.deps, specs...) }
}

// OnInit additionally runs the method once when each instance finishes
// construction.
func OnInit() DeclOption {
	return func(d *watchDecl) { d.onInit = true }
}

// Queued defers events raised inside the method to the end of the current
// dispatch cycle instead of running nested watchers depth-first.
func Queued() DeclOption {
	return func(d *watchDecl) { d.queued = true }
}

// WithWatcher declares a named method that runs whenever one of its
// dependencies changes. Subclasses inherit the declaration unless they
// declare a method of the same name themselves.
func WithWatcher(name string, fn Method, opts ...DeclOption) ClassOption {
	return func(b *classBuilder) {
		d := watchDecl{name: name, fn: fn}
		for _, opt := range opts {
			opt(&d)
		}
		b.decls = append(b.decls, d)
	}
}

// AsAbstract marks the class as a base that cannot be instantiated.
// Abstractness is not inherited.
func AsAbstract() ClassOption {
	return func(b *classBuilder) { b.abstract = true }
}

// NewClass declares a class: parameters bind to their attribute names
// exactly once, defaults are validated, and watcher declarations are
// syntax-checked.
func NewClass(name string, opts ...ClassOption) (*Class, error) {
	b := &classBuilder{params: map[string]*Parameter{}}
	for _, opt := range opts {
		opt(b)
	}
	if b.err != nil {
		return nil, b.err
	}

	c := &Class{
		name:     name,
		parent:   b.parent,
		declared: b.params,
		order:    b.order,
		abstract: b.abstract,
		values:   map[string]any{},
		state:    newDispatchState(),
	}

	if _, ok := b.params["name"]; !ok && (b.parent == nil || b.parent.Parameter("name") == nil) {
		np := String(Constant(), WithDoc("String identifier for this object."))
		c.declared["name"] = np
		c.order = append([]string{"name"}, c.order...)
	}

	for _, attrib := range c.order {
		if err := c.declared[attrib].bind(c, attrib); err != nil {
			return nil, err
		}
	}

	// Inherited watcher declarations, minus those overridden locally.
	local := map[string]bool{}
	for _, d := range b.decls {
		local[d.name] = true
	}
	if b.parent != nil {
		for _, d := range b.parent.watchDecls {
			if !local[d.name] {
				c.watchDecls = append(c.watchDecls, d)
			}
		}
	}
	c.watchDecls = append(c.watchDecls, b.decls...)

	for _, d := range b.decls {
		for _, spec := range d.deps {
			if _, err := parseDependencySpec(spec); err != nil {
				return nil, err
			}
		}
	}

	if b.parent != nil {
		b.parent.children = append(b.parent.children, c)
	}
	return c, nil
}

// MustClass is NewClass panicking on declaration errors, for package-level
// class variables.
func MustClass(name string, opts ...ClassOption) *Class {
	c, err := NewClass(name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Parent returns the superclass, or nil.
func (c *Class) Parent() *Class { return c.parent }

// IsAbstract reports whether the class refuses instantiation.
func (c *Class) IsAbstract() bool { return c.abstract }

// paramTable returns the merged parameter table, ancestors first, with
// subclass declarations shadowing inherited ones.
func (c *Class) paramTable() map[string]*Parameter {
	if c.table == nil {
		c.rebuildTable()
	}
	return c.table
}

func (c *Class) paramOrder() []string {
	if c.table == nil {
		c.rebuildTable()
	}
	return c.tableOrder
}

func (c *Class) rebuildTable() {
	table := map[string]*Parameter{}
	var order []string
	if c.parent != nil {
		for _, n := range c.parent.paramOrder() {
			table[n] = c.parent.paramTable()[n]
			order = append(order, n)
		}
	}
	for _, n := range c.order {
		if _, inherited := table[n]; !inherited {
			order = append(order, n)
		}
		table[n] = c.declared[n]
	}
	c.table, c.tableOrder = table, order
}

func (c *Class) invalidateTable() {
	c.table, c.tableOrder = nil, nil
	for _, child := range c.children {
		child.invalidateTable()
	}
}

// Parameter returns the bound parameter for the attribute name, or nil.
func (c *Class) Parameter(name string) *Parameter {
	return c.paramTable()[name]
}

// AddParameter binds an additional parameter to the class after
// declaration, visible to subclasses and existing instances alike.
func (c *Class) AddParameter(name string, p *Parameter) error {
	if _, dup := c.declared[name]; dup {
		return &ConfigurationError{Context: fmt.Sprintf("parameter %q declared twice", name)}
	}
	if err := p.bind(c, name); err != nil {
		return err
	}
	c.declared[name] = p
	c.order = append(c.order, name)
	c.invalidateTable()
	return nil
}

// Get returns the class-level value of a parameter: the class-member value
// if one was set, otherwise the default.
func (c *Class) Get(name string) (any, error) {
	p := c.Parameter(name)
	if p == nil {
		return nil, &ResolutionError{Name: name, Owner: c.name, Context: "no such parameter"}
	}
	return p.valueFor(nil), nil
}

// Set assigns a class-level value: class-member parameters store it in the
// class, all others mutate the default seen by instances without their own
// value. No change events fire.
func (c *Class) Set(name string, val any) error {
	p := c.Parameter(name)
	if p == nil {
		return &ResolutionError{Name: name, Owner: c.name, Context: "no such parameter"}
	}
	return p.setOn(nil, val)
}

// Params returns the class-level parameter namespace.
func (c *Class) Params() *ClassParameters {
	return &ClassParameters{class: c}
}

func (c *Class) nextAutoName() string {
	c.counter++
	return fmt.Sprintf("%s%05d", c.name, c.counter)
}

// isAutoName reports whether a name looks machine-generated for this class,
// so listings can suppress it.
func (c *Class) isAutoName(name string) bool {
	if len(name) <= len(c.name) || name[:len(c.name)] != c.name {
		return false
	}
	for _, r := range name[len(c.name):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
