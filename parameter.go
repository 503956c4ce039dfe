package param

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Parameter slot names, as referenced by slot watchers, dependency specs
// ("attr:slot") and Snapshot/Restore.
const (
	SlotName             = "name"
	SlotDefault          = "default"
	SlotDoc              = "doc"
	SlotConstant         = "constant"
	SlotReadOnly         = "readonly"
	SlotAllowNil         = "allow_nil"
	SlotLabel            = "label"
	SlotPerInstance      = "per_instance"
	SlotDeepCopy         = "deep_copy"
	SlotClassMember      = "class_member"
	SlotSerializeDefault = "serialize_default"
	SlotPrecedence       = "precedence"
)

// Parameter is a value container: it holds one attribute's metadata
// (default value, validation kind, constancy and read-only policy) and
// mediates every get and set of that attribute on the owning class and its
// instances.
//
// A Parameter is created standalone, then bound to exactly one owning Class
// when that class is declared. Binding assigns the parameter's name exactly
// once; sharing one Parameter across classes is a BindingError.
type Parameter struct {
	name             string
	owner            *Class
	kind             Kind
	def              any
	doc              string
	constant         bool
	readonly         bool
	allowNil         bool
	explicitAllowNil bool
	label            string
	perInstance      bool
	deepCopy         bool
	classMember      bool
	serializeDefault bool
	precedence       *float64
	watchers         map[string][]*Watcher
	postSet          func(inst *Instance, val any)
	extraCheck       func(v any) error
	assigned         map[string]bool
}

// Option modifies a Parameter declaration.
type Option func(*Parameter)

// WithDefault sets the owning class's default value for the parameter.
// A nil default implicitly allows nil values.
func WithDefault(v any) Option {
	return func(p *Parameter) {
		p.def = v
		p.assigned[SlotDefault] = true
	}
}

// WithDoc sets the docstring explaining what the parameter represents.
func WithDoc(doc string) Option {
	return func(p *Parameter) {
		p.doc = doc
		p.assigned[SlotDoc] = true
	}
}

// Constant makes the parameter settable only at class level or during
// instance construction; once an instance holds a value, re-setting it to
// anything but an equal value is an ImmutableError.
func Constant() Option {
	return func(p *Parameter) {
		p.constant = true
		p.assigned[SlotConstant] = true
	}
}

// ReadOnly forbids setting the parameter at class or instance level.
func ReadOnly() Option {
	return func(p *Parameter) {
		p.readonly = true
		p.assigned[SlotReadOnly] = true
	}
}

// AllowNil accepts nil as a valid value in addition to whatever the kind
// allows.
func AllowNil() Option {
	return func(p *Parameter) {
		p.allowNil = true
		p.explicitAllowNil = true
		p.assigned[SlotAllowNil] = true
	}
}

// WithLabel sets the text label used when the parameter is shown in a
// listing. Defaults to a title-cased form of the attribute name.
func WithLabel(label string) Option {
	return func(p *Parameter) {
		p.label = label
		p.assigned[SlotLabel] = true
	}
}

// NotPerInstance shares the single Parameter object across all instances of
// the owning class instead of cloning it per instance on demand.
func NotPerInstance() Option {
	return func(p *Parameter) {
		p.perInstance = false
		p.assigned[SlotPerInstance] = true
	}
}

// DeepCopy copies the default value into each new instance so mutable
// defaults are never aliased between instances.
func DeepCopy() Option {
	return func(p *Parameter) {
		p.deepCopy = true
		p.assigned[SlotDeepCopy] = true
	}
}

// ClassMember routes every write to the owning class itself rather than to
// the instance being written through.
func ClassMember() Option {
	return func(p *Parameter) {
		p.classMember = true
		p.assigned[SlotClassMember] = true
	}
}

// NoSerializeDefault excludes the default value from serialized output.
func NoSerializeDefault() Option {
	return func(p *Parameter) {
		p.serializeDefault = false
		p.assigned[SlotSerializeDefault] = true
	}
}

// WithPrecedence orders the parameter in listings; lower sorts first and an
// undeclared precedence sorts lowest of all.
func WithPrecedence(prec float64) Option {
	return func(p *Parameter) {
		p.precedence = &prec
		p.assigned[SlotPrecedence] = true
	}
}

// WithPostSet installs a hook invoked after a value has been validated and
// stored, before change events are dispatched.
func WithPostSet(fn func(inst *Instance, val any)) Option {
	return func(p *Parameter) {
		p.postSet = fn
	}
}

// WithValidator adds a custom check run after the kind's own validation.
// The returned error is wrapped in a ValidationError. Nil values skip the
// check.
func WithValidator(fn func(v any) error) Option {
	return func(p *Parameter) {
		p.extraCheck = fn
	}
}

// WithRegex constrains a String parameter to full matches of the pattern.
// Panics if the pattern does not compile or the parameter is not a String.
func WithRegex(pattern string) Option {
	return func(p *Parameter) {
		k, ok := p.kind.(StringKind)
		if !ok {
			panic(fmt.Sprintf("WithRegex applies to String parameters, not %s", p.kind.Name()))
		}
		k.Regex = regexp.MustCompile(pattern)
		p.kind = k
	}
}

// WithBounds constrains a Number parameter to the inclusive range [min, max].
func WithBounds(min, max float64) Option {
	return func(p *Parameter) {
		k, ok := p.kind.(NumberKind)
		if !ok {
			panic(fmt.Sprintf("WithBounds applies to Number parameters, not %s", p.kind.Name()))
		}
		k.Min, k.Max = &min, &max
		p.kind = k
	}
}

// WithIntBounds constrains an Integer parameter to the inclusive range
// [min, max].
func WithIntBounds(min, max int64) Option {
	return func(p *Parameter) {
		k, ok := p.kind.(IntegerKind)
		if !ok {
			panic(fmt.Sprintf("WithIntBounds applies to Integer parameters, not %s", p.kind.Name()))
		}
		k.Min, k.Max = &min, &max
		p.kind = k
	}
}

// WithLenBounds constrains a List parameter's length to [min, max].
func WithLenBounds(min, max int) Option {
	return func(p *Parameter) {
		k, ok := p.kind.(ListKind)
		if !ok {
			panic(fmt.Sprintf("WithLenBounds applies to List parameters, not %s", p.kind.Name()))
		}
		k.MinLen, k.MaxLen = &min, &max
		p.kind = k
	}
}

// WithItemKind validates every element of a List parameter with the given
// kind.
func WithItemKind(item Kind) Option {
	return func(p *Parameter) {
		k, ok := p.kind.(ListKind)
		if !ok {
			panic(fmt.Sprintf("WithItemKind applies to List parameters, not %s", p.kind.Name()))
		}
		k.Item = item
		p.kind = k
	}
}

// NewParameter declares a parameter of the given kind.
func NewParameter(kind Kind, opts ...Option) *Parameter {
	p := &Parameter{
		kind:             kind,
		perInstance:      true,
		serializeDefault: true,
		watchers:         map[string][]*Watcher{},
		assigned:         map[string]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.def == nil {
		p.allowNil = true
	}
	// Constant parameters are deep-copied into each instance so their
	// stored value is independent per instance. Read-only parameters can
	// never be set, so copying would be wasted work.
	if p.readonly {
		p.deepCopy = false
	} else if p.constant {
		p.deepCopy = true
	}
	return p
}

// Any declares a parameter accepting every value.
func Any(opts ...Option) *Parameter { return NewParameter(AnyKind{}, opts...) }

// String declares a string parameter, optionally regex-constrained via
// WithRegex.
func String(opts ...Option) *Parameter { return NewParameter(StringKind{}, opts...) }

// Number declares a numeric parameter, optionally bounded via WithBounds.
func Number(opts ...Option) *Parameter { return NewParameter(NumberKind{}, opts...) }

// Integer declares an integral parameter, optionally bounded via
// WithIntBounds.
func Integer(opts ...Option) *Parameter { return NewParameter(IntegerKind{}, opts...) }

// Boolean declares a bool parameter.
func Boolean(opts ...Option) *Parameter { return NewParameter(BooleanKind{}, opts...) }

// List declares a []any parameter with optional length bounds and item kind.
func List(opts ...Option) *Parameter { return NewParameter(ListKind{}, opts...) }

// Name returns the attribute name the parameter was bound to, or "" if the
// parameter has not been bound to a class yet.
func (p *Parameter) Name() string { return p.name }

// Owner returns the owning class, or nil before binding.
func (p *Parameter) Owner() *Class { return p.owner }

// Kind returns the parameter's validation kind.
func (p *Parameter) Kind() Kind { return p.kind }

// Default returns the owning class's default value.
func (p *Parameter) Default() any { return p.def }

// Doc returns the parameter's docstring.
func (p *Parameter) Doc() string { return p.doc }

// IsConstant reports whether the parameter is constant.
func (p *Parameter) IsConstant() bool { return p.constant }

// IsReadOnly reports whether the parameter is read-only.
func (p *Parameter) IsReadOnly() bool { return p.readonly }

// AllowsNil reports whether nil is an accepted value.
func (p *Parameter) AllowsNil() bool { return p.allowNil }

// PerInstance reports whether instances get their own clone of this
// parameter when instance-scoped metadata is required.
func (p *Parameter) PerInstance() bool { return p.perInstance }

// DeepCopied reports whether the default is copied into each instance.
func (p *Parameter) DeepCopied() bool { return p.deepCopy }

// IsClassMember reports whether writes route to the owning class.
func (p *Parameter) IsClassMember() bool { return p.classMember }

// PrecedenceValue returns the declared precedence, or nil if undeclared.
func (p *Parameter) PrecedenceValue() *float64 { return p.precedence }

// Label returns the display label, deriving one from the bound name when no
// label was declared.
func (p *Parameter) Label() string {
	if p.label == "" && p.name != "" {
		return formatLabel(p.name)
	}
	return p.label
}

func formatLabel(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Validate runs the kind's adapt hook followed by its type, shape and range
// checks, returning a ValidationError for unacceptable values.
func (p *Parameter) Validate(val any) error {
	if err := p.kind.Validate(p.name, p.kind.Adapt(val), p.allowNil); err != nil {
		return err
	}
	if p.extraCheck != nil && val != nil {
		if err := p.extraCheck(val); err != nil {
			return &ValidationError{Param: p.name, Value: val,
				Constraint: "custom check failed", Cause: err}
		}
	}
	return nil
}

// bind performs the one-time name assignment when the owning class is
// declared. Slots not explicitly assigned are inherited from the nearest
// ancestor class declaring a parameter of the same name.
func (p *Parameter) bind(owner *Class, attribName string) error {
	if p.name != "" {
		ownerName := "<unbound>"
		if p.owner != nil {
			ownerName = p.owner.name
		}
		return &BindingError{Param: p.name, Owner: ownerName, Attempted: attribName}
	}
	p.name = attribName
	p.owner = owner
	p.assigned[SlotName] = true

	if owner.parent != nil {
		if ancestor, ok := owner.parent.paramTable()[attribName]; ok {
			p.inheritFrom(ancestor)
		}
	}

	if p.constant && p.explicitAllowNil {
		return &ConfigurationError{
			Context: fmt.Sprintf("constant parameter %q cannot allow nil values", attribName)}
	}
	if p.def != nil {
		if err := p.Validate(p.def); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parameter) inheritFrom(ancestor *Parameter) {
	if !p.assigned[SlotDefault] && ancestor.assigned[SlotDefault] {
		p.def = ancestor.def
		// An explicit AllowNil on the redeclaration wins; otherwise the
		// derived flag follows the inherited default.
		if !p.explicitAllowNil {
			p.allowNil = ancestor.def == nil || ancestor.explicitAllowNil
		}
	}
	if !p.assigned[SlotDoc] {
		p.doc = ancestor.doc
	}
	if !p.assigned[SlotLabel] {
		p.label = ancestor.label
	}
	if !p.assigned[SlotPrecedence] {
		p.precedence = ancestor.precedence
	}
}

// valueFor returns the current value as seen by inst: the instance's stored
// value if one exists, otherwise the owning class's value, otherwise the
// default.
func (p *Parameter) valueFor(inst *Instance) any {
	if inst != nil {
		if v, ok := inst.values[p.name]; ok {
			return v
		}
	}
	if p.owner != nil {
		if v, ok := p.owner.values[p.name]; ok {
			return v
		}
	}
	return p.def
}

// setOn validates and stores a value, then dispatches change events if the
// target is a fully initialized instance. A nil inst sets at class level,
// mutating the default seen by all instances without their own value.
func (p *Parameter) setOn(inst *Instance, val any) error {
	// An instance parameter shadows the class parameter: route the write
	// through the clone so its own constancy and validation apply.
	if inst != nil {
		if ip := inst.instParams[p.name]; ip != nil && ip != p {
			return ip.setOn(inst, val)
		}
	}

	if p.readonly {
		return &ImmutableError{Param: p.name, Reason: "readonly"}
	}
	if err := p.Validate(val); err != nil {
		return err
	}

	if inst == nil || p.classMember {
		return p.setOnClass(val)
	}

	old := p.valueFor(inst)
	if p.constant && inst.initialized {
		if old != nil && !comparator.Equal(val, old) {
			return &ImmutableError{Param: p.name, Reason: "constant"}
		}
	}

	inst.values[p.name] = val
	if p.postSet != nil {
		p.postSet(inst, val)
	}
	if !inst.initialized {
		return nil
	}

	inst.updateDeps(p.name)
	return p.dispatchValueEvent(inst, old, val)
}

func (p *Parameter) setOnClass(val any) error {
	if p.owner == nil {
		return &ResolutionError{Name: p.name, Owner: "<unbound parameter>",
			Context: "cannot set a class value before binding"}
	}
	if p.classMember {
		p.owner.values[p.name] = val
	} else {
		p.def = val
		p.assigned[SlotDefault] = true
	}
	if p.postSet != nil {
		p.postSet(nil, val)
	}
	return nil
}

func (p *Parameter) dispatchValueEvent(inst *Instance, old, val any) error {
	watchers := inst.watchersFor(p.name, WatchSlotValue)
	if len(watchers) == 0 {
		return nil
	}
	e := Event{What: WatchSlotValue, Name: p.name, Inst: inst, Class: p.owner, Old: old, New: val}
	sorted := make([]*Watcher, len(watchers))
	copy(sorted, watchers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].precedence < sorted[j].precedence })
	st := inst.state
	for _, w := range sorted {
		if err := st.callWatcher(w, e); err != nil {
			return err
		}
	}
	if !st.batching {
		return st.drain()
	}
	return nil
}

// SetSlot mutates one of the parameter's metadata slots by name, firing any
// slot watchers registered for it. The name slot cannot be rebound, and
// default mutation fires no events.
func (p *Parameter) SetSlot(slot string, value any) error {
	if slot == SlotName {
		ownerName := "<unbound>"
		if p.owner != nil {
			ownerName = p.owner.name
		}
		return &BindingError{Param: p.name, Owner: ownerName, Attempted: fmt.Sprint(value)}
	}
	old, ok := p.slotValue(slot)
	if !ok {
		return &ResolutionError{Name: slot, Owner: "parameter " + p.name, Context: "unknown slot"}
	}
	if err := p.storeSlot(slot, value); err != nil {
		return err
	}
	p.assigned[slot] = true

	if slot == SlotDefault || p.owner == nil {
		return nil
	}
	ws := p.watchers[slot]
	if len(ws) == 0 {
		return nil
	}
	e := Event{What: slot, Name: p.name, Class: p.owner, Old: old, New: value}
	st := p.owner.state
	for _, w := range ws {
		if err := st.callWatcher(w, e); err != nil {
			return err
		}
	}
	if !st.batching {
		return st.drain()
	}
	return nil
}

func (p *Parameter) slotValue(slot string) (any, bool) {
	switch slot {
	case SlotName:
		return p.name, true
	case SlotDefault:
		return p.def, true
	case SlotDoc:
		return p.doc, true
	case SlotConstant:
		return p.constant, true
	case SlotReadOnly:
		return p.readonly, true
	case SlotAllowNil:
		return p.allowNil, true
	case SlotLabel:
		return p.label, true
	case SlotPerInstance:
		return p.perInstance, true
	case SlotDeepCopy:
		return p.deepCopy, true
	case SlotClassMember:
		return p.classMember, true
	case SlotSerializeDefault:
		return p.serializeDefault, true
	case SlotPrecedence:
		if p.precedence == nil {
			return nil, true
		}
		return *p.precedence, true
	}
	return nil, false
}

func (p *Parameter) storeSlot(slot string, value any) error {
	wrongType := func(want string) error {
		return &ValidationError{Param: p.name, Value: value,
			Constraint: fmt.Sprintf("slot %q requires a %s", slot, want)}
	}
	switch slot {
	case SlotDefault:
		p.def = value
	case SlotDoc:
		s, ok := value.(string)
		if !ok {
			return wrongType("string")
		}
		p.doc = s
	case SlotConstant:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		p.constant = b
	case SlotReadOnly:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		p.readonly = b
	case SlotAllowNil:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		p.allowNil = b
		p.explicitAllowNil = b
	case SlotLabel:
		s, ok := value.(string)
		if !ok {
			return wrongType("string")
		}
		p.label = s
	case SlotPerInstance:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		p.perInstance = b
	case SlotDeepCopy:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		if p.readonly {
			p.deepCopy = false
		} else {
			p.deepCopy = b || p.constant
		}
	case SlotClassMember:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		p.classMember = b
	case SlotSerializeDefault:
		b, ok := value.(bool)
		if !ok {
			return wrongType("bool")
		}
		p.serializeDefault = b
	case SlotPrecedence:
		if value == nil {
			p.precedence = nil
			return nil
		}
		f, ok := toFloat(value)
		if !ok {
			return wrongType("number")
		}
		p.precedence = &f
	default:
		return &ResolutionError{Name: slot, Owner: "parameter " + p.name, Context: "unknown slot"}
	}
	return nil
}

// WatchSlot registers a watcher on one of this parameter's metadata slots.
// Slot watchers fire when SetSlot mutates the slot.
func (p *Parameter) WatchSlot(slot string, fn EventFunc, opts ...WatchOption) (*Watcher, error) {
	if _, ok := p.slotValue(slot); !ok {
		return nil, &ResolutionError{Name: slot, Owner: "parameter " + p.name, Context: "unknown slot"}
	}
	w := &Watcher{
		class:          p.owner,
		fn:             fn,
		mode:           ModeArgs,
		onlyChanged:    true,
		parameterNames: []string{p.name},
		what:           slot,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.precedence < 0 {
		return nil, &ConfigurationError{
			Context: "user-registered watchers must declare a non-negative precedence"}
	}
	p.watchers[slot] = append(p.watchers[slot], w)
	return w, nil
}

// Snapshot captures the metadata slots that have actually been assigned,
// so older snapshots lacking newer slots restore gracefully.
func (p *Parameter) Snapshot() map[string]any {
	state := map[string]any{}
	for slot := range p.assigned {
		if v, ok := p.slotValue(slot); ok {
			state[slot] = v
		}
	}
	return state
}

// Restore applies a snapshot, default-filling any slots the snapshot lacks.
func (p *Parameter) Restore(state map[string]any) error {
	if _, ok := state[SlotPerInstance]; !ok {
		p.perInstance = false
	}
	if _, ok := state[SlotLabel]; !ok {
		p.label = ""
	}
	for slot, v := range state {
		if slot == SlotName {
			if s, ok := v.(string); ok && p.name == "" {
				p.name = s
			}
			continue
		}
		if err := p.storeSlot(slot, v); err != nil {
			return err
		}
		p.assigned[slot] = true
	}
	return nil
}

// clone copies the parameter for per-instance shadowing. The clone keeps
// the same name and owner but its own metadata and watcher table.
func (p *Parameter) clone() *Parameter {
	c := *p
	c.watchers = map[string][]*Watcher{}
	for slot, ws := range p.watchers {
		c.watchers[slot] = append([]*Watcher(nil), ws...)
	}
	c.assigned = map[string]bool{}
	for k, v := range p.assigned {
		c.assigned[k] = v
	}
	return &c
}

func (p *Parameter) String() string {
	owner := "<unbound>"
	if p.owner != nil {
		owner = p.owner.name
	}
	return fmt.Sprintf("Parameter(%s.%s, kind=%s)", owner, p.name, p.kind.Name())
}
