package param

// WatchSlotValue is the default watched slot: the parameter's value, as
// opposed to one of its metadata slots such as "constant" or "doc".
const WatchSlotValue = "value"

// EventType classifies an Event at dispatch time.
type EventType string

const (
	// EventTriggered marks an event force-fired through Trigger,
	// regardless of whether the value changed.
	EventTriggered EventType = "triggered"
	// EventChanged marks an event delivered to a watcher that asked for
	// changes only.
	EventChanged EventType = "changed"
	// EventSet marks a plain assignment event.
	EventSet EventType = "set"
)

// Event is an immutable record of one observed parameter change.
//
// Type is assigned when the event is dispatched to a particular watcher, not
// when the event is created, because the classification depends on both the
// global trigger mode and the watcher's own change-filtering policy.
type Event struct {
	// What is the watched slot, WatchSlotValue for the value itself.
	What string
	// Name is the name of the parameter that was set or triggered.
	Name string
	// Inst is the instance owning the watched parameter, nil for
	// class-level slot events.
	Inst *Instance
	// Class is the class owning the watched parameter.
	Class *Class
	// Old and New are the previous and current values of the watched item.
	Old any
	New any
	// Type is EventTriggered, EventChanged or EventSet once dispatched.
	Type EventType
}

// WatcherMode selects how a watcher callback is invoked.
type WatcherMode int

const (
	// ModeArgs invokes the callback with the matching events.
	ModeArgs WatcherMode = iota
	// ModeValues invokes the callback with a name-to-new-value mapping.
	ModeValues
)

// EventFunc is a ModeArgs watcher callback.
type EventFunc func(events ...Event)

// ValuesFunc is a ModeValues watcher callback.
type ValuesFunc func(values map[string]any)

// Watcher declares a callback to invoke when an Event fires on a watched
// item, together with its invocation policy. Watchers are immutable once
// registered; to change a policy, unwatch and watch again.
type Watcher struct {
	inst           *Instance
	class          *Class
	fn             EventFunc
	valuesFn       ValuesFunc
	mode           WatcherMode
	onlyChanged    bool
	parameterNames []string
	what           string
	queued         bool
	async          bool
	precedence     float64
}

// ParameterNames returns the watched parameter names.
func (w *Watcher) ParameterNames() []string {
	names := make([]string, len(w.parameterNames))
	copy(names, w.parameterNames)
	return names
}

// Precedence returns the watcher's precedence; lower values run first.
// Negative precedences are reserved for internally generated watchers.
func (w *Watcher) Precedence() float64 {
	return w.precedence
}

// What returns the watched slot.
func (w *Watcher) What() string {
	return w.what
}

// WatchOption modifies a watcher registration.
type WatchOption func(*Watcher)

// WithWhat watches a metadata slot (e.g. "constant") instead of the value.
func WithWhat(slot string) WatchOption {
	return func(w *Watcher) {
		w.what = slot
	}
}

// NotOnlyChanged also invokes the callback when the watched item is set to
// its current value again. The default is to fire on actual changes only.
func NotOnlyChanged() WatchOption {
	return func(w *Watcher) {
		w.onlyChanged = false
	}
}

// QueuedWatch defers events generated inside the callback until the callback
// and its sibling watchers have finished, giving breadth-first processing
// instead of the default depth-first.
func QueuedWatch() WatchOption {
	return func(w *Watcher) {
		w.queued = true
	}
}

// AsyncWatch dispatches the callback through the process-wide asynchronous
// executor registered with SetAsyncExecutor.
func AsyncWatch() WatchOption {
	return func(w *Watcher) {
		w.async = true
	}
}

// WithWatchPrecedence sets the watcher's precedence. User-registered
// watchers must declare a non-negative precedence.
func WithWatchPrecedence(p float64) WatchOption {
	return func(w *Watcher) {
		w.precedence = p
	}
}
