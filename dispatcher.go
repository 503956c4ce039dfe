package param

import (
	"log/slog"
	"sort"
)

var (
	asyncExecutor func(func())
	pkgLogger     *slog.Logger
)

// SetAsyncExecutor installs the process-wide executor that runs watchers
// registered with AsyncWatch. Without one, dispatching to an async watcher
// is a ConfigurationError.
func SetAsyncExecutor(fn func(func())) { asyncExecutor = fn }

// SetLogger replaces the package logger used for construction warnings and
// watcher diagnostics. Defaults to slog.Default.
func SetLogger(l *slog.Logger) { pkgLogger = l }

func logger() *slog.Logger {
	if pkgLogger != nil {
		return pkgLogger
	}
	return slog.Default()
}

// dispatchState is the per-owner watcher dispatch machine. While batching,
// events and their watchers queue up; drain then delivers deduplicated
// events watcher by watcher in precedence order. Dispatch is cooperative
// and single-threaded: no locking, no goroutines unless a watcher opted
// into the async executor.
type dispatchState struct {
	batching bool
	trigger  bool
	events   []Event
	watchers []*Watcher
}

func newDispatchState() *dispatchState {
	return &dispatchState{}
}

// callWatcher delivers one event to one watcher, queueing instead when a
// batch is open. Triggered dispatch bypasses the only-changed skip rule.
func (st *dispatchState) callWatcher(w *Watcher, e Event) error {
	if !st.trigger && w.onlyChanged && comparator.Equal(e.Old, e.New) {
		return nil
	}
	if st.batching {
		st.events = append(st.events, e)
		for _, queued := range st.watchers {
			if queued == w {
				return nil
			}
		}
		st.watchers = append(st.watchers, w)
		return nil
	}
	e.Type = st.eventType(w)
	return st.invoke(w, []Event{e})
}

// drain empties the queued events and watchers, repeating while watcher
// execution queues more. Events are deduplicated per (name, slot) with the
// earliest position and the latest payload winning.
func (st *dispatchState) drain() error {
	for len(st.events) > 0 {
		type key struct{ name, what string }
		dedup := map[key]Event{}
		for _, e := range st.events {
			dedup[key{e.Name, e.What}] = e
		}

		watchers := st.watchers
		st.events = nil
		st.watchers = nil

		sorted := make([]*Watcher, len(watchers))
		copy(sorted, watchers)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].precedence < sorted[j].precedence
		})

		for _, w := range sorted {
			var events []Event
			for _, name := range w.parameterNames {
				if e, ok := dedup[key{name, w.what}]; ok {
					e.Type = st.eventType(w)
					events = append(events, e)
				}
			}
			if len(events) == 0 {
				continue
			}
			if err := st.invoke(w, events); err != nil {
				return err
			}
		}
	}
	return nil
}

// invoke runs a watcher with batching raised for queued watchers, so any
// events it sets in turn queue breadth-first instead of recursing.
func (st *dispatchState) invoke(w *Watcher, events []Event) error {
	prev := st.batching
	st.batching = prev || w.queued
	defer func() { st.batching = prev }()
	return st.execute(w, events)
}

func (st *dispatchState) execute(w *Watcher, events []Event) error {
	if w.async {
		if asyncExecutor == nil {
			return &ConfigurationError{
				Context: "async watcher dispatched with no executor configured; call SetAsyncExecutor first"}
		}
		asyncExecutor(func() { w.run(events) })
		return nil
	}
	w.run(events)
	return nil
}

func (st *dispatchState) eventType(w *Watcher) EventType {
	switch {
	case st.trigger:
		return EventTriggered
	case w.onlyChanged:
		return EventChanged
	default:
		return EventSet
	}
}

// batch opens a batching scope around fn, draining on exit even when fn
// failed or panicked so earlier valid sets still notify and the machine
// never stays wedged in the batching state.
func (st *dispatchState) batch(fn func() error) (err error) {
	prev := st.batching
	st.batching = true
	defer func() {
		st.batching = prev
		if !prev {
			if derr := st.drain(); err == nil {
				err = derr
			}
		}
	}()
	return fn()
}

// discard runs fn and throws away every event and watcher it queued,
// restoring the previous queues on every exit path.
func (st *dispatchState) discard(fn func() error) error {
	events, watchers := st.events, st.watchers
	prevBatch := st.batching
	st.batching = true
	defer func() {
		st.batching = prevBatch
		st.events, st.watchers = events, watchers
	}()
	return fn()
}

func (w *Watcher) run(events []Event) {
	if w.mode == ModeValues {
		values := make(map[string]any, len(events))
		for _, e := range events {
			values[e.Name] = e.New
		}
		w.valuesFn(values)
		return
	}
	w.fn(events...)
}
