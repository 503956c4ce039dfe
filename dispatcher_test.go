package param

import (
	"errors"
	"testing"
)

func mustWatch(t *testing.T, inst *Instance, fn EventFunc, names []string, opts ...WatchOption) *Watcher {
	t.Helper()
	w, err := inst.Params().Watch(fn, names, opts...)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	return w
}

func TestWatcherReceivesOldAndNew(t *testing.T) {
	c := MustClass("Observed", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	var got []Event
	mustWatch(t, v, func(events ...Event) { got = append(got, events...) }, []string{"x"})

	if err := v.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	e := got[0]
	if e.Name != "x" || e.Old != 1.0 || e.New != 2.0 || e.What != WatchSlotValue {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.Type != EventChanged {
		t.Errorf("expected changed event, got %v", e.Type)
	}
	if e.Inst != v || e.Class != c {
		t.Error("event should carry its source instance and class")
	}
}

func TestOnlyChangedSkipsEqualSet(t *testing.T) {
	c := MustClass("Skippy", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	calls := 0
	mustWatch(t, v, func(...Event) { calls++ }, []string{"x"})

	if err := v.Set("x", 1.0); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("equal set should not notify, got %d calls", calls)
	}

	// cross-type numeric equality also counts as unchanged
	if err := v.Set("x", 1); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("int 1 equals float 1.0, got %d calls", calls)
	}
}

func TestNotOnlyChanged(t *testing.T) {
	c := MustClass("Eager", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	var types []EventType
	mustWatch(t, v, func(events ...Event) {
		for _, e := range events {
			types = append(types, e.Type)
		}
	}, []string{"x"}, NotOnlyChanged())

	if err := v.Set("x", 1.0); err != nil {
		t.Fatal(err)
	}
	if len(types) != 1 || types[0] != EventSet {
		t.Fatalf("expected one set event, got %v", types)
	}
}

func TestBatchedUpdateFiresOncePerWatcher(t *testing.T) {
	c := MustClass("Batched",
		WithParameter("x", Number(WithDefault(1.0))),
		WithParameter("y", Number(WithDefault(1.0))),
	)
	v := c.MustNew(nil)

	calls := 0
	var got []Event
	mustWatch(t, v, func(events ...Event) {
		calls++
		got = events
	}, []string{"x", "y"})

	if err := v.Params().Update(Args{"x": 2.0, "y": 3.0}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected one invocation for the batch, got %d", calls)
	}
	if len(got) != 2 {
		t.Fatalf("expected both events delivered together, got %d", len(got))
	}
}

func TestBatchDeduplicatesLatestWins(t *testing.T) {
	c := MustClass("Deduped", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	calls := 0
	var last Event
	mustWatch(t, v, func(events ...Event) {
		calls++
		last = events[len(events)-1]
	}, []string{"x"})

	err := v.Params().Batch(func() error {
		if err := v.Set("x", 2.0); err != nil {
			return err
		}
		return v.Set("x", 3.0)
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected one invocation, got %d", calls)
	}
	if last.New != 3.0 {
		t.Errorf("latest value should win, got %v", last.New)
	}
}

func TestUpdateRollsBackOnUnknownName(t *testing.T) {
	c := MustClass("Rollback",
		WithParameter("x", Number(WithDefault(1.0))),
	)
	v := c.MustNew(nil)

	calls := 0
	mustWatch(t, v, func(...Event) { calls++ }, []string{"x"})

	err := v.Params().Update(Args{"x": 5.0, "zzz": 1})
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	x, _ := v.Get("x")
	if x != 1.0 {
		t.Errorf("partial update not rolled back: %v", x)
	}
	if calls != 0 {
		t.Errorf("rolled-back update should not notify, got %d calls", calls)
	}
}

func TestWatcherPrecedenceOrder(t *testing.T) {
	c := MustClass("Ordered", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	var order []string
	mustWatch(t, v, func(...Event) { order = append(order, "late") }, []string{"x"},
		WithWatchPrecedence(10))
	mustWatch(t, v, func(...Event) { order = append(order, "early") }, []string{"x"},
		WithWatchPrecedence(1))

	if err := v.Params().Update(Args{"x": 2.0}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Errorf("watchers ran out of precedence order: %v", order)
	}
}

func TestNegativePrecedenceReserved(t *testing.T) {
	c := MustClass("Reserved", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	_, err := v.Params().Watch(func(...Event) {}, []string{"x"}, WithWatchPrecedence(-1))
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for negative precedence, got %v", err)
	}
}

func TestWatchUnknownParameter(t *testing.T) {
	c := MustClass("NoSuch", WithParameter("x", Number()))
	v := c.MustNew(nil)
	_, err := v.Params().Watch(func(...Event) {}, []string{"missing"})
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}

func TestWatchValues(t *testing.T) {
	c := MustClass("Valued",
		WithParameter("x", Number(WithDefault(1.0))),
		WithParameter("y", Number(WithDefault(1.0))),
	)
	v := c.MustNew(nil)

	var got map[string]any
	if _, err := v.Params().WatchValues(func(values map[string]any) {
		got = values
	}, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}

	if err := v.Params().Update(Args{"x": 2.0, "y": 3.0}); err != nil {
		t.Fatal(err)
	}
	if got["x"] != 2.0 || got["y"] != 3.0 {
		t.Errorf("value map wrong: %v", got)
	}
}

func TestUnwatch(t *testing.T) {
	c := MustClass("Unwatched", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	calls := 0
	w := mustWatch(t, v, func(...Event) { calls++ }, []string{"x"})

	if err := v.Params().Unwatch(w); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("unwatched watcher still fired %d times", calls)
	}

	// removing twice reports the watcher as unknown
	if err := v.Params().Unwatch(w); err == nil {
		t.Error("expected an error unwatching twice")
	}
}

func TestTriggerBypassesOnlyChanged(t *testing.T) {
	c := MustClass("Triggered", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	var got []Event
	mustWatch(t, v, func(events ...Event) { got = append(got, events...) }, []string{"x"})

	if err := v.Params().Trigger("x"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one triggered event, got %d", len(got))
	}
	e := got[0]
	if e.Type != EventTriggered {
		t.Errorf("expected triggered type, got %v", e.Type)
	}
	if e.Old != 1.0 || e.New != 1.0 {
		t.Errorf("trigger should carry the current value: %+v", e)
	}
}

func TestQueuedWatcherBreadthFirst(t *testing.T) {
	c := MustClass("Queue",
		WithParameter("x", Number(WithDefault(0.0))),
		WithParameter("y", Number(WithDefault(0.0))),
	)
	v := c.MustNew(nil)

	var order []string
	mustWatch(t, v, func(...Event) {
		order = append(order, "x-start")
		if err := v.Set("y", 1.0); err != nil {
			t.Errorf("nested set failed: %v", err)
		}
		order = append(order, "x-end")
	}, []string{"x"}, QueuedWatch())
	mustWatch(t, v, func(...Event) { order = append(order, "y") }, []string{"y"})

	if err := v.Set("x", 1.0); err != nil {
		t.Fatal(err)
	}
	want := []string{"x-start", "x-end", "y"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("queued watcher should defer nested events: got %v", order)
		}
	}
}

func TestDepthFirstWithoutQueued(t *testing.T) {
	c := MustClass("Depth",
		WithParameter("x", Number(WithDefault(0.0))),
		WithParameter("y", Number(WithDefault(0.0))),
	)
	v := c.MustNew(nil)

	var order []string
	mustWatch(t, v, func(...Event) {
		order = append(order, "x-start")
		if err := v.Set("y", 1.0); err != nil {
			t.Errorf("nested set failed: %v", err)
		}
		order = append(order, "x-end")
	}, []string{"x"})
	mustWatch(t, v, func(...Event) { order = append(order, "y") }, []string{"y"})

	if err := v.Set("x", 1.0); err != nil {
		t.Fatal(err)
	}
	want := []string{"x-start", "y", "x-end"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("expected depth-first %v, got %v", want, order)
		}
	}
}

func TestDiscardEvents(t *testing.T) {
	c := MustClass("Silent", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	calls := 0
	mustWatch(t, v, func(...Event) { calls++ }, []string{"x"})

	err := v.Params().DiscardEvents(func() error {
		return v.Set("x", 2.0)
	})
	if err != nil {
		t.Fatal(err)
	}
	x, _ := v.Get("x")
	if x != 2.0 {
		t.Errorf("value should still change: %v", x)
	}
	if calls != 0 {
		t.Errorf("discarded events still notified %d times", calls)
	}
}

func TestAsyncWatcherRequiresExecutor(t *testing.T) {
	c := MustClass("AsyncBare", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	mustWatch(t, v, func(...Event) {}, []string{"x"}, AsyncWatch())

	err := v.Set("x", 2.0)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError without executor, got %v", err)
	}
}

func TestAsyncWatcherRunsThroughExecutor(t *testing.T) {
	var scheduled []func()
	SetAsyncExecutor(func(fn func()) { scheduled = append(scheduled, fn) })
	defer SetAsyncExecutor(nil)

	c := MustClass("AsyncExec", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	calls := 0
	mustWatch(t, v, func(...Event) { calls++ }, []string{"x"}, AsyncWatch())

	if err := v.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatal("async watcher ran synchronously")
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected one scheduled callback, got %d", len(scheduled))
	}
	scheduled[0]()
	if calls != 1 {
		t.Errorf("executor callback did not run the watcher")
	}
}

func TestClassLevelWatchAppliesToInstances(t *testing.T) {
	c := MustClass("ClassWatch", WithParameter("x", Number(WithDefault(1.0))))

	calls := 0
	w, err := c.Params().Watch(func(...Event) { calls++ }, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := c.Params().Unwatch(w); err != nil {
			t.Errorf("unwatch failed: %v", err)
		}
	}()

	v := c.MustNew(nil)
	if err := v.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("class watcher should observe instance changes, got %d", calls)
	}
}

func TestBatchRecoversFromPanic(t *testing.T) {
	c := MustClass("PanicBatch", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	calls := 0
	mustWatch(t, v, func(...Event) { calls++ }, []string{"x"})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		_ = v.Params().Batch(func() error {
			if err := v.Set("x", 2.0); err != nil {
				t.Fatal(err)
			}
			panic("boom")
		})
	}()

	if calls != 1 {
		t.Fatalf("set before the panic should still notify, got %d calls", calls)
	}

	// dispatch must not stay wedged in the batching state
	if err := v.Set("x", 3.0); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("set after the scope unwound should notify immediately, got %d calls", calls)
	}
}

func TestQueuedWatcherPanicRestoresDispatch(t *testing.T) {
	c := MustClass("PanicQueued", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	w := mustWatch(t, v, func(...Event) { panic("boom") }, []string{"x"}, QueuedWatch())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		_ = v.Set("x", 2.0)
	}()
	if err := v.Params().Unwatch(w); err != nil {
		t.Fatal(err)
	}

	calls := 0
	mustWatch(t, v, func(...Event) { calls++ }, []string{"x"})
	if err := v.Set("x", 3.0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("later sets should still notify, got %d calls", calls)
	}
}

func TestTriggerPanicClearsTriggerFlag(t *testing.T) {
	c := MustClass("PanicTrigger", WithParameter("x", Number(WithDefault(1.0))))
	v := c.MustNew(nil)

	boom := true
	var types []EventType
	mustWatch(t, v, func(events ...Event) {
		if boom {
			panic("boom")
		}
		for _, e := range events {
			types = append(types, e.Type)
		}
	}, []string{"x"}, NotOnlyChanged())

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		_ = v.Params().Trigger("x")
	}()

	boom = false
	if err := v.Set("x", 1.0); err != nil {
		t.Fatal(err)
	}
	if len(types) != 1 || types[0] != EventSet {
		t.Fatalf("events after the trigger unwound should classify as plain sets, got %v", types)
	}
}

func TestUpdateRollsBackClassMemberValues(t *testing.T) {
	c := MustClass("SharedState",
		WithParameter("mode", String(WithDefault("idle"), ClassMember())),
		WithParameter("volume", Number(WithDefault(0.5), WithBounds(0, 1))),
	)
	v := c.MustNew(nil)

	// "mode" applies first, then the out-of-bounds "volume" fails
	err := v.Params().Update(Args{"mode": "busy", "volume": 3.0})
	if err == nil {
		t.Fatal("expected the out-of-bounds volume to fail the update")
	}
	mode, _ := v.Get("mode")
	if mode != "idle" {
		t.Errorf("class-member value should roll back, got %v", mode)
	}
}
