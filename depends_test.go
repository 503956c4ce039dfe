package param

import (
	"errors"
	"testing"
)

func TestParseDependencySpec(t *testing.T) {
	cases := []struct {
		spec string
		path string
		attr string
		what string
		ok   bool
	}{
		{"x", "", "x", "value", true},
		{"x:constant", "", "x", "constant", true},
		{"sub.x", "sub", "x", "value", true},
		{"a.b.c:doc", "a.b", "c", "doc", true},
		{" padded ", "", "padded", "value", true},
		{"a:b:c", "", "", "", false},
		{"", "", "", "", false},
		{"a..b", "", "", "", false},
	}
	for _, tc := range cases {
		d, err := parseDependencySpec(tc.spec)
		if !tc.ok {
			if err == nil {
				t.Errorf("spec %q should not parse", tc.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("spec %q failed: %v", tc.spec, err)
			continue
		}
		if d.path != tc.path || d.attr != tc.attr || d.what != tc.what {
			t.Errorf("spec %q parsed as %+v", tc.spec, d)
		}
	}
}

func TestDeclaredWatcherFires(t *testing.T) {
	calls := 0
	c := MustClass("Reactor",
		WithParameter("x", Number(WithDefault(1.0))),
		WithWatcher("onX", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("x")),
	)
	v := c.MustNew(nil)

	if calls != 0 {
		t.Fatalf("watcher fired during construction: %d", calls)
	}
	if err := v.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
}

func TestOnInitRunsOnce(t *testing.T) {
	initCalls := 0
	c := MustClass("Initialized",
		WithParameter("x", Number(WithDefault(1.0))),
		WithWatcher("setup", func(inst *Instance, events ...Event) {
			initCalls++
		}, DependsOn("x"), OnInit()),
	)
	c.MustNew(Args{"x": 3.0})
	if initCalls != 1 {
		t.Errorf("on-init method should run exactly once at construction, got %d", initCalls)
	}
}

func TestDeclaredWatcherInherited(t *testing.T) {
	var seen []string
	base := MustClass("WatchBase",
		WithParameter("x", Number(WithDefault(1.0))),
		WithWatcher("onX", func(inst *Instance, events ...Event) {
			seen = append(seen, "base")
		}, DependsOn("x")),
	)
	override := MustClass("WatchOverride",
		WithParent(base),
		WithWatcher("onX", func(inst *Instance, events ...Event) {
			seen = append(seen, "override")
		}, DependsOn("x")),
	)
	plain := MustClass("WatchPlain", WithParent(base))

	v := plain.MustNew(nil)
	if err := v.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != "base" {
		t.Fatalf("subclass should inherit the declaration: %v", seen)
	}

	seen = nil
	o := override.MustNew(nil)
	if err := o.Set("x", 2.0); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != "override" {
		t.Fatalf("local declaration should replace the inherited one: %v", seen)
	}
}

func TestUnresolvableDependencyFailsDeclaration(t *testing.T) {
	_, err := NewClass("Broken",
		WithParameter("x", Number()),
		WithWatcher("onBad", func(*Instance, ...Event) {}, DependsOn("no:such:thing")),
	)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for malformed spec, got %v", err)
	}
}

func TestUnknownStaticDependency(t *testing.T) {
	c := MustClass("MissingDep",
		WithParameter("x", Number()),
		WithWatcher("onMissing", func(*Instance, ...Event) {}, DependsOn("ghost")),
	)
	_, err := c.New(nil)
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError at construction, got %v", err)
	}
}

func TestSubObjectDependency(t *testing.T) {
	sub := MustClass("Knob", WithParameter("x", Number(WithDefault(1.0))))

	calls := 0
	main := MustClass("Panel",
		WithParameter("knob", Any()),
		WithWatcher("onKnobX", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("knob.x")),
	)

	k1 := sub.MustNew(nil)
	main.MustNew(Args{"knob": k1})

	if err := k1.Set("x", 5.0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("sub-object parameter change should fire, got %d", calls)
	}
}

func TestSubObjectSwapRebinds(t *testing.T) {
	sub := MustClass("Dial", WithParameter("x", Number(WithDefault(1.0))))

	calls := 0
	main := MustClass("Deck",
		WithParameter("dial", Any()),
		WithWatcher("onDialX", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("dial.x")),
	)

	d1 := sub.MustNew(nil)
	d2 := sub.MustNew(nil)
	m := main.MustNew(Args{"dial": d1})

	// swapping in an object with a different x fires
	if err := d2.Set("x", 9.0); err != nil {
		t.Fatal(err)
	}
	calls = 0
	if err := m.Set("dial", d2); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("swap with differing values should fire, got %d", calls)
	}

	// old sub-object is no longer watched
	calls = 0
	if err := d1.Set("x", 7.0); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("old sub-object should be unwatched, got %d", calls)
	}

	// new sub-object is watched
	if err := d2.Set("x", 3.0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("new sub-object should be watched, got %d", calls)
	}
}

func TestSubObjectSwapSkippedWhenValuesEqual(t *testing.T) {
	sub := MustClass("Slider", WithParameter("x", Number(WithDefault(1.0))))

	calls := 0
	main := MustClass("Board",
		WithParameter("slider", Any()),
		WithWatcher("onSliderX", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("slider.x")),
	)

	s1 := sub.MustNew(nil)
	s2 := sub.MustNew(nil)
	m := main.MustNew(Args{"slider": s1})

	// both sliders hold x=1.0, so the swap is not an observable change
	if err := m.Set("slider", s2); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("swap with equal values should be skipped, got %d", calls)
	}
}

func TestParamTokenDependsOnEverything(t *testing.T) {
	sub := MustClass("Bundle",
		WithParameter("a", Number(WithDefault(1.0))),
		WithParameter("b", Number(WithDefault(1.0))),
	)

	calls := 0
	main := MustClass("Holder",
		WithParameter("bundle", Any()),
		WithWatcher("onAny", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("bundle.param")),
	)

	b := sub.MustNew(nil)
	main.MustNew(Args{"bundle": b})

	if err := b.Set("a", 2.0); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("b", 3.0); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("param token should cover every parameter, got %d calls", calls)
	}
}

func TestSlotDependency(t *testing.T) {
	calls := 0
	c := MustClass("SlotDep",
		WithParameter("x", Number(WithDefault(1.0))),
		WithWatcher("onConstantFlip", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("x:constant")),
	)
	v := c.MustNew(nil)

	p, err := v.Params().ParameterFor("x")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetSlot(SlotConstant, true); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("slot dependency should fire on slot change, got %d", calls)
	}

	// value sets do not fire a slot dependency
	calls = 0
	if err := v.Set("x", 1.0); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("value set fired a slot watcher %d times", calls)
	}
}

func TestPartialPathResolvesWhenSubObjectArrives(t *testing.T) {
	leaf := MustClass("Leaf", WithParameter("x", Number(WithDefault(1.0))))
	mid := MustClass("Mid", WithParameter("leaf", Any()))

	calls := 0
	root := MustClass("Root",
		WithParameter("mid", Any()),
		WithWatcher("onLeafX", func(inst *Instance, events ...Event) {
			calls++
		}, DependsOn("mid.leaf.x")),
	)

	// construct with the path only partially available
	m := mid.MustNew(nil)
	r := root.MustNew(Args{"mid": m})

	l := leaf.MustNew(nil)
	if err := m.Set("leaf", l); err != nil {
		t.Fatal(err)
	}

	calls = 0
	if err := l.Set("x", 4.0); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("dependency should resolve once the path completes, got %d", calls)
	}
	_ = r
}

func TestDependenciesIntrospection(t *testing.T) {
	sub := MustClass("Inner", WithParameter("x", Number(WithDefault(1.0))))
	main := MustClass("Outer",
		WithParameter("inner", Any()),
		WithParameter("y", Number(WithDefault(1.0))),
		WithWatcher("onDeps", func(*Instance, ...Event) {},
			DependsOn("y", "inner.x")),
	)

	i := sub.MustNew(nil)
	m := main.MustNew(Args{"inner": i})

	deps, err := m.Params().Dependencies("onDeps")
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, d := range deps {
		names[d.Name] = true
	}
	for _, want := range []string{"y", "inner", "x"} {
		if !names[want] {
			t.Errorf("expected dependency on %q, resolved %v", want, names)
		}
	}
}
