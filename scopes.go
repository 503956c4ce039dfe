package param

// EditConstant runs fn with the instance's constant parameters temporarily
// writable, then restores constancy even when fn fails or panics.
func EditConstant(inst *Instance, fn func() error) error {
	params := map[*Parameter]bool{}
	for _, n := range inst.class.paramOrder() {
		p := inst.param(n)
		params[p] = p.constant
		p.constant = false
	}
	defer func() {
		for p, c := range params {
			p.constant = c
		}
	}()
	return fn()
}

// DiscardEvents runs fn against inst with watcher dispatch suppressed:
// values change but no events are delivered.
func DiscardEvents(inst *Instance, fn func() error) error {
	return inst.state.discard(fn)
}

// sharedState caches one deep copy per parameter while a SharedDefaults
// scope is open, so constructing many instances reuses the copies instead
// of re-copying each default.
var sharedState struct {
	active bool
	cache  map[*Parameter]any
}

// SharedDefaults runs fn with default deep-copies shared across every
// instance constructed inside the scope.
func SharedDefaults(fn func() error) error {
	prevActive, prevCache := sharedState.active, sharedState.cache
	sharedState.active = true
	sharedState.cache = map[*Parameter]any{}
	defer func() {
		sharedState.active, sharedState.cache = prevActive, prevCache
	}()
	return fn()
}

func sharedDefault(p *Parameter) (any, bool) {
	if !sharedState.active {
		return nil, false
	}
	v, ok := sharedState.cache[p]
	return v, ok
}

func rememberSharedDefault(p *Parameter, v any) {
	if sharedState.active {
		sharedState.cache[p] = v
	}
}
