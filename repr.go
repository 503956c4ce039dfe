package param

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// displayOrder returns parameter names sorted for listings: ascending
// precedence with undeclared precedence sorting lowest, ties broken
// alphabetically.
func displayOrder(c *Class) []string {
	names := append([]string(nil), c.paramOrder()...)
	prec := func(n string) float64 {
		p := c.Parameter(n)
		if p == nil || p.precedence == nil {
			return math.Inf(-1)
		}
		return *p.precedence
	}
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := prec(names[i]), prec(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// Repr renders the instance constructor-style, listing only parameters
// whose value differs from the default. Machine-generated names are
// suppressed.
func (inst *Instance) Repr() string {
	var parts []string
	if name := inst.Name(); name != "" && !inst.class.isAutoName(name) {
		parts = append(parts, fmt.Sprintf("name=%q", name))
	}
	for _, n := range displayOrder(inst.class) {
		if n == "name" {
			continue
		}
		p := inst.param(n)
		v := p.valueFor(inst)
		if comparator.Equal(v, p.def) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", n, formatValue(v)))
	}
	return fmt.Sprintf("%s(%s)", inst.class.name, strings.Join(parts, ", "))
}

// Pprint renders every parameter of the instance, one per line, in display
// order.
func (inst *Instance) Pprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(\n", inst.class.name)
	for _, n := range displayOrder(inst.class) {
		p := inst.param(n)
		fmt.Fprintf(&b, "    %s=%s,\n", n, formatValue(p.valueFor(inst)))
	}
	b.WriteString(")")
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case *Instance:
		return val.Repr()
	default:
		return fmt.Sprintf("%v", val)
	}
}
