package param

import (
	"fmt"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
)

// DebugTree draws the class hierarchy rooted at c with each class's
// declared parameters and watcher declarations, for inspecting what a
// declaration actually produced.
func DebugTree(c *Class) string {
	t := tree.NewTree(tree.NodeString(classLabel(c)))
	addClassChildren(t, c)
	return t.String()
}

func addClassChildren(t *tree.Tree, c *Class) {
	for _, n := range c.order {
		p := c.declared[n]
		t.AddChild(tree.NodeString(paramLabel(n, p)))
	}
	for _, d := range c.watchDecls {
		if c.parent != nil && c.parent.findDecl(d.name) != nil {
			continue
		}
		t.AddChild(tree.NodeString(fmt.Sprintf("%s() <- %s", d.name, strings.Join(d.deps, " "))))
	}
	for _, child := range c.children {
		sub := t.AddChild(tree.NodeString(classLabel(child)))
		addClassChildren(sub, child)
	}
}

func classLabel(c *Class) string {
	if c.abstract {
		return c.name + " (abstract)"
	}
	return c.name
}

func paramLabel(name string, p *Parameter) string {
	var marks []string
	if p.constant {
		marks = append(marks, "const")
	}
	if p.readonly {
		marks = append(marks, "ro")
	}
	if p.classMember {
		marks = append(marks, "class")
	}
	label := fmt.Sprintf("%s: %s", name, p.kind.Name())
	if len(marks) > 0 {
		label += " [" + strings.Join(marks, ",") + "]"
	}
	return label
}

// DebugWatchers lists the watchers currently live on an instance, one per
// line, with their targets and precedence.
func DebugWatchers(inst *Instance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", inst.Name())
	for _, n := range inst.class.paramOrder() {
		for what, ws := range inst.watchers[n] {
			for _, w := range ws {
				fmt.Fprintf(&b, "  %s:%s precedence=%g queued=%t\n", n, what, w.precedence, w.queued)
			}
		}
		p := inst.param(n)
		for what, ws := range p.watchers {
			for _, w := range ws {
				fmt.Fprintf(&b, "  %s:%s (class) precedence=%g queued=%t\n", n, what, w.precedence, w.queued)
			}
		}
	}
	return b.String()
}
