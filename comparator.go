package param

import (
	"reflect"
	"time"
)

// EqualityFunc compares two values already matched by a registered type or
// predicate.
type EqualityFunc func(a, b any) bool

type equality struct {
	typ  reflect.Type
	pred func(any) bool
	eq   EqualityFunc
}

// Comparator determines whether two parameter values should be considered
// equal. Equalities may be registered by concrete type or with a predicate
// function; if no registered comparison matches, sequences are compared
// element-wise, mappings by key and value, and everything else is unequal.
type Comparator struct {
	equalities []equality
}

// NewComparator returns a Comparator preloaded with the built-in equalities
// for numeric, string, byte and time values.
func NewComparator() *Comparator {
	c := &Comparator{}
	c.RegisterPredicate(isNumeric, func(a, b any) bool {
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	})
	c.RegisterType(reflect.TypeOf(""), func(a, b any) bool { return a.(string) == b.(string) })
	c.RegisterType(reflect.TypeOf([]byte(nil)), func(a, b any) bool {
		ab, bb := a.([]byte), b.([]byte)
		if len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	})
	c.RegisterType(reflect.TypeOf(time.Time{}), func(a, b any) bool {
		return a.(time.Time).Equal(b.(time.Time))
	})
	return c
}

// RegisterType registers an equality function applied when both values are
// of type typ.
func (c *Comparator) RegisterType(typ reflect.Type, eq EqualityFunc) {
	c.equalities = append(c.equalities, equality{typ: typ, eq: eq})
}

// RegisterPredicate registers an equality function applied when pred holds
// for both values individually. Useful for matching whole families of types
// without importing them.
func (c *Comparator) RegisterPredicate(pred func(any) bool, eq EqualityFunc) {
	c.equalities = append(c.equalities, equality{pred: pred, eq: eq})
}

// Equal reports whether a and b are equal under the registered equalities.
func (c *Comparator) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Comparable() && bv.Comparable() && a == b {
		return true
	}
	for _, e := range c.equalities {
		if e.pred != nil {
			if e.pred(a) && e.pred(b) {
				return e.eq(a, b)
			}
			continue
		}
		if reflect.TypeOf(a) == e.typ && reflect.TypeOf(b) == e.typ {
			return e.eq(a, b)
		}
	}

	switch bv.Kind() {
	case reflect.Slice, reflect.Array:
		return c.equalSequence(av, bv)
	case reflect.Map:
		return c.equalMapping(av, bv)
	}
	return false
}

func (c *Comparator) equalSequence(av, bv reflect.Value) bool {
	if av.Kind() != reflect.Slice && av.Kind() != reflect.Array {
		return false
	}
	if av.Type() != bv.Type() || av.Len() != bv.Len() {
		return false
	}
	for i := 0; i < av.Len(); i++ {
		if !c.Equal(av.Index(i).Interface(), bv.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func (c *Comparator) equalMapping(av, bv reflect.Value) bool {
	if av.Kind() != reflect.Map || av.Type() != bv.Type() || av.Len() != bv.Len() {
		return false
	}
	iter := av.MapRange()
	for iter.Next() {
		other := bv.MapIndex(iter.Key())
		if !other.IsValid() {
			return false
		}
		if !c.Equal(iter.Value().Interface(), other.Interface()) {
			return false
		}
	}
	return true
}

// comparator is the process-wide Comparator used by the dispatcher's
// only-changed skip rule and by Values(onlyChanged).
var comparator = NewComparator()

// DefaultComparator exposes the process-wide Comparator so callers can
// register additional equalities.
func DefaultComparator() *Comparator {
	return comparator
}

func isNumeric(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
