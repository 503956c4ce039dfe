package param

import (
	"fmt"
	"regexp"
)

// Kind is the validation capability of a Parameter: each parameter kind
// implements type, shape and range checks for the values it accepts, plus
// optional value adaptation and serialization hooks. Kinds compose by
// explicit delegation rather than inheritance.
type Kind interface {
	// Name identifies the kind in schemas and error messages.
	Name() string
	// Adapt may normalize a value before validation. The adapted value is
	// used for checking only; the original value is what gets stored.
	Adapt(v any) any
	// Validate checks v against the kind's constraints. pname is the
	// owning parameter's name, for error reporting.
	Validate(pname string, v any, allowNil bool) error
	// Serialize converts an accepted value to a serializable form.
	Serialize(v any) (any, error)
	// Deserialize converts a serialized form back to an acceptable value.
	// Deserialize(Serialize(v)) == v for any value the kind accepts.
	Deserialize(v any) (any, error)
}

// baseKind provides passthrough Adapt/Serialize/Deserialize for kinds that
// only implement validation.
type baseKind struct{}

func (baseKind) Adapt(v any) any                { return v }
func (baseKind) Serialize(v any) (any, error)   { return v, nil }
func (baseKind) Deserialize(v any) (any, error) { return v, nil }

// AnyKind accepts every value, including nil.
type AnyKind struct {
	baseKind
}

func (AnyKind) Name() string { return "any" }

func (AnyKind) Validate(string, any, bool) error { return nil }

// StringKind accepts string values, optionally full-matching a regular
// expression.
type StringKind struct {
	baseKind
	Regex *regexp.Regexp
}

func (StringKind) Name() string { return "string" }

func (k StringKind) Validate(pname string, v any, allowNil bool) error {
	if v == nil {
		if allowNil {
			return nil
		}
		return &ValidationError{Param: pname, Value: v, Constraint: "nil is not allowed"}
	}
	s, ok := v.(string)
	if !ok {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("only takes a string value, not %T", v)}
	}
	if k.Regex != nil {
		m := k.Regex.FindString(s)
		if m != s {
			return &ValidationError{Param: pname, Value: v,
				Constraint: fmt.Sprintf("does not match regex %q", k.Regex.String())}
		}
	}
	return nil
}

// NumberKind accepts any numeric value, optionally bounded. Integers and
// floats are adapted to float64 for range checking but stored as given.
type NumberKind struct {
	Min *float64
	Max *float64
}

func (NumberKind) Name() string { return "number" }

func (NumberKind) Adapt(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func (k NumberKind) Validate(pname string, v any, allowNil bool) error {
	if v == nil {
		if allowNil {
			return nil
		}
		return &ValidationError{Param: pname, Value: v, Constraint: "nil is not allowed"}
	}
	f, ok := toFloat(v)
	if !ok {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("only takes a numeric value, not %T", v)}
	}
	if k.Min != nil && f < *k.Min {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("must be at least %v", *k.Min)}
	}
	if k.Max != nil && f > *k.Max {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("must be at most %v", *k.Max)}
	}
	return nil
}

func (NumberKind) Serialize(v any) (any, error) { return v, nil }

func (NumberKind) Deserialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	return nil, fmt.Errorf("cannot deserialize %T as a number", v)
}

// IntegerKind accepts integral values and normalizes them to int64.
type IntegerKind struct {
	Min *int64
	Max *int64
}

func (IntegerKind) Name() string { return "integer" }

func (IntegerKind) Adapt(v any) any {
	if i, ok := toInt(v); ok {
		return i
	}
	return v
}

func (k IntegerKind) Validate(pname string, v any, allowNil bool) error {
	if v == nil {
		if allowNil {
			return nil
		}
		return &ValidationError{Param: pname, Value: v, Constraint: "nil is not allowed"}
	}
	i, ok := toInt(v)
	if !ok {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("only takes an integer value, not %T", v)}
	}
	if k.Min != nil && i < *k.Min {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("must be at least %d", *k.Min)}
	}
	if k.Max != nil && i > *k.Max {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("must be at most %d", *k.Max)}
	}
	return nil
}

func (IntegerKind) Serialize(v any) (any, error) { return v, nil }

func (IntegerKind) Deserialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if i, ok := toInt(v); ok {
		return i, nil
	}
	return nil, fmt.Errorf("cannot deserialize %T as an integer", v)
}

// BooleanKind accepts bool values.
type BooleanKind struct {
	baseKind
}

func (BooleanKind) Name() string { return "boolean" }

func (BooleanKind) Validate(pname string, v any, allowNil bool) error {
	if v == nil {
		if allowNil {
			return nil
		}
		return &ValidationError{Param: pname, Value: v, Constraint: "nil is not allowed"}
	}
	if _, ok := v.(bool); !ok {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("only takes a boolean value, not %T", v)}
	}
	return nil
}

// ListKind accepts []any values with optional length bounds and an optional
// item kind applied to every element.
type ListKind struct {
	baseKind
	MinLen *int
	MaxLen *int
	Item   Kind
}

func (ListKind) Name() string { return "list" }

func (k ListKind) Validate(pname string, v any, allowNil bool) error {
	if v == nil {
		if allowNil {
			return nil
		}
		return &ValidationError{Param: pname, Value: v, Constraint: "nil is not allowed"}
	}
	items, ok := v.([]any)
	if !ok {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("only takes a list value, not %T", v)}
	}
	if k.MinLen != nil && len(items) < *k.MinLen {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("must have at least %d items", *k.MinLen)}
	}
	if k.MaxLen != nil && len(items) > *k.MaxLen {
		return &ValidationError{Param: pname, Value: v,
			Constraint: fmt.Sprintf("must have at most %d items", *k.MaxLen)}
	}
	if k.Item != nil {
		for i, item := range items {
			if err := k.Item.Validate(pname, k.Item.Adapt(item), false); err != nil {
				return &ValidationError{Param: pname, Value: item,
					Constraint: fmt.Sprintf("item %d is invalid", i), Cause: err}
			}
		}
	}
	return nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	}
	return 0, false
}
