package param

import "fmt"

// BindingError reports an attempt to bind a Parameter that is already bound,
// or to share one Parameter instance across multiple owning classes.
type BindingError struct {
	Param     string
	Owner     string
	Attempted string
}

func (e *BindingError) Error() string {
	if e.Attempted != "" {
		return fmt.Sprintf("parameter %q is already bound to class %q, cannot rebind as %q; "+
			"parameters may not be shared by multiple classes", e.Param, e.Owner, e.Attempted)
	}
	return fmt.Sprintf("parameter %q is already bound to class %q", e.Param, e.Owner)
}

// ValidationError reports a value that failed a parameter's type, range or
// regex constraint. Always raised synchronously from Set/Validate.
type ValidationError struct {
	Param      string
	Value      any
	Constraint string
	Cause      error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid value %v for parameter %q: %s", e.Value, e.Param, e.Constraint)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// ImmutableError reports a write to a readonly parameter, or a write that
// would change an already-set constant parameter.
type ImmutableError struct {
	Param  string
	Reason string // "readonly" or "constant"
}

func (e *ImmutableError) Error() string {
	if e.Reason == "readonly" {
		return fmt.Sprintf("read-only parameter %q cannot be set or modified", e.Param)
	}
	return fmt.Sprintf("constant parameter %q cannot be modified", e.Param)
}

// ResolutionError reports an unknown parameter name in a dependency spec,
// bulk update or watch registration, or an attribute path that could not be
// resolved on the object graph.
type ResolutionError struct {
	Name    string
	Owner   string
	Context string
}

func (e *ResolutionError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%q could not be resolved on %s: %s", e.Name, e.Owner, e.Context)
	}
	return fmt.Sprintf("%q is not a parameter of %s", e.Name, e.Owner)
}

// ConfigurationError reports a misconfigured framework surface, such as an
// asynchronous watcher fired with no executor registered or an unknown
// serialization mode.
type ConfigurationError struct {
	Context string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Context
}
