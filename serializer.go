package param

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Serialization turns instances and single parameter values into bytes and
// back. Implementations register under a mode name; "json" and "yaml" are
// built in.
type Serialization interface {
	Schema(class *Class, safe bool, subset []string) (map[string]any, error)
	SerializeParameters(inst *Instance, subset []string) ([]byte, error)
	DeserializeParameters(inst *Instance, data []byte, subset []string) (Args, error)
	SerializeValue(inst *Instance, name string) ([]byte, error)
	DeserializeValue(inst *Instance, name string, data []byte) (any, error)
}

var serializations = map[string]Serialization{
	"json": codecSerialization{marshal: json.Marshal, unmarshal: json.Unmarshal},
	"yaml": codecSerialization{marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
}

// RegisterSerialization installs a serialization under a mode name,
// replacing any previous registration.
func RegisterSerialization(mode string, s Serialization) {
	serializations[mode] = s
}

func serializationFor(mode string) (Serialization, error) {
	s, ok := serializations[mode]
	if !ok {
		return nil, &ConfigurationError{
			Context: fmt.Sprintf("serialization mode %q is not registered", mode)}
	}
	return s, nil
}

// codecSerialization implements Serialization over any marshal/unmarshal
// pair with encoding/json-style signatures.
type codecSerialization struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func (c codecSerialization) SerializeParameters(inst *Instance, subset []string) ([]byte, error) {
	if subset == nil {
		subset = inst.class.paramOrder()
	}
	out := make(map[string]any, len(subset))
	for _, n := range subset {
		p := inst.param(n)
		if p == nil {
			return nil, &ResolutionError{Name: n, Owner: inst.class.name, Context: "no such parameter"}
		}
		v, err := p.kind.Serialize(p.valueFor(inst))
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return c.marshal(out)
}

func (c codecSerialization) DeserializeParameters(inst *Instance, data []byte, subset []string) (Args, error) {
	raw := map[string]any{}
	if err := c.unmarshal(data, &raw); err != nil {
		return nil, err
	}
	args := Args{}
	for n, v := range raw {
		if subset != nil && !contains(subset, n) {
			continue
		}
		p := inst.param(n)
		if p == nil {
			return nil, &ResolutionError{Name: n, Owner: inst.class.name, Context: "no such parameter"}
		}
		val, err := p.kind.Deserialize(v)
		if err != nil {
			return nil, err
		}
		args[n] = val
	}
	return args, nil
}

func (c codecSerialization) SerializeValue(inst *Instance, name string) ([]byte, error) {
	p := inst.param(name)
	if p == nil {
		return nil, &ResolutionError{Name: name, Owner: inst.class.name, Context: "no such parameter"}
	}
	v, err := p.kind.Serialize(p.valueFor(inst))
	if err != nil {
		return nil, err
	}
	return c.marshal(v)
}

func (c codecSerialization) DeserializeValue(inst *Instance, name string, data []byte) (any, error) {
	p := inst.param(name)
	if p == nil {
		return nil, &ResolutionError{Name: name, Owner: inst.class.name, Context: "no such parameter"}
	}
	var raw any
	if err := c.unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return p.kind.Deserialize(raw)
}

func (c codecSerialization) Schema(class *Class, safe bool, subset []string) (map[string]any, error) {
	if subset == nil {
		subset = class.paramOrder()
	}
	out := map[string]any{}
	for _, n := range subset {
		p := class.Parameter(n)
		if p == nil {
			return nil, &ResolutionError{Name: n, Owner: class.name, Context: "no such parameter"}
		}
		schema, err := parameterSchema(p, safe)
		if err != nil {
			return nil, err
		}
		out[n] = schema
	}
	return out, nil
}

// parameterSchema builds a JSON-schema-shaped description of one
// parameter. With safe, parameters whose kind cannot describe itself are
// an error instead of an untyped entry.
func parameterSchema(p *Parameter, safe bool) (map[string]any, error) {
	schema := map[string]any{}
	switch k := p.kind.(type) {
	case StringKind:
		schema["type"] = "string"
		if k.Regex != nil {
			schema["pattern"] = k.Regex.String()
		}
	case NumberKind:
		schema["type"] = "number"
		if k.Min != nil {
			schema["minimum"] = *k.Min
		}
		if k.Max != nil {
			schema["maximum"] = *k.Max
		}
	case IntegerKind:
		schema["type"] = "integer"
		if k.Min != nil {
			schema["minimum"] = *k.Min
		}
		if k.Max != nil {
			schema["maximum"] = *k.Max
		}
	case BooleanKind:
		schema["type"] = "boolean"
	case ListKind:
		schema["type"] = "array"
		if k.MinLen != nil {
			schema["minItems"] = *k.MinLen
		}
		if k.MaxLen != nil {
			schema["maxItems"] = *k.MaxLen
		}
		if k.Item != nil {
			item, err := parameterSchema(&Parameter{name: p.name, kind: k.Item}, safe)
			if err != nil {
				return nil, err
			}
			schema["items"] = item
		}
	case AnyKind:
		if safe {
			return nil, &ConfigurationError{
				Context: fmt.Sprintf("parameter %q has no safe schema", p.name)}
		}
	default:
		if safe {
			return nil, &ConfigurationError{
				Context: fmt.Sprintf("parameter %q of kind %s has no safe schema", p.name, p.kind.Name())}
		}
	}
	if p.doc != "" {
		schema["description"] = p.doc
	}
	if label := p.Label(); label != "" {
		schema["title"] = label
	}
	if p.serializeDefault && p.def != nil {
		if v, err := p.kind.Serialize(p.def); err == nil {
			schema["default"] = v
		}
	}
	if p.allowNil {
		return map[string]any{"anyOf": []any{schema, map[string]any{"type": "null"}}}, nil
	}
	return schema, nil
}

func contains(names []string, n string) bool {
	for _, cand := range names {
		if cand == n {
			return true
		}
	}
	return false
}

// Serialize renders the instance's current parameter values in the given
// mode. An empty subset means every parameter.
func (ns *InstanceParameters) Serialize(mode string, subset ...string) ([]byte, error) {
	s, err := serializationFor(mode)
	if err != nil {
		return nil, err
	}
	if len(subset) == 0 {
		subset = nil
	}
	return s.SerializeParameters(ns.inst, subset)
}

// Deserialize parses serialized parameter values and applies them to the
// instance as one batched update.
func (ns *InstanceParameters) Deserialize(mode string, data []byte, subset ...string) error {
	s, err := serializationFor(mode)
	if err != nil {
		return err
	}
	if len(subset) == 0 {
		subset = nil
	}
	args, err := s.DeserializeParameters(ns.inst, data, subset)
	if err != nil {
		return err
	}
	return ns.Update(args)
}

// SerializeValue renders one parameter's current value.
func (ns *InstanceParameters) SerializeValue(mode, name string) ([]byte, error) {
	s, err := serializationFor(mode)
	if err != nil {
		return nil, err
	}
	return s.SerializeValue(ns.inst, name)
}

// DeserializeValue parses one serialized value without applying it.
func (ns *InstanceParameters) DeserializeValue(mode, name string, data []byte) (any, error) {
	s, err := serializationFor(mode)
	if err != nil {
		return nil, err
	}
	return s.DeserializeValue(ns.inst, name, data)
}

// Schema describes the class's parameters in JSON-schema shape.
func (ns *ClassParameters) Schema(mode string, safe bool, subset ...string) (map[string]any, error) {
	s, err := serializationFor(mode)
	if err != nil {
		return nil, err
	}
	if len(subset) == 0 {
		subset = nil
	}
	return s.Schema(ns.class, safe, subset)
}
