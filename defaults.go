package param

import (
	"github.com/BurntSushi/toml"
)

// ApplyDefaults reads a TOML document of name = value pairs and applies
// them to the instance as one batched, validated update. Unknown names and
// invalid values roll the whole update back.
func ApplyDefaults(inst *Instance, doc []byte) error {
	raw := map[string]any{}
	if err := toml.Unmarshal(doc, &raw); err != nil {
		return &ConfigurationError{Context: "defaults document did not parse: " + err.Error()}
	}
	args := Args{}
	for n, v := range raw {
		args[n] = v
	}
	return inst.Params().Update(args)
}

// ApplyClassDefaults reads a TOML document and overwrites the class-level
// defaults, so instances constructed afterwards pick the new values up.
func ApplyClassDefaults(c *Class, doc []byte) error {
	raw := map[string]any{}
	if err := toml.Unmarshal(doc, &raw); err != nil {
		return &ConfigurationError{Context: "defaults document did not parse: " + err.Error()}
	}
	for _, n := range sortedKeys(Args(raw)) {
		if err := c.Set(n, raw[n]); err != nil {
			return err
		}
	}
	return nil
}
