package search

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ParamBag is an ordered, multi-valued bag of backend-specific parameters.
//
// The command layer never interprets a ParamBag. It is handed to backends by
// pointer so pre-dispatch listeners can mutate it up to the moment a command
// executes.
type ParamBag struct {
	keys   []string
	values map[string][]string
}

// NewParamBag creates a ParamBag seeded from the given map. Keys are added in
// the map's iteration order, so callers that care about ordering should use
// Add or Set instead.
func NewParamBag(initial map[string][]string) *ParamBag {
	p := &ParamBag{values: make(map[string][]string)}
	for k, v := range initial {
		p.Set(k, v...)
	}
	return p
}

// Set replaces all values stored under key.
func (p *ParamBag) Set(key string, values ...string) {
	p.init()
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append([]string(nil), values...)
}

// Add appends values to the ones already stored under key.
func (p *ParamBag) Add(key string, values ...string) {
	p.init()
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], values...)
}

// Get returns the values stored under key, or nil.
func (p *ParamBag) Get(key string) []string {
	if p == nil || p.values == nil {
		return nil
	}
	return p.values[key]
}

// GetFirst returns the first value stored under key and whether it exists.
func (p *ParamBag) GetFirst(key string) (string, bool) {
	vals := p.Get(key)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Has reports whether key is present.
func (p *ParamBag) Has(key string) bool {
	if p == nil || p.values == nil {
		return false
	}
	_, ok := p.values[key]
	return ok
}

// Remove deletes key and all its values.
func (p *ParamBag) Remove(key string) {
	if !p.Has(key) {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the parameter names in insertion order.
func (p *ParamBag) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Len returns the number of distinct keys.
func (p *ParamBag) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a deep copy.
func (p *ParamBag) Clone() *ParamBag {
	c := &ParamBag{values: make(map[string][]string)}
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		c.Set(k, p.values[k]...)
	}
	return c
}

// Merge appends every value of other into p, preserving other's key order.
func (p *ParamBag) Merge(other *ParamBag) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		p.Add(k, other.values[k]...)
	}
}

// ToMap returns a copy of the bag as a plain map.
func (p *ParamBag) ToMap() map[string][]string {
	out := make(map[string][]string, p.Len())
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out[k] = append([]string(nil), p.values[k]...)
	}
	return out
}

// Decode copies the bag into a typed options struct using `param` tags.
// Single-valued keys decode into scalar fields, multi-valued keys into slices.
func (p *ParamBag) Decode(target any) error {
	input := make(map[string]any, p.Len())
	if p != nil {
		for _, k := range p.keys {
			vals := p.values[k]
			if len(vals) == 1 {
				input[k] = vals[0]
			} else {
				input[k] = vals
			}
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "param",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to create param decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

func (p *ParamBag) init() {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
}
