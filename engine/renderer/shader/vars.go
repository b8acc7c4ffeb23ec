package shader

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Vars is an insertion-ordered set of template variables. Values feed the
// source templates and the shader hash; anything with a stable fmt
// representation works.
type Vars struct {
	keys   []string
	values map[string]any
}

// NewVars creates an empty variable set.
func NewVars() *Vars {
	return &Vars{values: make(map[string]any)}
}

// Set inserts or overwrites a variable, keeping first-insertion order.
//
// Parameters:
//   - key: template variable name
//   - value: template variable value
//
// Returns:
//   - *Vars: the receiver, for chaining
func (v *Vars) Set(key string, value any) *Vars {
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
	return v
}

// Get looks up a variable.
//
// Parameters:
//   - key: template variable name
//
// Returns:
//   - any: the value, or nil
//   - bool: whether the key is present
func (v *Vars) Get(key string) (any, bool) {
	value, ok := v.values[key]
	return value, ok
}

// Len returns the number of variables.
func (v *Vars) Len() int { return len(v.keys) }

// Keys returns the variable names in insertion order.
func (v *Vars) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Clone returns an independent copy.
func (v *Vars) Clone() *Vars {
	out := NewVars()
	for _, k := range v.keys {
		out.Set(k, v.values[k])
	}
	return out
}

// Merge returns a copy with extra laid over the receiver; extra wins on
// conflicting keys. A nil extra just clones.
//
// Parameters:
//   - extra: overriding variables, may be nil
//
// Returns:
//   - *Vars: the merged copy
func (v *Vars) Merge(extra *Vars) *Vars {
	out := v.Clone()
	if extra == nil {
		return out
	}
	for _, k := range extra.keys {
		out.Set(k, extra.values[k])
	}
	return out
}

// Equal reports whether both sets hold the same keys with deeply equal
// values, regardless of insertion order.
//
// Parameters:
//   - other: the set to compare against
//
// Returns:
//   - bool: true when structurally equal
func (v *Vars) Equal(other *Vars) bool {
	if v == nil || other == nil {
		return v == other
	}
	if len(v.keys) != len(other.keys) {
		return false
	}
	for k, value := range v.values {
		otherValue, ok := other.values[k]
		if !ok || !reflect.DeepEqual(value, otherValue) {
			return false
		}
	}
	return true
}

// Map returns the variables as a plain map for template execution.
func (v *Vars) Map() map[string]any {
	out := make(map[string]any, len(v.values))
	for k, value := range v.values {
		out[k] = value
	}
	return out
}

// canonical serializes the set with sorted keys so equal sets serialize
// identically no matter how they were built.
func (v *Vars) canonical() string {
	keys := make([]string, len(v.keys))
	copy(keys, v.keys)
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%#v;", k, v.values[k])
	}
	return sb.String()
}
