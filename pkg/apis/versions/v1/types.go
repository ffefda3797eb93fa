package v1

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Top level keys of the persisted versions file.
const (
	KeyGPUMainLatest = "gpu-main-latest"
	KeyGPUOperator   = "gpu-operator"
	KeyOCP           = "ocp"
)

// Value is one node of a versions tree. It is either a scalar version string
// or a nested mapping of further values, never both.
type Value struct {
	nested Map
	scalar string
	// isNested is kept separately so that an empty nested map is still nested.
	isNested bool
}

// Map is a versions tree. The persisted versions file and version diffs are both Maps.
type Map map[string]Value

// Scalar returns a leaf value.
func Scalar(s string) Value {
	return Value{scalar: s}
}

// Nested returns a value holding a sub tree. A nil map is stored as an empty one.
func Nested(m Map) Value {
	if m == nil {
		m = Map{}
	}
	return Value{nested: m, isNested: true}
}

func (v Value) IsNested() bool {
	return v.isNested
}

// Scalar returns the leaf string, or "" for nested values.
func (v Value) Scalar() string {
	return v.scalar
}

// Nested returns the sub tree, or nil for scalar values.
func (v Value) Nested() Map {
	return v.nested
}

// Equal reports whether two values are structurally identical.
func (v Value) Equal(o Value) bool {
	if v.isNested != o.isNested {
		return false
	}
	if !v.isNested {
		return v.scalar == o.scalar
	}
	return v.nested.Equal(o.nested)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isNested {
		return json.Marshal(v.nested)
	}
	return json.Marshal(v.scalar)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty version value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	case '{':
		m := Map{}
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		*v = Nested(m)
		return nil
	default:
		return errors.Errorf("version value must be a string or an object, got %s", string(trimmed))
	}
}

// Equal reports whether two trees hold the same keys with equal values.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Has reports whether key is present at the top level.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Minors returns the sorted keys of the nested map stored under key. A missing
// or scalar entry yields nil.
func (m Map) Minors(key string) []string {
	v, ok := m[key]
	if !ok || !v.IsNested() {
		return nil
	}
	keys := make([]string, 0, len(v.nested))
	for k := range v.nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Leaves flattens the nested map under key into minor -> full version.
// Nested entries below the second level are ignored.
func (m Map) Leaves(key string) map[string]string {
	v, ok := m[key]
	if !ok || !v.IsNested() {
		return nil
	}
	out := make(map[string]string, len(v.nested))
	for k, leaf := range v.nested {
		if !leaf.IsNested() {
			out[k] = leaf.scalar
		}
	}
	return out
}

// Clone returns a deep copy.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		if v.isNested {
			out[k] = Nested(v.nested.Clone())
		} else {
			out[k] = v
		}
	}
	return out
}

// NewStore builds the tracked versions tree from freshly fetched data.
func NewStore(mainLatest string, gpuOperator, ocp map[string]string) Map {
	return Map{
		KeyGPUMainLatest: Scalar(mainLatest),
		KeyGPUOperator:   Nested(leaves(gpuOperator)),
		KeyOCP:           Nested(leaves(ocp)),
	}
}

func leaves(in map[string]string) Map {
	out := make(Map, len(in))
	for k, v := range in {
		out[k] = Scalar(v)
	}
	return out
}
