package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalVersionsFile(t *testing.T) {
	data := []byte(`{
    "gpu-main-latest": "sha256:abc",
    "gpu-operator": {"25.1": "25.1.0", "24.9": "24.9.2"},
    "ocp": {"4.14": "4.14.30"}
}`)

	var m Map
	require.NoError(t, json.Unmarshal(data, &m))

	assert.False(t, m[KeyGPUMainLatest].IsNested())
	assert.Equal(t, "sha256:abc", m[KeyGPUMainLatest].Scalar())
	assert.True(t, m[KeyGPUOperator].IsNested())
	assert.Equal(t, []string{"24.9", "25.1"}, m.Minors(KeyGPUOperator))
	assert.Equal(t, map[string]string{"4.14": "4.14.30"}, m.Leaves(KeyOCP))
}

func TestUnmarshalRejectsNonStringLeaves(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "number", data: `{"gpu-main-latest": 12}`},
		{name: "bool", data: `{"ocp": {"4.14": true}}`},
		{name: "array", data: `{"ocp": ["4.14"]}`},
		{name: "null", data: `{"ocp": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Map
			assert.Error(t, json.Unmarshal([]byte(tt.data), &m))
		})
	}
}

func TestMarshalKeepsShape(t *testing.T) {
	store := NewStore("B", map[string]string{"25.1": "25.1.1"}, map[string]string{})

	data, err := json.Marshal(store)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gpu-main-latest":"B","gpu-operator":{"25.1":"25.1.1"},"ocp":{}}`, string(data))

	var back Map
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, store.Equal(back))
	assert.True(t, back[KeyOCP].IsNested(), "empty object must stay nested")
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Scalar("a").Equal(Scalar("a")))
	assert.False(t, Scalar("a").Equal(Scalar("b")))
	assert.False(t, Scalar("").Equal(Nested(nil)))
	assert.True(t, Nested(nil).Equal(Nested(Map{})))
	assert.False(t, Nested(Map{"x": Scalar("1")}).Equal(Nested(Map{"x": Scalar("2")})))
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewStore("A", map[string]string{"25.1": "25.1.0"}, nil)
	clone := orig.Clone()
	clone[KeyGPUOperator].Nested()["25.1"] = Scalar("25.1.9")

	assert.Equal(t, "25.1.0", orig[KeyGPUOperator].Nested()["25.1"].Scalar())
}
