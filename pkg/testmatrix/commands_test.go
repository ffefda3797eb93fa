package testmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

func TestGPUSuffix(t *testing.T) {
	assert.Equal(t, "master", GPUSuffix("master"))
	assert.Equal(t, "25-1-x", GPUSuffix("25.1"))
	assert.Equal(t, "25-10-x", GPUSuffix("25.10"))

	assert.Equal(t, "14.9", GPUVersionFromSuffix("14-9-x"))
	assert.Equal(t, "master", GPUVersionFromSuffix("master"))
}

func TestEmit(t *testing.T) {
	tests := []struct {
		name   string
		matrix sets.Set[Entry]
		want   []string
	}{
		{
			name:   "master",
			matrix: sets.New(Entry{"4.12", "master"}),
			want:   []string{"/test 4.12-stable-nvidia-gpu-operator-e2e-master"},
		},
		{
			name:   "versioned",
			matrix: sets.New(Entry{"4.12", "25.1"}),
			want:   []string{"/test 4.12-stable-nvidia-gpu-operator-e2e-25-1-x"},
		},
		{
			name: "sorted",
			matrix: sets.New(
				Entry{"4.15", "master"},
				Entry{"4.12", "25.1"},
				Entry{"4.12", "24.9"},
				Entry{"4.12", "master"},
			),
			want: []string{
				"/test 4.12-stable-nvidia-gpu-operator-e2e-24-9-x",
				"/test 4.12-stable-nvidia-gpu-operator-e2e-25-1-x",
				"/test 4.12-stable-nvidia-gpu-operator-e2e-master",
				"/test 4.15-stable-nvidia-gpu-operator-e2e-master",
			},
		},
		{
			name:   "empty",
			matrix: sets.New[Entry](),
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Emit(tt.matrix))
		})
	}
}

func TestParseCommand(t *testing.T) {
	for _, e := range []Entry{{"4.12", "master"}, {"4.18", "25.3"}, {"4.9", "24.10"}} {
		got, err := ParseCommand(Command(e))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}

	_, err := ParseCommand("/test 4.12-e2e-aws")
	assert.Error(t, err)
	_, err = ParseCommand("/retest")
	assert.Error(t, err)
}
