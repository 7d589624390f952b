package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorString(t *testing.T) {
	tests := []struct {
		name   string
		floats []float64
		want   string
	}{
		{name: "empty", floats: nil, want: "[]"},
		{name: "single", floats: []float64{1}, want: "[1]"},
		{name: "integers", floats: []float64{1, 2, 3}, want: "[1,2,3]"},
		{name: "fractions", floats: []float64{0.5, -1.25}, want: "[0.5,-1.25]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewVector(tt.floats).String())
		})
	}
}

func TestVectorScan(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		var v Vector
		require.NoError(t, v.Scan("[1,2.5,-3]"))
		assert.Equal(t, []float64{1, 2.5, -3}, v.Floats())
		assert.Equal(t, 3, v.Dimensions())
	})

	t.Run("bytes", func(t *testing.T) {
		var v Vector
		require.NoError(t, v.Scan([]byte("[0.125]")))
		assert.Equal(t, []float64{0.125}, v.Floats())
	})

	t.Run("spaces tolerated", func(t *testing.T) {
		var v Vector
		require.NoError(t, v.Scan(" [1, 2, 3] "))
		assert.Equal(t, []float64{1, 2, 3}, v.Floats())
	})

	t.Run("nil clears", func(t *testing.T) {
		v := NewVector([]float64{1})
		require.NoError(t, v.Scan(nil))
		assert.Nil(t, v.Floats())
	})

	t.Run("empty literal", func(t *testing.T) {
		var v Vector
		require.NoError(t, v.Scan("[]"))
		assert.Empty(t, v.Floats())
		assert.NotNil(t, v.Floats())
	})

	t.Run("bad element", func(t *testing.T) {
		var v Vector
		assert.Error(t, v.Scan("[1,x,3]"))
	})

	t.Run("unsupported type", func(t *testing.T) {
		var v Vector
		assert.Error(t, v.Scan(42))
	})
}

func TestVectorRoundTrip(t *testing.T) {
	in := NewVector([]float64{0.25, -1, 3.5})

	value, err := in.Value()
	require.NoError(t, err)

	var out Vector
	require.NoError(t, out.Scan(value))
	assert.Equal(t, in.Floats(), out.Floats())
}

func TestVectorDefensiveCopies(t *testing.T) {
	src := []float64{1, 2}
	v := NewVector(src)
	src[0] = 99
	assert.Equal(t, []float64{1, 2}, v.Floats())

	got := v.Floats()
	got[0] = 42
	assert.Equal(t, []float64{1, 2}, v.Floats())
}
