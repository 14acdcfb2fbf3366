package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnitaryMatrix_Validation(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		data    []complex128
		wantErr bool
	}{
		{name: "scalar", dim: 1, data: []complex128{1}},
		{name: "single qubit", dim: 2, data: []complex128{1, 0, 0, 1}},
		{name: "not power of two", dim: 3, data: make([]complex128, 9), wantErr: true},
		{name: "zero dimension", dim: 0, data: nil, wantErr: true},
		{name: "wrong length", dim: 2, data: []complex128{1, 0, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUnitaryMatrix(tt.dim, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewUnitaryMatrix_CopiesInput(t *testing.T) {
	data := []complex128{1, 0, 0, 1}
	u, err := NewUnitaryMatrix(2, data)
	require.NoError(t, err)

	data[0] = 5
	assert.Equal(t, complex(1, 0), u.At(0, 0))
}

func TestUnitaryMatrix_NumQudits(t *testing.T) {
	assert.Equal(t, 0, Identity(1).NumQudits())
	assert.Equal(t, 1, Identity(2).NumQudits())
	assert.Equal(t, 3, Identity(8).NumQudits())
}

func TestUnitaryMatrix_MulAndDagger(t *testing.T) {
	h := MustUnitaryMatrix(2, H.Matrix(nil))
	tg := MustUnitaryMatrix(2, T.Matrix(nil))

	hh, err := h.Mul(h)
	require.NoError(t, err)
	assert.True(t, hh.ApproxEqual(Identity(2), 1e-12))

	ttd, err := tg.Mul(tg.Dagger())
	require.NoError(t, err)
	assert.True(t, ttd.ApproxEqual(Identity(2), 1e-12))

	_, err = h.Mul(Identity(4))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestUnitaryMatrix_IsUnitary(t *testing.T) {
	assert.True(t, MustUnitaryMatrix(2, U3.Matrix([]float64{0.3, 1.1, -0.7})).IsUnitary(1e-12))
	assert.True(t, MustUnitaryMatrix(8, CCX.Matrix(nil)).IsUnitary(1e-12))
	assert.False(t, MustUnitaryMatrix(2, []complex128{1, 1, 0, 1}).IsUnitary(1e-9))
}

func TestUnitaryMatrix_DistanceFrom(t *testing.T) {
	h := MustUnitaryMatrix(2, H.Matrix(nil))
	x := MustUnitaryMatrix(2, X.Matrix(nil))

	t.Run("self distance is zero", func(t *testing.T) {
		d, err := h.DistanceFrom(h)
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1e-9)
	})

	t.Run("global phase is ignored", func(t *testing.T) {
		data := h.Data()
		for i := range data {
			data[i] *= expi(0.8)
		}
		d, err := h.DistanceFrom(MustUnitaryMatrix(2, data))
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1e-7)
	})

	t.Run("symmetric", func(t *testing.T) {
		d1, err := h.DistanceFrom(x)
		require.NoError(t, err)
		d2, err := x.DistanceFrom(h)
		require.NoError(t, err)
		assert.InDelta(t, d1, d2, 1e-12)
		// |Tr(H X)| / 2 = 1/sqrt(2)
		assert.InDelta(t, math.Sqrt(0.5), d1, 1e-12)
	})

	t.Run("orthogonal unitaries are at distance one", func(t *testing.T) {
		d, err := Identity(2).DistanceFrom(x)
		require.NoError(t, err)
		assert.InDelta(t, 1, d, 1e-12)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := h.DistanceFrom(Identity(4))
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}
