package channel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Rician mixes a line-of-sight and a scattered component with factor Kappa.
type Rician struct {
	Kappa float64
}

func (r Rician) Validate() error {
	if r.Kappa < 0 || math.IsNaN(r.Kappa) || math.IsInf(r.Kappa, 0) {
		return fmt.Errorf("channel: Rician factor must be finite and >= 0, got %v", r.Kappa)
	}
	return nil
}

// Weights returns sqrt(k/(1+k)) and sqrt(1/(1+k)).
func (r Rician) Weights() (los, nlos float64) {
	return math.Sqrt(r.Kappa / (1 + r.Kappa)), math.Sqrt(1 / (1 + r.Kappa))
}

// Blend returns wLoS*los + wNLoS*nlos. Both inputs must have the same shape.
func (r Rician) Blend(los, nlos mat.CMatrix) *mat.CDense {
	rows, cols := los.Dims()
	if nr, nc := nlos.Dims(); nr != rows || nc != cols {
		panic(mat.ErrShape)
	}
	wl, wn := r.Weights()
	result := mat.NewCDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result.Set(i, j, complex(wl, 0)*los.At(i, j)+complex(wn, 0)*nlos.At(i, j))
		}
	}
	return result
}

// DrawUniform returns a rows x cols matrix whose real and imaginary parts are
// uniform on [0,1). All real parts are drawn first, then all imaginary parts,
// both in row-major order.
func DrawUniform(rows, cols int, src rand.Source) *mat.CDense {
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	re := make([]float64, rows*cols)
	for i := range re {
		re[i] = u.Rand()
	}
	data := make([]complex128, rows*cols)
	for i := range data {
		data[i] = complex(re[i], u.Rand())
	}
	return mat.NewCDense(rows, cols, data)
}
