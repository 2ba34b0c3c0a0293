package antenna

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RISPhases builds the M x M reflection matrix of the surface. Every diagonal
// entry is exp(-j theta) with theta uniform in [0, 2pi); off-diagonal entries are 0.
func RISPhases(m int, src rand.Source) (*mat.CDense, error) {
	if m < 1 {
		return nil, fmt.Errorf("antenna: RIS needs at least one element, got %d", m)
	}
	phase := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src}
	theta := mat.NewCDense(m, m, nil)
	for i := 0; i < m; i++ {
		theta.Set(i, i, GetEJtheta(phase.Rand()))
	}
	return theta, nil
}

// GetEJtheta returns exp(-j theta), theta in radians.
func GetEJtheta(theta float64) complex128 {
	return cmplx.Exp(complex(0, -theta))
}

// IsUnitDiagonal reports whether theta is square, diagonal and unit modulus on
// the diagonal within tol.
func IsUnitDiagonal(theta mat.CMatrix, tol float64) bool {
	r, c := theta.Dims()
	if r != c {
		return false
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := theta.At(i, j)
			if i == j {
				if math.Abs(cmplx.Abs(v)-1) > tol {
					return false
				}
			} else if v != 0 {
				return false
			}
		}
	}
	return true
}
