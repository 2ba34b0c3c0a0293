// Statistical-CSI beamforming weights of the power beacon antenna array
package antenna

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateBeam is returned when a line-of-sight coefficient has zero or
// non-finite magnitude, leaving its phase undefined.
var ErrDegenerateBeam = errors.New("antenna: zero-magnitude line-of-sight coefficient")

// SCSIBeam returns the matched beam for one device, built from its
// line-of-sight channel only:
//
//	b[n] = sqrt(Pt/N) * los[n] / |los[n]|
//
// so that |b|^2 == Pt.
func SCSIBeam(los []complex128, pt float64) ([]complex128, error) {
	n := len(los)
	if n == 0 {
		return nil, fmt.Errorf("antenna: empty line-of-sight vector")
	}
	if !(pt > 0) {
		return nil, fmt.Errorf("antenna: transmit power must be positive, got %v", pt)
	}
	amp := math.Sqrt(pt / float64(n))
	w := make([]complex128, n)
	for i, h := range los {
		mag := cmplx.Abs(h)
		if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
			return nil, fmt.Errorf("%w: element %d", ErrDegenerateBeam, i)
		}
		w[i] = complex(amp/mag, 0) * h
	}
	return w, nil
}

// SCSIBeams computes the beam of every row of los (K x N) with the array aas.
// Rows are independent, so up to workers rows are processed concurrently;
// workers < 2 runs inline.
func SCSIBeams(ctx context.Context, aas SettingAAS, los mat.CMatrix, workers int) ([][]complex128, error) {
	k, n := los.Dims()
	beams := make([][]complex128, k)
	build := func(row int) error {
		h := make([]complex128, n)
		for j := 0; j < n; j++ {
			h[j] = los.At(row, j)
		}
		w, err := aas.FindWeights(h)
		if err != nil {
			return fmt.Errorf("device %d: %w", row, err)
		}
		beams[row] = w
		return nil
	}

	if workers < 2 {
		for row := 0; row < k; row++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := build(row); err != nil {
				return nil, err
			}
		}
		return beams, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for row := 0; row < k; row++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return build(row)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return beams, nil
}

// Power returns |w|^2, the transmit power carried by a beam.
func Power(w []complex128) float64 {
	norm := cmplxs.Norm(w, 2)
	return norm * norm
}
