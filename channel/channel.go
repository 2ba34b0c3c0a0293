// Rician channel synthesis for the PB -> Device, PB -> RIS and RIS -> Device
// links and their combination into one effective channel per device.
package channel

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/wiless/rischarge/pathloss"
)

// Setting holds the physical parameters of the three links.
type Setting struct {
	N int // PB antennas
	M int // RIS elements

	PBDevice  Rician
	PBRIS     Rician
	RISDevice Rician

	PBDeviceLoss  pathloss.Model
	PBRISLoss     pathloss.Model
	RISDeviceLoss pathloss.Model

	Logger log.FieldLogger // nil logs to the standard logger
}

func (s Setting) Validate() error {
	if s.N < 1 || s.M < 1 {
		return fmt.Errorf("channel: N and M must be >= 1, got N=%d M=%d", s.N, s.M)
	}
	links := []struct {
		name string
		r    Rician
	}{
		{"PB-Device", s.PBDevice},
		{"PB-RIS", s.PBRIS},
		{"RIS-Device", s.RISDevice},
	}
	for _, l := range links {
		if err := l.r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", l.name, err)
		}
	}
	if s.PBDeviceLoss == nil || s.PBRISLoss == nil || s.RISDeviceLoss == nil {
		return errors.New("channel: missing path loss model")
	}
	return nil
}

// Distances are the link lengths seen by the synthesizer. PBDevice[k] and
// RISDevice[k] both refer to device k.
type Distances struct {
	PBDevice  []float64
	RISDevice []float64
	PBRIS     float64
}

// Links is the result of one synthesis. It is read-only once returned.
type Links struct {
	PBDevice  *mat.CDense // K x N
	PBRIS     *mat.CDense // N x M
	RISDevice *mat.CDense // M x K
	Theta     mat.CMatrix // M x M
	Effective *mat.CDense // N x K

	// LoSPBDevice is the unscaled line-of-sight draw of the PB-Device link,
	// the only channel knowledge the beacon uses for beamforming.
	LoSPBDevice *mat.CDense // K x N

	BetaPBDevice  []float64
	BetaRISDevice []float64
	BetaPBRIS     float64
}

// Synthesize draws the three links from src and combines them with the
// reflection matrix theta. Draw order is fixed: PB-Device LoS, NLoS, PB-RIS
// LoS, NLoS, RIS-Device LoS, NLoS.
func Synthesize(s Setting, d Distances, theta mat.CMatrix, src rand.Source) (*Links, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	k := len(d.PBDevice)
	if k < 1 || len(d.RISDevice) != k {
		return nil, fmt.Errorf("channel: need one PB and one RIS distance per device, got %d and %d", k, len(d.RISDevice))
	}
	if r, c := theta.Dims(); r != s.M || c != s.M {
		return nil, fmt.Errorf("channel: theta must be %dx%d, got %dx%d", s.M, s.M, r, c)
	}

	result := &Links{Theta: theta}
	var err error
	if result.BetaPBDevice, err = betas(s.PBDeviceLoss, d.PBDevice, "PB-Device"); err != nil {
		return nil, err
	}
	if result.BetaRISDevice, err = betas(s.RISDeviceLoss, d.RISDevice, "RIS-Device"); err != nil {
		return nil, err
	}
	if result.BetaPBRIS, err = s.PBRISLoss.Beta(d.PBRIS); err != nil {
		return nil, fmt.Errorf("PB-RIS: %w", err)
	}

	// PB -> Device (K x N), row k scaled by device k
	result.LoSPBDevice = DrawUniform(k, s.N, src)
	pbd := s.PBDevice.Blend(result.LoSPBDevice, DrawUniform(k, s.N, src))
	for i := 0; i < k; i++ {
		scaleRow(pbd, i, math.Sqrt(result.BetaPBDevice[i]))
	}
	result.PBDevice = pbd

	// PB -> RIS (N x M), single surface so a single scale
	pbris := s.PBRIS.Blend(DrawUniform(s.N, s.M, src), DrawUniform(s.N, s.M, src))
	scaleAll(pbris, math.Sqrt(result.BetaPBRIS))
	result.PBRIS = pbris

	// RIS -> Device (M x K), column k scaled by device k
	risd := s.RISDevice.Blend(DrawUniform(s.M, k, src), DrawUniform(s.M, k, src))
	for j := 0; j < k; j++ {
		scaleCol(risd, j, math.Sqrt(result.BetaRISDevice[j]))
	}
	result.RISDevice = risd

	result.Effective = Effective(pbris, theta, risd, pbd)
	logger := s.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithFields(log.Fields{
		"devices": k, "N": s.N, "M": s.M, "betaPBRIS": result.BetaPBRIS,
	}).Debug("channel: synthesized links")
	return result, nil
}

// Effective returns PB_RIS * theta * RIS_D + PB_D^T, an N x K matrix whose
// column k is the end-to-end channel of device k.
func Effective(pbris, theta, risd, pbd mat.CMatrix) *mat.CDense {
	h := Mul(Mul(pbris, theta), risd)
	n, k := h.Dims()
	if r, c := pbd.Dims(); r != k || c != n {
		panic(mat.ErrShape)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			h.Set(i, j, h.At(i, j)+pbd.At(j, i))
		}
	}
	return h
}

// Mul returns a*b.
func Mul(a, b mat.CMatrix) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(mat.ErrShape)
	}
	result := mat.NewCDense(ar, bc, nil)
	for i := 0; i < ar; i++ {
		for l := 0; l < ac; l++ {
			ail := a.At(i, l)
			if ail == 0 {
				continue
			}
			for j := 0; j < bc; j++ {
				result.Set(i, j, result.At(i, j)+ail*b.At(l, j))
			}
		}
	}
	return result
}

// Devices returns the number of devices the links were built for.
func (l *Links) Devices() int {
	_, k := l.Effective.Dims()
	return k
}

// Column returns a copy of the effective channel of device k.
func (l *Links) Column(k int) []complex128 {
	n, _ := l.Effective.Dims()
	h := make([]complex128, n)
	for i := range h {
		h[i] = l.Effective.At(i, k)
	}
	return h
}

// Finite reports whether every entry of every link matrix is finite.
func (l *Links) Finite() bool {
	for _, m := range []mat.CMatrix{l.PBDevice, l.PBRIS, l.RISDevice, l.Effective} {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := m.At(i, j)
				if cmplx.IsNaN(v) || cmplx.IsInf(v) {
					return false
				}
			}
		}
	}
	return true
}

func betas(m pathloss.Model, distances []float64, link string) ([]float64, error) {
	result, err := pathloss.AllBeta(m, distances)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", link, err)
	}
	return result, nil
}

func scaleRow(m *mat.CDense, i int, f float64) {
	_, c := m.Dims()
	for j := 0; j < c; j++ {
		m.Set(i, j, complex(f, 0)*m.At(i, j))
	}
}

func scaleCol(m *mat.CDense, j int, f float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, j, complex(f, 0)*m.At(i, j))
	}
}

func scaleAll(m *mat.CDense, f float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		scaleRow(m, i, f)
	}
}
