package pathloss

import (
	"fmt"
	"math"
)

// NLoSModel is the Friis-style gain used for the PB-Device and RIS-Device legs:
//
//	beta = c^2 / (16 pi^2 f^2 d^alpha)
type NLoSModel struct {
	ModelSetting
}

func (p *NLoSModel) Setting() ModelSetting {
	return p.ModelSetting
}

func (p *NLoSModel) Beta(d float64) (float64, error) {
	if !validDistance(d) {
		return 0, ErrInvalidDistance
	}
	c, f := p.C, p.FreqHz
	return (c * c) / (16 * math.Pi * math.Pi * f * f * math.Pow(d, p.Exponent)), nil
}

// LoSModel is the free-space gain used for the PB-RIS leg:
//
//	beta = (c/f)^2 / (4 pi)^2 * d^-alpha2
type LoSModel struct {
	ModelSetting
}

func (p *LoSModel) Setting() ModelSetting {
	return p.ModelSetting
}

func (p *LoSModel) Beta(d float64) (float64, error) {
	if !validDistance(d) {
		return 0, ErrInvalidDistance
	}
	lamda := p.Lamda()
	return (lamda * lamda) / ((4 * math.Pi) * (4 * math.Pi)) * math.Pow(d, -p.Exponent), nil
}

// AllBeta evaluates m for every distance; the first invalid distance aborts
// and is named in the error.
func AllBeta(m Model, distances []float64) ([]float64, error) {
	result := make([]float64, len(distances))
	for i, d := range distances {
		b, err := m.Beta(d)
		if err != nil {
			return nil, fmt.Errorf("entry %d (d=%v): %w", i, d, err)
		}
		result[i] = b
	}
	return result, nil
}

func validDistance(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}
