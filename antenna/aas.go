// Power beacon antenna array and the passive reflecting surface it illuminates
package antenna

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
)

// SettingAAS describes the N-element PB array and the M-element RIS.
type SettingAAS struct {
	N           int     // PB antennas
	TxPowerW    float64 // total power shared by the N elements
	FreqHz      float64
	RISElements int // M
}

func (s *SettingAAS) SetDefault() {
	s.N = 4
	s.TxPowerW = 3
	s.FreqHz = 915e6
	s.RISElements = 100
}

func NewAAS() *SettingAAS {
	result := new(SettingAAS)
	result.SetDefault()
	return result
}

func (s SettingAAS) Validate() error {
	if s.N < 1 {
		return fmt.Errorf("antenna: N must be >= 1, got %d", s.N)
	}
	if s.RISElements < 1 {
		return fmt.Errorf("antenna: RIS elements must be >= 1, got %d", s.RISElements)
	}
	if !(s.TxPowerW > 0) {
		return fmt.Errorf("antenna: transmit power must be positive, got %v", s.TxPowerW)
	}
	return nil
}

// FindWeights returns the S-CSI beam for a device whose LoS channel is los.
func (s SettingAAS) FindWeights(los []complex128) ([]complex128, error) {
	if len(los) != s.N {
		return nil, fmt.Errorf("antenna: expected %d LoS coefficients, got %d", s.N, len(los))
	}
	return SCSIBeam(los, s.TxPowerW)
}

// AASGain is the power gain |w.h^H|^2 / |w|^2 of beam w on channel h, i.e. the
// received power normalised by the transmit power.
func AASGain(w, h []complex128) float64 {
	p := Power(w)
	if p == 0 {
		return 0
	}
	rx := cmplxs.Dot(h, w)
	return real(rx*cmplx.Conj(rx)) / p
}
